package filing

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// EntityType selects the fixed category set and whether year/month
// subfolders are pre-provisioned.
type EntityType string

const (
	EntityTypeBusiness EntityType = "business"
	EntityTypePersonal EntityType = "personal"
)

func (t EntityType) Valid() bool {
	return t == EntityTypeBusiness || t == EntityTypePersonal
}

// CategoryOthers is the catch-all bucket; it never gets year or month
// subfolders.
const CategoryOthers = "Others"

var businessCategories = []string{
	"GST", "Income Tax", "ROC", "TDS", "Accounts",
	"Bank Statements", "Agreements", "Licenses", "Others",
}

var personalCategories = []string{
	"Identity Documents", "Income Tax", "Investments", "Bank Statements",
	"Property Documents", "Medical Records", "Educational", "Others",
}

// yearedCategories are the business categories that get financial-year
// subfolders pre-created at provisioning time.
var yearedCategories = map[string]bool{
	"GST": true, "Income Tax": true, "ROC": true, "TDS": true, "Accounts": true,
}

// monthlyFilingCategories are the categories that file monthly returns and
// therefore carry a month segment.
var monthlyFilingCategories = map[string]bool{
	"GST": true, "TDS": true,
}

var monthNames = []string{
	"January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December",
}

// Categories returns the fixed category list for an entity type.
func Categories(entityType EntityType) []string {
	if entityType == EntityTypePersonal {
		return append([]string(nil), personalCategories...)
	}
	return append([]string(nil), businessCategories...)
}

func knownCategory(category string) bool {
	for _, c := range businessCategories {
		if c == category {
			return true
		}
	}
	for _, c := range personalCategories {
		if c == category {
			return true
		}
	}
	return false
}

// MonthName maps a 1-based month to its full English name.
func MonthName(month int) (string, bool) {
	if month < 1 || month > 12 {
		return "", false
	}
	return monthNames[month-1], true
}

var financialYearPattern = regexp.MustCompile(`^\d{4}-\d{2}$`)

// CurrentFinancialYear formats the Indian financial year containing now:
// the year rolls over on April 1st.
func CurrentFinancialYear(now time.Time) string {
	startYear := now.Year()
	if now.Month() < time.April {
		startYear--
	}
	return FormatFinancialYear(startYear)
}

// FormatFinancialYear renders a start year as "2024-25".
func FormatFinancialYear(startYear int) string {
	return fmt.Sprintf("%d-%02d", startYear, (startYear+1)%100)
}

// ProvisionYears returns the financial years pre-created for a new entity:
// the current one and the next.
func ProvisionYears(now time.Time) []string {
	startYear := now.Year()
	if now.Month() < time.April {
		startYear--
	}
	return []string{FormatFinancialYear(startYear), FormatFinancialYear(startYear + 1)}
}

// ClassificationKey is the tuple deciding where a document is filed.
// Category, FinancialYear and Month are optional; the gating rules in Plan
// decide which of them actually become path segments.
type ClassificationKey struct {
	EntityName    string
	Category      string
	FinancialYear string
	Month         int
}

// Normalize trims the free-text fields.
func (k ClassificationKey) Normalize() ClassificationKey {
	k.EntityName = strings.TrimSpace(k.EntityName)
	k.Category = strings.TrimSpace(k.Category)
	k.FinancialYear = strings.TrimSpace(k.FinancialYear)
	return k
}

// Validate rejects a key before any remote call is made. Surplus optional
// fields (a financial year on "Others", a month on a yearly category) are
// not errors here; Plan silently ignores them.
func (k ClassificationKey) Validate() error {
	k = k.Normalize()
	if k.EntityName == "" {
		return invalidf("entity name is required")
	}
	if k.Category != "" && !knownCategory(k.Category) {
		return invalidf("unknown category %q", k.Category)
	}
	if k.FinancialYear != "" && !financialYearPattern.MatchString(k.FinancialYear) {
		return invalidf("financial year %q must look like 2024-25", k.FinancialYear)
	}
	if k.Month != 0 {
		if _, ok := MonthName(k.Month); !ok {
			return invalidf("month %d out of range 1..12", k.Month)
		}
	}
	return nil
}

// Plan computes the ordered folder names for a classification key,
// excluding the terminal file name. Pure function; every upload and every
// metadata path recomputation goes through here so the placement and the
// recorded path can never drift apart.
//
// Gating rules:
//   - the category segment appears only when a category is set;
//   - the financial-year segment appears only under a non-Others category;
//   - the month segment appears only under a monthly-filing category
//     (GST, TDS) that already has a financial-year segment.
//
// Optional fields whose gate fails are silently omitted.
func Plan(key ClassificationKey) []string {
	key = key.Normalize()
	segments := []string{key.EntityName}

	if key.Category == "" {
		return segments
	}
	segments = append(segments, key.Category)

	if key.FinancialYear == "" || key.Category == CategoryOthers {
		return segments
	}
	segments = append(segments, key.FinancialYear)

	if !monthlyFilingCategories[key.Category] {
		return segments
	}
	if name, ok := MonthName(key.Month); ok {
		segments = append(segments, name)
	}
	return segments
}

// PlanStrict is Plan for callers that treat a gated-off optional field as
// a caller bug rather than something to drop. The upload path does not use
// it.
func PlanStrict(key ClassificationKey) ([]string, error) {
	key = key.Normalize()
	if err := key.Validate(); err != nil {
		return nil, err
	}
	if key.FinancialYear != "" {
		if key.Category == "" {
			return nil, invalidf("financial year requires a category")
		}
		if key.Category == CategoryOthers {
			return nil, invalidf("financial year is not applicable to %s", CategoryOthers)
		}
	}
	if key.Month != 0 {
		if !monthlyFilingCategories[key.Category] {
			return nil, invalidf("month is only applicable to monthly-filing categories")
		}
		if key.FinancialYear == "" {
			return nil, invalidf("month requires a financial year")
		}
	}
	return Plan(key), nil
}

// FilePath joins the planned segments with the final file name into the
// "/"-separated path stored on the document record.
func FilePath(key ClassificationKey, fileName string) string {
	return strings.Join(append(Plan(key), fileName), "/")
}
