package models

import (
	"errors"
	"reflect"
	"testing"

	mysqlDriver "github.com/go-sql-driver/mysql"
)

func TestEscapeLike(t *testing.T) {
	cases := []struct {
		in       string
		expected string
	}{
		{"gstr3b", "gstr3b"},
		{"100%", `100\%`},
		{"file_name", `file\_name`},
		{`a\b`, `a\\b`},
	}
	for _, tc := range cases {
		if got := escapeLike(tc.in); got != tc.expected {
			t.Fatalf("escapeLike(%q) = %q, expected %q", tc.in, got, tc.expected)
		}
	}
}

func TestIsDuplicateKeyErr(t *testing.T) {
	if !isDuplicateKeyErr(&mysqlDriver.MySQLError{Number: 1062}) {
		t.Fatalf("1062 not recognized as duplicate key")
	}
	if isDuplicateKeyErr(&mysqlDriver.MySQLError{Number: 1213}) {
		t.Fatalf("deadlock misclassified as duplicate key")
	}
	if isDuplicateKeyErr(errors.New("plain")) {
		t.Fatalf("plain error misclassified")
	}
}

func TestDocumentRecord_Tags(t *testing.T) {
	var doc DocumentRecord
	doc.SetTags([]string{" gst ", "", "return", "2024"})
	if doc.Tags != "gst,return,2024" {
		t.Fatalf("Tags column = %q", doc.Tags)
	}
	if got := doc.TagList(); !reflect.DeepEqual(got, []string{"gst", "return", "2024"}) {
		t.Fatalf("TagList = %v", got)
	}

	doc.Tags = "  "
	if got := doc.TagList(); got != nil {
		t.Fatalf("blank tags should yield nil, got %v", got)
	}
}
