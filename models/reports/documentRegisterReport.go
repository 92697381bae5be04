package reports

import (
	"context"
	"fmt"
	"net/http"

	"bitbucket.org/mmdatafocus/docs_backend/config"
	"bitbucket.org/mmdatafocus/docs_backend/models"
	"github.com/xuri/excelize/v2"
)

// ExportDocumentRegister writes an Excel register of one entity's
// documents. The register is a flat listing of the metadata records; it
// reads the database view only (no provider calls), so it can lag behind
// the remote store the same way metadata-mode structure listings do.
func ExportDocumentRegister(ctx context.Context, w http.ResponseWriter, entityName string) error {
	var records []*models.DocumentRecord
	db := config.GetDB()
	err := db.WithContext(ctx).
		Where("entity_name = ?", entityName).
		Order("category, financial_year, month, file_name").
		Find(&records).Error
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	const sheet = "Sheet1"

	headers := []string{"FileName", "Path", "Category", "FinancialYear", "Month", "SizeBytes", "UploadedBy", "UploadedAt"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, h)
	}

	for i, d := range records {
		row := i + 2
		f.SetCellValue(sheet, "A"+fmt.Sprint(row), d.FileName)
		f.SetCellValue(sheet, "B"+fmt.Sprint(row), d.FilePath)
		f.SetCellValue(sheet, "C"+fmt.Sprint(row), d.Category)
		f.SetCellValue(sheet, "D"+fmt.Sprint(row), d.FinancialYear)
		if d.Month > 0 {
			f.SetCellValue(sheet, "E"+fmt.Sprint(row), d.Month)
		}
		f.SetCellValue(sheet, "F"+fmt.Sprint(row), d.FileSize)
		f.SetCellValue(sheet, "G"+fmt.Sprint(row), d.UploadedBy)
		f.SetCellValue(sheet, "H"+fmt.Sprint(row), d.CreatedAt.Format("2006-01-02 15:04"))
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s-register.xlsx", entityName))
	return f.Write(w)
}
