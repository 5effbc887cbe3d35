package dashboard

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/Jidnyasa-P/Student-Attendance-with-QR/internal/api"
)

var exportHeader = []string{"Name", "Email", "Marked At", "IP Address", "Photo"}

// ExportWorkbook writes the attendance records of a session to an .xlsx file.
func ExportWorkbook(path, sessionName string, records []api.Record) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Attendance"
	idx, err := f.NewSheet(sheet)
	if err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(idx)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("drop default sheet: %w", err)
	}

	if err := f.SetCellValue(sheet, "A1", "Session: "+sessionName); err != nil {
		return fmt.Errorf("write title: %w", err)
	}
	for col, name := range exportHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 2)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, name); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}

	for i, r := range records {
		row := i + 3
		hasPhoto := "no"
		if r.Photo != "" {
			hasPhoto = "yes"
		}
		values := []string{r.Username, r.Email, r.MarkedAt, r.IPAddress, hasPhoto}
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return fmt.Errorf("write row %d: %w", row, err)
			}
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}
