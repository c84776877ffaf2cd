package reports

import (
	"fmt"
	"net/http"

	"github.com/xuri/excelize/v2"
)

// ExportConflictReportExcel streams the conflict report as an .xlsx
// attachment, one row per conflict.
func ExportConflictReportExcel(w http.ResponseWriter, report *ConflictReport) error {
	f := excelize.NewFile()
	_, err := f.NewSheet("Sheet1")
	if err != nil {
		return err
	}

	// Add headers
	f.SetCellValue("Sheet1", "A1", "ResourceId")
	f.SetCellValue("Sheet1", "B1", "ResourceName")
	f.SetCellValue("Sheet1", "C1", "Designation")
	f.SetCellValue("Sheet1", "D1", "WeekStart")
	f.SetCellValue("Sheet1", "E1", "WeekEnd")
	f.SetCellValue("Sheet1", "F1", "TotalAllocationPercent")
	f.SetCellValue("Sheet1", "G1", "TotalMandays")
	f.SetCellValue("Sheet1", "H1", "Severity")
	f.SetCellValue("Sheet1", "I1", "Projects")

	// Add data
	for i, c := range report.Conflicts {
		row := i + 2
		projects := ""
		for j, p := range c.ProjectAllocations {
			if j > 0 {
				projects += "; "
			}
			name := p.ProjectName
			if name == "" {
				name = p.ProjectId
			}
			projects += fmt.Sprintf("%s (%s%%)", name, p.AllocationPercent.String())
		}
		f.SetCellValue("Sheet1", "A"+fmt.Sprint(row), c.ResourceId)
		f.SetCellValue("Sheet1", "B"+fmt.Sprint(row), c.ResourceName)
		f.SetCellValue("Sheet1", "C"+fmt.Sprint(row), c.ResourceDesignation)
		f.SetCellValue("Sheet1", "D"+fmt.Sprint(row), c.WeekStartDate.Format("2006-01-02"))
		f.SetCellValue("Sheet1", "E"+fmt.Sprint(row), c.WeekEndDate.Format("2006-01-02"))
		f.SetCellValue("Sheet1", "F"+fmt.Sprint(row), c.TotalAllocationPercent.String())
		f.SetCellValue("Sheet1", "G"+fmt.Sprint(row), c.TotalMandays.String())
		f.SetCellValue("Sheet1", "H"+fmt.Sprint(row), string(c.Severity))
		f.SetCellValue("Sheet1", "I"+fmt.Sprint(row), projects)
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", "attachment; filename=resource_conflicts.xlsx")
	if err := f.Write(w); err != nil {
		return err
	}
	return nil
}
