package output

import (
	"fmt"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/canvasinfo/canvasinfo/internal/domain/roster"
)

// StudentsTableName is the name of the table range in the students sheet.
const StudentsTableName = "Students"

// Column widths of the students sheet, for readability only.
var studentColumnWidths = map[string]float64{
	"B": 15, // name
	"C": 25, // full name
	"F": 45, // email
}

// Column widths of the teammates sheet.
var teammatesColumnWidths = map[string]float64{
	"B": 20, // team
	"C": 30, // name
	"D": 45, // email
	"E": 25, // comments
}

// Column names of the teammates import sheet.
var TeammatesColumns = []string{"Section", "Team", "Name", "Email", "Comments"}

// BuildStudentsWorkbook returns a workbook with one sheet holding the
// students table, covered by a named table range including the header.
func BuildStudentsWorkbook(records []roster.StudentRecord) (*excelize.File, error) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)

	if err := setColumnWidths(f, sheet, studentColumnWidths); err != nil {
		f.Close()
		return nil, err
	}

	if err := setRow(f, sheet, 1, toCells(StudentColumns)); err != nil {
		f.Close()
		return nil, err
	}
	for i, r := range records {
		if err := setRow(f, sheet, i+2, toCells(StudentRow(r))); err != nil {
			f.Close()
			return nil, err
		}
	}

	lastCell, err := excelize.CoordinatesToCellName(len(StudentColumns), len(records)+1)
	if err != nil {
		f.Close()
		return nil, err
	}
	if err := f.AddTable(sheet, &excelize.Table{
		Range: "A1:" + lastCell,
		Name:  StudentsTableName,
	}); err != nil {
		f.Close()
		return nil, fmt.Errorf("add table: %w", err)
	}

	return f, nil
}

// BuildTeammatesWorkbook returns the sheet used to import students into
// the teammates peer-review tool.
func BuildTeammatesWorkbook(records []roster.StudentRecord) (*excelize.File, error) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)

	if err := setColumnWidths(f, sheet, teammatesColumnWidths); err != nil {
		f.Close()
		return nil, err
	}

	if err := setRow(f, sheet, 1, toCells(TeammatesColumns)); err != nil {
		f.Close()
		return nil, err
	}
	for i, r := range records {
		var section any = ""
		if s, ok := Section(r.Group); ok {
			section = s
		}
		row := []any{section, r.Group, r.FullName, r.Email, r.LoginID}
		if err := setRow(f, sheet, i+2, row); err != nil {
			f.Close()
			return nil, err
		}
	}

	return f, nil
}

// Section derives the teammates section from the numeric prefix of a group
// name: "305 Team" is in section 3. ok is false when the name does not start
// with a digit.
func Section(group string) (int, bool) {
	end := 0
	for end < len(group) && group[end] >= '0' && group[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(group[:end])
	if err != nil {
		return 0, false
	}
	return n / 100, true
}

// WriteXLSX writes the students workbook to path.
func (w *FileWriter) WriteXLSX(path string, records []roster.StudentRecord) error {
	f, err := BuildStudentsWorkbook(records)
	if err != nil {
		return ioError("WriteXLSX", path, err)
	}
	return save("WriteXLSX", f, path)
}

// WriteTeammates writes the teammates import workbook to path.
func (w *FileWriter) WriteTeammates(path string, records []roster.StudentRecord) error {
	f, err := BuildTeammatesWorkbook(records)
	if err != nil {
		return ioError("WriteTeammates", path, err)
	}
	return save("WriteTeammates", f, path)
}

func save(op string, f *excelize.File, path string) error {
	defer f.Close()
	if err := f.SaveAs(path); err != nil {
		return ioError(op, path, err)
	}
	return nil
}

func setColumnWidths(f *excelize.File, sheet string, widths map[string]float64) error {
	for col, width := range widths {
		if err := f.SetColWidth(sheet, col, col, width); err != nil {
			return fmt.Errorf("set width of column %s: %w", col, err)
		}
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, cells []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &cells)
}

func toCells(values []string) []any {
	cells := make([]any, len(values))
	for i, v := range values {
		cells[i] = v
	}
	return cells
}
