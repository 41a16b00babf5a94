package output

import (
	"encoding/csv"
	"io"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/canvasinfo/canvasinfo/internal/domain/roster"
)

// EncodeCSV writes the students table as comma separated UTF-8 text with a
// byte order mark, so spreadsheet programs detect the encoding.
func EncodeCSV(w io.Writer, records []roster.StudentRecord) error {
	tw := transform.NewWriter(w, unicode.UTF8BOM.NewEncoder())

	cw := csv.NewWriter(tw)
	cw.UseCRLF = true

	if err := cw.Write(StudentColumns); err != nil {
		return err
	}
	for _, r := range records {
		if err := cw.Write(StudentRow(r)); err != nil {
			return err
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	return tw.Close()
}

// WriteCSV writes the students table to path.
func (w *FileWriter) WriteCSV(path string, records []roster.StudentRecord) error {
	f, err := create("WriteCSV", path)
	if err != nil {
		return err
	}

	if err := EncodeCSV(f, records); err != nil {
		f.Close()
		return ioError("WriteCSV", path, err)
	}
	if err := f.Close(); err != nil {
		return ioError("WriteCSV", path, err)
	}
	return nil
}
