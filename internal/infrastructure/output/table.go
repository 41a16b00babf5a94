// Package output writes export results to local files: the students table as
// CSV or XLSX, the teammates import sheet, and the team manifest.
package output

import (
	"fmt"
	"os"

	"github.com/canvasinfo/canvasinfo/internal/domain/roster"
	"github.com/canvasinfo/canvasinfo/internal/domain/shared"
)

// Column names of the students table.
const (
	ColGroup    = "Group"
	ColName     = "Name"
	ColFullName = "FullName"
	ColID       = "ID"
	ColGitID    = "GitID"
	ColMail     = "Mail"
)

// StudentColumns is the header of the students table.
var StudentColumns = []string{ColGroup, ColName, ColFullName, ColID, ColGitID, ColMail}

// StudentRow returns the table cells of one record in StudentColumns order.
func StudentRow(r roster.StudentRecord) []string {
	return []string{r.Group, r.DisplayName, r.FullName, r.LoginID, r.ExternalID, r.Email}
}

// FileWriter writes every output format to the filesystem.
type FileWriter struct{}

// NewFileWriter creates a FileWriter.
func NewFileWriter() *FileWriter {
	return &FileWriter{}
}

func ioError(op, path string, err error) error {
	return shared.WrapError("output", op, shared.ErrIO, fmt.Sprintf("write %s", path), err)
}

// create opens path in truncate/write mode.
func create(op, path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, ioError(op, path, err)
	}
	return f, nil
}
