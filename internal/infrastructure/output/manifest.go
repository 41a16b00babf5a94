package output

import (
	"bufio"
	"io"
	"strings"

	"github.com/canvasinfo/canvasinfo/internal/domain/roster"
)

// EncodeManifest writes one block per team, in the given order:
//
//	<label>:
//	\tmembers:[<m1>, <m2>]
func EncodeManifest(w io.Writer, teams []roster.RenderedTeam) error {
	bw := bufio.NewWriter(w)
	for _, t := range teams {
		bw.WriteString(t.Label)
		bw.WriteString(":\n\tmembers:[")
		bw.WriteString(strings.Join(t.Members, ", "))
		bw.WriteString("]\n")
	}
	return bw.Flush()
}

// WriteManifest writes the team manifest to path.
func (w *FileWriter) WriteManifest(path string, teams []roster.RenderedTeam) error {
	f, err := create("WriteManifest", path)
	if err != nil {
		return err
	}

	if err := EncodeManifest(f, teams); err != nil {
		f.Close()
		return ioError("WriteManifest", path, err)
	}
	if err := f.Close(); err != nil {
		return ioError("WriteManifest", path, err)
	}
	return nil
}
