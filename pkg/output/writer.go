package output

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/afero"
)

// Writer stores rendered files in a directory.
type Writer struct {
	fs  afero.Fs
	dir string
	log *slog.Logger
}

// NewWriter returns a Writer rooted at dir on fs.
func NewWriter(fs afero.Fs, dir string, log *slog.Logger) *Writer {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Writer{fs: fs, dir: dir, log: log}
}

// WriteAll writes every file to a temporary name first and renames them into
// place only once all writes succeeded, so a failure leaves the previous
// outputs untouched.
func (w *Writer) WriteAll(files []File) error {
	if err := w.fs.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	temps := make([]string, 0, len(files))
	cleanup := func(pending []string) {
		for _, tmp := range pending {
			if err := w.fs.Remove(tmp); err != nil {
				w.log.Warn("failed to remove temporary output", "file", tmp, "error", err)
			}
		}
	}

	for _, f := range files {
		tmp := filepath.Join(w.dir, "."+f.Name+".tmp")
		if err := afero.WriteFile(w.fs, tmp, f.Data, 0o644); err != nil {
			cleanup(temps)
			return fmt.Errorf("write %s: %w", f.Name, err)
		}
		temps = append(temps, tmp)
	}

	for i, f := range files {
		final := filepath.Join(w.dir, f.Name)
		if err := w.fs.Rename(temps[i], final); err != nil {
			cleanup(temps[i:])
			return fmt.Errorf("rename %s: %w", f.Name, err)
		}
		w.log.Debug("wrote output file", "file", final, "bytes", len(f.Data))
	}
	return nil
}
