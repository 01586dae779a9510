// Package export writes schedules in formats calendar applications import.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"tecal/internal/model"
	"tecal/internal/schedule"
)

// Columns is the header Google Calendar expects for CSV imports.
var Columns = []string{
	"Subject",
	"Start Date",
	"All Day Event",
	"Start Time",
	"End Time",
	"Location",
	"Description",
}

const (
	dateLayout  = "01/02/2006"
	clockLayout = "03:04 PM"
)

// Row maps an event onto Columns.
func Row(e model.Event) []string {
	return []string{
		e.Subject(),
		e.Startdatum.Format(dateLayout),
		"FALSE",
		e.Starttid.Format(clockLayout),
		e.Sluttid.Format(clockLayout),
		e.Lokal,
		e.Information,
	}
}

// WriteCSV writes the header and one row per event.
func WriteCSV(w io.Writer, events []model.Event) error {
	cw := csv.NewWriter(w)
	cw.UseCRLF = true

	if err := cw.Write(Columns); err != nil {
		return err
	}
	for _, e := range events {
		if err := cw.Write(Row(e)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCSVFile writes s to path. An empty schedule is a no-op: no file is
// created or truncated.
func WriteCSVFile(path string, s *schedule.Schedule) error {
	if s.Len() == 0 {
		s.Logger().Info("schedule empty; nothing written", "schedule", s.Name(), "path", path)
		return nil
	}

	if err := writeFileAtomic(path, func(w io.Writer) error {
		return WriteCSV(w, s.Events())
	}); err != nil {
		return fmt.Errorf("export: write %s: %w", path, err)
	}

	s.Logger().Info("wrote schedule", "schedule", s.Name(), "path", path, "events", s.Len())
	return nil
}

// writeFileAtomic writes via a temp file in the target directory and renames
// it over path.
func writeFileAtomic(path string, write func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".tecal-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
