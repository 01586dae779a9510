// Package timeedit reads schedule exports produced by TimeEdit.
package timeedit

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"tecal/internal/model"
	"tecal/internal/schedule"
)

// DefaultHeaderLines is the number of metadata lines TimeEdit writes above
// the column header.
const DefaultHeaderLines = 3

// ReadOptions controls how an export is read.
type ReadOptions struct {
	// HeaderLines is the number of raw lines skipped before the CSV header.
	// Negative means none; zero means DefaultHeaderLines.
	HeaderLines int
}

func (o ReadOptions) skip() int {
	switch {
	case o.HeaderLines < 0:
		return 0
	case o.HeaderLines == 0:
		return DefaultHeaderLines
	default:
		return o.HeaderLines
	}
}

// Read parses an export into events. The first bad row aborts the read.
func Read(r io.Reader, opts ReadOptions) ([]model.Event, error) {
	br := bufio.NewReader(r)
	for i := 0; i < opts.skip(); i++ {
		if _, err := br.ReadString('\n'); err != nil {
			if errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("timeedit: export ended inside the %d metadata lines", opts.skip())
			}
			return nil, err
		}
	}

	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("timeedit: export has no header row")
		}
		return nil, fmt.Errorf("timeedit: read header: %w", err)
	}
	header[0] = strings.TrimPrefix(header[0], "\ufeff")
	if err := checkHeader(header); err != nil {
		return nil, err
	}

	events := make([]model.Event, 0)
	for rowNum := 1; ; rowNum++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("timeedit: read row %d: %w", rowNum, err)
		}

		ev, err := model.ParseEvent(rowMap(header, rec))
		if err != nil {
			var pe *model.ParseError
			if errors.As(err, &pe) {
				pe.Row = rowNum
			}
			return nil, fmt.Errorf("timeedit: %w", err)
		}
		events = append(events, ev)
	}

	return events, nil
}

// checkHeader fails on a column name repeated after normalization, then on
// the first required column the header lacks.
func checkHeader(header []string) error {
	have := make(map[string]bool, len(header))
	for _, h := range header {
		name := model.NormalizeField(h)
		if have[name] {
			return fmt.Errorf("timeedit: %w: %s", model.ErrDuplicateColumn, name)
		}
		have[name] = true
	}
	for _, f := range model.RequiredFields {
		if !have[f] {
			return fmt.Errorf("timeedit: %w: %s", model.ErrMissingColumn, f)
		}
	}
	return nil
}

// rowMap pairs header names with cells. Short rows read as empty cells and
// cells beyond the header are dropped.
func rowMap(header, rec []string) map[string]string {
	m := make(map[string]string, len(header))
	for i, h := range header {
		if i < len(rec) {
			m[h] = rec[i]
		} else {
			m[h] = ""
		}
	}
	return m
}

// ReadFile reads an export from disk.
func ReadFile(path string, opts ReadOptions) ([]model.Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return Read(f, opts)
}

// Load reads an export from disk into a Schedule named after the file.
func Load(path string, opts ReadOptions, schedOpts ...schedule.Option) (*schedule.Schedule, error) {
	events, err := ReadFile(path, opts)
	if err != nil {
		return nil, err
	}
	return newSchedule(events, NameFromPath(path), schedOpts...), nil
}

func newSchedule(events []model.Event, name string, schedOpts ...schedule.Option) *schedule.Schedule {
	opts := append([]schedule.Option{schedule.WithName(name)}, schedOpts...)
	s := schedule.New(events, opts...)
	s.Logger().Info("read schedule", "schedule", s.Name(), "events", s.Len())
	return s
}

// NameFromPath derives a schedule name from a path or URL: the base name
// without extension.
func NameFromPath(p string) string {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	base := filepath.Base(p)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
