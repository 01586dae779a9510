package export

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	ical "github.com/arran4/golang-ical"

	"tecal/internal/model"
	"tecal/internal/schedule"
)

const productID = "-//tecal//TimeEdit export//EN"

// ICSOptions controls iCalendar output.
type ICSOptions struct {
	// Location is the timezone the export's wall-clock times are in. If nil,
	// time.Local is used.
	Location *time.Location

	// Name becomes X-WR-CALNAME when set.
	Name string

	// Stamp is written as DTSTAMP on every event. Zero means now.
	Stamp time.Time
}

// WriteICS writes events as a VCALENDAR with one VEVENT each.
func WriteICS(w io.Writer, events []model.Event, opts ICSOptions) error {
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	stamp := opts.Stamp
	if stamp.IsZero() {
		stamp = time.Now()
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)
	if opts.Name != "" {
		cal.SetXWRCalName(opts.Name)
	}
	cal.SetXWRTimezone(loc.String())

	for _, e := range events {
		start := e.Start(loc)
		end := e.End(loc)

		ev := cal.AddEvent(EventUID(e))
		ev.SetDtStampTime(stamp)
		ev.SetStartAt(start)
		ev.SetEndAt(end)
		ev.SetSummary(e.Subject())
		if e.Lokal != "" {
			ev.SetLocation(e.Lokal)
		}
		if e.Information != "" {
			ev.SetDescription(e.Information)
		}
	}

	return cal.SerializeTo(w)
}

// EventUID derives a stable UID from the fields that identify a session, so
// re-importing an updated export replaces events instead of duplicating them.
func EventUID(e model.Event) string {
	key := fmt.Sprintf("%s|%s|%s|%s|%s",
		e.Startdatum.Format(model.DateLayout),
		e.Starttid.Format(model.TimeLayout),
		e.Sluttid.Format(model.TimeLayout),
		e.Subject(),
		e.Lokal,
	)
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:12]) + "@tecal"
}

// WriteICSFile writes s to path as iCalendar. Like WriteCSVFile, an empty
// schedule writes nothing.
func WriteICSFile(path string, s *schedule.Schedule, opts ICSOptions) error {
	if s.Len() == 0 {
		s.Logger().Info("schedule empty; nothing written", "schedule", s.Name(), "path", path)
		return nil
	}
	if opts.Name == "" {
		opts.Name = s.Name()
	}

	if err := writeFileAtomic(path, func(w io.Writer) error {
		return WriteICS(w, s.Events(), opts)
	}); err != nil {
		return fmt.Errorf("export: write %s: %w", path, err)
	}

	s.Logger().Info("wrote calendar", "schedule", s.Name(), "path", path, "events", s.Len())
	return nil
}
