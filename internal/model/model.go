package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Normalized names of the columns every TimeEdit export must carry.
const (
	FieldStartDate = "startdatum"
	FieldStartTime = "starttid"
	FieldEndDate   = "slutdatum"
	FieldEndTime   = "sluttid"

	FieldCourse = "kurs"
	FieldKind   = "undervisningstyp"
	FieldRoom   = "lokal"
	FieldInfo   = "information"
)

// Layouts used by TimeEdit for date and time cells.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// RequiredFields lists the normalized column names ParseEvent insists on.
var RequiredFields = []string{
	FieldStartDate, FieldStartTime, FieldEndDate, FieldEndTime,
	FieldCourse, FieldKind, FieldRoom, FieldInfo,
}

var (
	ErrMissingColumn   = errors.New("missing required column")
	ErrDuplicateColumn = errors.New("duplicate column")
)

// ParseError reports a date or time cell that does not match its layout.
type ParseError struct {
	Row   int // 1-based data row, 0 when unknown
	Field string
	Value string
	Err   error
}

func (e *ParseError) Error() string {
	if e.Row > 0 {
		return fmt.Sprintf("row %d: field %s: cannot parse %q: %v", e.Row, e.Field, e.Value, e.Err)
	}
	return fmt.Sprintf("field %s: cannot parse %q: %v", e.Field, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Event is one scheduled class session from a TimeEdit export.
//
// Date fields carry only the date (midnight UTC); time fields carry only the
// clock time (year 0, UTC). Use Start/End for a combined instant.
type Event struct {
	Kurs             string
	Undervisningstyp string
	Lokal            string
	Information      string

	Startdatum time.Time
	Starttid   time.Time
	Slutdatum  time.Time
	Sluttid    time.Time

	// Extra holds every other column, keyed by normalized name.
	Extra map[string]string
}

// NormalizeField lower-cases and trims a column name and replaces spaces
// with underscores.
func NormalizeField(name string) string {
	return strings.ReplaceAll(strings.TrimSpace(strings.ToLower(name)), " ", "_")
}

// IsExactField reports whether field is compared by equality rather than
// containment.
func IsExactField(field string) bool {
	switch field {
	case FieldStartDate, FieldStartTime, FieldEndDate, FieldEndTime:
		return true
	}
	return false
}

// LayoutFor returns the parse layout of a datetime field.
func LayoutFor(field string) (string, bool) {
	switch field {
	case FieldStartDate, FieldEndDate:
		return DateLayout, true
	case FieldStartTime, FieldEndTime:
		return TimeLayout, true
	}
	return "", false
}

// ParseFieldTime parses value with the layout of the datetime field.
func ParseFieldTime(field, value string) (time.Time, error) {
	layout, ok := LayoutFor(field)
	if !ok {
		return time.Time{}, fmt.Errorf("field %s is not a datetime field", field)
	}
	t, err := time.Parse(layout, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, &ParseError{Field: field, Value: value, Err: err}
	}
	return t, nil
}

// ParseEvent builds an Event from one CSV row keyed by raw header names.
// Two names that normalize alike are rejected.
func ParseEvent(row map[string]string) (Event, error) {
	fields := make(map[string]string, len(row))
	for k, v := range row {
		name := NormalizeField(k)
		if _, dup := fields[name]; dup {
			return Event{}, fmt.Errorf("%w: %s", ErrDuplicateColumn, name)
		}
		fields[name] = v
	}

	for _, f := range RequiredFields {
		if _, ok := fields[f]; !ok {
			return Event{}, fmt.Errorf("%w: %s", ErrMissingColumn, f)
		}
	}

	var ev Event
	var err error
	if ev.Startdatum, err = ParseFieldTime(FieldStartDate, fields[FieldStartDate]); err != nil {
		return Event{}, err
	}
	if ev.Starttid, err = ParseFieldTime(FieldStartTime, fields[FieldStartTime]); err != nil {
		return Event{}, err
	}
	if ev.Slutdatum, err = ParseFieldTime(FieldEndDate, fields[FieldEndDate]); err != nil {
		return Event{}, err
	}
	if ev.Sluttid, err = ParseFieldTime(FieldEndTime, fields[FieldEndTime]); err != nil {
		return Event{}, err
	}

	ev.Kurs = fields[FieldCourse]
	ev.Undervisningstyp = fields[FieldKind]
	ev.Lokal = fields[FieldRoom]
	ev.Information = fields[FieldInfo]

	for k, v := range fields {
		if isKnownField(k) {
			continue
		}
		if ev.Extra == nil {
			ev.Extra = make(map[string]string)
		}
		ev.Extra[k] = v
	}

	return ev, nil
}

func isKnownField(field string) bool {
	for _, f := range RequiredFields {
		if f == field {
			return true
		}
	}
	return false
}

// Text returns the value of a text field, explicit or extra.
func (e Event) Text(field string) (string, bool) {
	switch field {
	case FieldCourse:
		return e.Kurs, true
	case FieldKind:
		return e.Undervisningstyp, true
	case FieldRoom:
		return e.Lokal, true
	case FieldInfo:
		return e.Information, true
	}
	v, ok := e.Extra[field]
	return v, ok
}

// Time returns the value of one of the four datetime fields.
func (e Event) Time(field string) (time.Time, bool) {
	switch field {
	case FieldStartDate:
		return e.Startdatum, true
	case FieldStartTime:
		return e.Starttid, true
	case FieldEndDate:
		return e.Slutdatum, true
	case FieldEndTime:
		return e.Sluttid, true
	}
	return time.Time{}, false
}

// Start combines Startdatum and Starttid in loc.
func (e Event) Start(loc *time.Location) time.Time {
	return combine(e.Startdatum, e.Starttid, loc)
}

// End combines Slutdatum and Sluttid in loc.
func (e Event) End(loc *time.Location) time.Time {
	return combine(e.Slutdatum, e.Sluttid, loc)
}

func combine(date, clock time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	return time.Date(date.Year(), date.Month(), date.Day(), clock.Hour(), clock.Minute(), 0, 0, loc)
}

// Subject is the calendar title, "<course>: <kind>".
func (e Event) Subject() string {
	return e.Kurs + ": " + e.Undervisningstyp
}

func (e Event) String() string {
	return fmt.Sprintf("[%s %s-%s] %s",
		e.Startdatum.Format(DateLayout),
		e.Starttid.Format(TimeLayout),
		e.Sluttid.Format(TimeLayout),
		e.Subject(),
	)
}
