package schedule

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"tecal/internal/model"
)

// Criterion is a single (field, value) pair. Datetime fields carry a Time and
// are matched by equality; every other field carries Text and is matched by
// substring containment.
type Criterion struct {
	Field string
	Text  string
	Time  time.Time
}

// Contains builds a containment criterion for a text field.
func Contains(field, text string) Criterion {
	return Criterion{Field: model.NormalizeField(field), Text: text}
}

// At builds an exact-match criterion for one of the datetime fields.
func At(field string, t time.Time) Criterion {
	return Criterion{Field: model.NormalizeField(field), Time: t}
}

// ParseCriterion converts a string value for field. Values for datetime
// fields must use the field's layout (2006-01-02 for dates, 15:04 for times).
func ParseCriterion(field, value string) (Criterion, error) {
	field = model.NormalizeField(field)
	if field == "" {
		return Criterion{}, fmt.Errorf("criterion: empty field name")
	}
	if !model.IsExactField(field) {
		return Contains(field, value), nil
	}
	t, err := model.ParseFieldTime(field, value)
	if err != nil {
		return Criterion{}, fmt.Errorf("criterion: %w", err)
	}
	return At(field, t), nil
}

// ParseCriteria converts a field→value map, sorted by field so that logs and
// errors are deterministic.
func ParseCriteria(m map[string]string) ([]Criterion, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]Criterion, 0, len(keys))
	for _, k := range keys {
		c, err := ParseCriterion(k, m[k])
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// Matches reports whether ev satisfies c. A field missing from ev never
// matches, and a datetime field never matches by containment.
func (c Criterion) Matches(ev model.Event) bool {
	if model.IsExactField(c.Field) {
		t, ok := ev.Time(c.Field)
		return ok && t.Equal(c.Time)
	}
	v, ok := ev.Text(c.Field)
	return ok && strings.Contains(v, c.Text)
}

func (c Criterion) String() string {
	if layout, ok := model.LayoutFor(c.Field); ok {
		return c.Field + "=" + c.Time.Format(layout)
	}
	return c.Field + "~" + c.Text
}

func matchAny(ev model.Event, criteria []Criterion) bool {
	for _, c := range criteria {
		if c.Matches(ev) {
			return true
		}
	}
	return false
}

func matchAll(ev model.Event, criteria []Criterion) bool {
	for _, c := range criteria {
		if !c.Matches(ev) {
			return false
		}
	}
	return true
}

func describe(criteria []Criterion) string {
	parts := make([]string, len(criteria))
	for i, c := range criteria {
		parts[i] = c.String()
	}
	return strings.Join(parts, ",")
}
