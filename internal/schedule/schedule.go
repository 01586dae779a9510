// Package schedule holds an ordered list of events and the staged
// within/keep filter that narrows it.
//
// Within marks which events a following Keep is allowed to drop; Keep then
// drops the marked events that fail its criteria:
//
//	s.Within(schedule.Contains("undervisningstyp", "Laboration")).
//		Keep(schedule.Contains("information", "Grupp A"))
package schedule

import (
	"fmt"
	"iter"

	appLog "tecal/internal/log"
	"tecal/internal/model"
)

const defaultName = "A schedule"

// Schedule is an ordered sequence of events plus a parallel eligibility mask.
// len(mask) == len(events) at all times.
type Schedule struct {
	name   string
	logger *appLog.Logger
	events []model.Event
	mask   []bool
}

// Option configures a Schedule.
type Option func(*Schedule)

// WithName sets the name used in logs and String.
func WithName(name string) Option {
	return func(s *Schedule) {
		if name != "" {
			s.name = name
		}
	}
}

// WithLogger sets the logger that reports filter results. Without it the
// Schedule is silent.
func WithLogger(l *appLog.Logger) Option {
	return func(s *Schedule) {
		s.logger = l
	}
}

// New returns a Schedule owning a copy of events, with every event eligible.
func New(events []model.Event, opts ...Option) *Schedule {
	s := &Schedule{
		name:   defaultName,
		events: append([]model.Event(nil), events...),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.mask = allTrue(len(s.events))
	return s
}

func allTrue(n int) []bool {
	m := make([]bool, n)
	for i := range m {
		m[i] = true
	}
	return m
}

func (s *Schedule) Name() string { return s.name }

func (s *Schedule) Len() int { return len(s.events) }

func (s *Schedule) String() string {
	return fmt.Sprintf("schedule '%s' with %d events", s.name, len(s.events))
}

// Events returns a copy of the events in order.
func (s *Schedule) Events() []model.Event {
	return append([]model.Event(nil), s.events...)
}

// All iterates over the events in order.
func (s *Schedule) All() iter.Seq2[int, model.Event] {
	return func(yield func(int, model.Event) bool) {
		for i, ev := range s.events {
			if !yield(i, ev) {
				return
			}
		}
	}
}

// Logger returns the logger configured with WithLogger, or nil.
func (s *Schedule) Logger() *appLog.Logger { return s.logger }

// Within restricts which events the next Keep may drop. An event stays
// eligible only if it was eligible before and matches at least one of the
// criteria. Repeated calls intersect their groups. Within with no criteria
// leaves nothing eligible.
func (s *Schedule) Within(criteria ...Criterion) *Schedule {
	remaining := 0
	for i, ev := range s.events {
		s.mask[i] = s.mask[i] && matchAny(ev, criteria)
		if s.mask[i] {
			remaining++
		}
	}
	s.logger.Debug("within",
		"schedule", s.name,
		"criteria", describe(criteria),
		"eligible", remaining,
	)
	return s
}

// Keep returns a new Schedule with every event that is either not eligible
// or matches all criteria. Keep with no criteria keeps everything. Both the
// result and the receiver start over with every event eligible.
func (s *Schedule) Keep(criteria ...Criterion) *Schedule {
	kept := make([]model.Event, 0, len(s.events))
	for i, ev := range s.events {
		if !s.mask[i] || matchAll(ev, criteria) {
			kept = append(kept, ev)
		}
	}

	out := New(kept, WithName(s.name), WithLogger(s.logger))
	s.mask = allTrue(len(s.events))

	s.logger.Info("filtered schedule",
		"schedule", s.name,
		"before", len(s.events),
		"after", out.Len(),
		"criteria", describe(criteria),
	)
	return out
}

// Rule is one named filter step: Within for each group, then Keep.
type Rule struct {
	Name   string
	Within [][]Criterion
	Keep   []Criterion
}

// Apply runs rules in order and returns the final Schedule.
func (s *Schedule) Apply(rules ...Rule) *Schedule {
	cur := s
	for _, r := range rules {
		for _, group := range r.Within {
			cur.Within(group...)
		}
		before := cur.Len()
		cur = cur.Keep(r.Keep...)
		s.logger.Debug("rule applied", "rule", r.Name, "dropped", before-cur.Len())
	}
	return cur
}
