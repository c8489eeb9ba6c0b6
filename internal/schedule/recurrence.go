// Package schedule computes the next execution time for periodic scan and
// report schedules. ComputeNextRun is a pure function over the schedule spec
// and a reference time: no hidden state, identical inputs always produce
// identical results.
package schedule

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/cindralabs/riskcore/api/schemas"
)

// ExpressionEvaluator resolves CUSTOM (cron-style) schedule expressions. The
// exact expression dialect is the evaluator's concern; the scheduler only
// requires the next activation strictly after a given instant.
type ExpressionEvaluator interface {
	Next(expression string, after time.Time) (time.Time, error)
}

// Scheduler computes next-run timestamps for all supported frequencies.
type Scheduler struct {
	expr ExpressionEvaluator
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithExpressionEvaluator replaces the default cron evaluator, primarily for
// tests and for deployments with a different expression dialect.
func WithExpressionEvaluator(e ExpressionEvaluator) Option {
	return func(s *Scheduler) { s.expr = e }
}

// New creates a Scheduler. CUSTOM schedules are delegated to the standard
// cron evaluator unless an alternative is injected.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{expr: NewCronEvaluator()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ComputeNextRun returns the next execution time for the spec strictly after
// referenceTime, or nil for a one-shot schedule that has already fired.
//
// A computed run that would fall past the spec's end date returns a
// *schemas.ScheduleExpiredError; the caller marks the schedule EXPIRED.
func (s *Scheduler) ComputeNextRun(spec schemas.ScheduleSpec, referenceTime time.Time) (*time.Time, error) {
	loc := time.UTC
	if spec.Timezone != "" {
		var err error
		if loc, err = time.LoadLocation(spec.Timezone); err != nil {
			return nil, &schemas.ValidationError{Field: "timezone", Reason: err.Error()}
		}
	}

	if spec.Frequency == schemas.FreqOnce {
		if spec.StartDate.After(referenceTime) {
			next := spec.StartDate
			return &next, s.checkEndDate(spec, next)
		}
		// Already fired; a one-shot schedule must be re-armed manually.
		return nil, nil
	}

	// A recurring schedule never runs before its start date. Computing from
	// just before the start keeps the strictly-after invariant intact.
	ref := referenceTime.In(loc)
	if spec.StartDate.After(referenceTime) {
		ref = spec.StartDate.In(loc).Add(-time.Nanosecond)
	}

	next, err := s.advance(spec, ref, loc)
	if err != nil {
		return nil, err
	}
	if err := s.checkEndDate(spec, next); err != nil {
		return nil, err
	}
	return &next, nil
}

func (s *Scheduler) advance(spec schemas.ScheduleSpec, ref time.Time, loc *time.Location) (time.Time, error) {
	interval := spec.Interval
	if interval < 1 {
		interval = 1
	}

	tod, err := parseTimeOfDay(spec.TimeOfDay)
	if err != nil {
		return time.Time{}, err
	}

	switch spec.Frequency {
	case schemas.FreqHourly:
		step := time.Duration(interval) * time.Hour
		next := snapMinute(ref.Add(step), tod)
		if !next.After(ref) {
			next = next.Add(step)
		}
		return next, nil

	case schemas.FreqDaily:
		next := snapClock(ref.AddDate(0, 0, interval), tod)
		if !next.After(ref) {
			next = next.AddDate(0, 0, interval)
		}
		return next, nil

	case schemas.FreqWeekly, schemas.FreqBiweekly:
		weeks := interval
		if spec.Frequency == schemas.FreqBiweekly {
			weeks *= 2
		}
		if len(spec.DaysOfWeek) > 0 {
			return nextListedWeekday(ref, spec.DaysOfWeek, weeks, tod), nil
		}
		next := snapClock(ref.AddDate(0, 0, 7*weeks), tod)
		if !next.After(ref) {
			next = next.AddDate(0, 0, 7*weeks)
		}
		return next, nil

	case schemas.FreqMonthly, schemas.FreqQuarterly:
		months := interval
		if spec.Frequency == schemas.FreqQuarterly {
			months *= 3
		}
		next := addMonths(ref, months, spec.DayOfMonth, tod, loc)
		if !next.After(ref) {
			next = addMonths(next, months, spec.DayOfMonth, tod, loc)
		}
		return next, nil

	case schemas.FreqYearly:
		next := addYears(ref, interval, spec.DayOfMonth, tod, loc)
		if !next.After(ref) {
			next = addYears(next, interval, spec.DayOfMonth, tod, loc)
		}
		return next, nil

	case schemas.FreqCustom:
		if s.expr == nil {
			return time.Time{}, &schemas.ValidationError{Field: "frequency", Reason: "no expression evaluator configured for CUSTOM schedules"}
		}
		if spec.Expression == "" {
			return time.Time{}, &schemas.ValidationError{Field: "expression", Reason: "CUSTOM schedule requires an expression"}
		}
		return s.expr.Next(spec.Expression, ref)

	default:
		return time.Time{}, &schemas.ValidationError{
			Field:  "frequency",
			Reason: fmt.Sprintf("unsupported frequency %q", spec.Frequency),
		}
	}
}

func (s *Scheduler) checkEndDate(spec schemas.ScheduleSpec, next time.Time) error {
	if spec.EndDate != nil && next.After(*spec.EndDate) {
		return &schemas.ScheduleExpiredError{EndDate: *spec.EndDate}
	}
	return nil
}

// Advance applies one recurrence computation to a schedule's execution state.
// Paused schedules are left untouched. A run past the end date flips the
// status to EXPIRED and clears the next run; callers detect the flip to emit
// the expiry notification exactly once.
func (s *Scheduler) Advance(spec schemas.ScheduleSpec, state schemas.ScheduleState, referenceTime time.Time) (schemas.ScheduleState, error) {
	if state.Status == schemas.SchedulePaused || state.Status == schemas.ScheduleExpired {
		return state, nil
	}

	out := state
	out.Status = schemas.ScheduleActive

	next, err := s.ComputeNextRun(spec, referenceTime)
	if err != nil {
		var expired *schemas.ScheduleExpiredError
		if errors.As(err, &expired) {
			out.NextRun = nil
			out.Status = schemas.ScheduleExpired
			return out, nil
		}
		return state, err
	}

	out.NextRun = next
	return out, nil
}

// -- helpers --

type timeOfDay struct {
	hour, minute int
	set          bool
}

func parseTimeOfDay(raw string) (timeOfDay, error) {
	if raw == "" {
		return timeOfDay{}, nil
	}
	var h, m int
	if _, err := fmt.Sscanf(raw, "%d:%d", &h, &m); err != nil || h < 0 || h > 23 || m < 0 || m > 59 {
		return timeOfDay{}, &schemas.ValidationError{Field: "time_of_day", Reason: fmt.Sprintf("malformed time of day %q", raw)}
	}
	return timeOfDay{hour: h, minute: m, set: true}, nil
}

// snapClock pins t to the schedule's wall-clock execution time.
func snapClock(t time.Time, tod timeOfDay) time.Time {
	if !tod.set {
		return t.Truncate(time.Minute)
	}
	return time.Date(t.Year(), t.Month(), t.Day(), tod.hour, tod.minute, 0, 0, t.Location())
}

// snapMinute pins only the minute, for hourly schedules.
func snapMinute(t time.Time, tod timeOfDay) time.Time {
	minute := 0
	if tod.set {
		minute = tod.minute
	}
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), minute, 0, 0, t.Location())
}

// nextListedWeekday picks the earliest listed day-of-week strictly after the
// reference day-of-week, wrapping to the smallest listed day next week when
// none remain in the current week. Multi-week intervals add whole weeks on
// wrap only.
func nextListedWeekday(ref time.Time, days []time.Weekday, weeks int, tod timeOfDay) time.Time {
	sorted := append([]time.Weekday(nil), days...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	refDay := ref.Weekday()
	for _, d := range sorted {
		if d > refDay {
			return snapClock(ref.AddDate(0, 0, int(d-refDay)), tod)
		}
	}

	// Wrap to the smallest listed day of the next occurrence week.
	offset := 7 - int(refDay) + int(sorted[0]) + 7*(weeks-1)
	return snapClock(ref.AddDate(0, 0, offset), tod)
}

// addMonths performs month arithmetic without the normalization surprises of
// AddDate (Jan 31 + 1 month must be Feb 28/29, not Mar 2).
func addMonths(ref time.Time, months, dayOfMonth int, tod timeOfDay, loc *time.Location) time.Time {
	total := int(ref.Month()) - 1 + months
	year := ref.Year() + total/12
	month := time.Month(total%12 + 1)

	day := dayOfMonth
	if day <= 0 {
		day = ref.Day()
	}
	if last := daysIn(year, month); day > last {
		day = last
	}

	hour, minute := ref.Hour(), ref.Minute()
	if tod.set {
		hour, minute = tod.hour, tod.minute
	}
	return time.Date(year, month, day, hour, minute, 0, 0, loc)
}

func addYears(ref time.Time, years, dayOfMonth int, tod timeOfDay, loc *time.Location) time.Time {
	year := ref.Year() + years

	day := dayOfMonth
	if day <= 0 {
		day = ref.Day()
	}
	if last := daysIn(year, ref.Month()); day > last {
		day = last
	}

	hour, minute := ref.Hour(), ref.Minute()
	if tod.set {
		hour, minute = tod.hour, tod.minute
	}
	return time.Date(year, ref.Month(), day, hour, minute, 0, 0, loc)
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
