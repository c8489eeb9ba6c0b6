package schemas

import "time"

// -- Schedule Schemas --

// Frequency defines how often a periodic schedule recurs.
type Frequency string

const (
	FreqOnce      Frequency = "ONCE"
	FreqHourly    Frequency = "HOURLY"
	FreqDaily     Frequency = "DAILY"
	FreqWeekly    Frequency = "WEEKLY"
	FreqBiweekly  Frequency = "BIWEEKLY"
	FreqMonthly   Frequency = "MONTHLY"
	FreqQuarterly Frequency = "QUARTERLY"
	FreqYearly    Frequency = "YEARLY"
	FreqCustom    Frequency = "CUSTOM" // Cron-style expression, delegated to a pluggable evaluator.
)

// ScheduleSpec describes a periodic schedule for scans and reports. It is
// owned by the schedule entity and mutated only by explicit user edits.
type ScheduleSpec struct {
	Frequency Frequency `json:"frequency"`

	// Interval is the number of frequency units between runs. Values below 1
	// are treated as 1.
	Interval int `json:"interval,omitempty"`

	// DaysOfWeek restricts WEEKLY and BIWEEKLY schedules to specific weekdays.
	DaysOfWeek []time.Weekday `json:"days_of_week,omitempty"`

	// DayOfMonth anchors MONTHLY/QUARTERLY/YEARLY schedules. It is clamped to
	// the last day of shorter months. Zero means "same day as the reference".
	DayOfMonth int `json:"day_of_month,omitempty"`

	// TimeOfDay is the wall-clock execution time in "HH:MM" form.
	TimeOfDay string `json:"time_of_day"`

	// Timezone is an IANA zone name (e.g. "Europe/Berlin"). Empty means UTC.
	Timezone string `json:"timezone,omitempty"`

	StartDate time.Time  `json:"start_date"`
	EndDate   *time.Time `json:"end_date,omitempty"`

	// Expression carries the cron expression for CUSTOM schedules.
	Expression string `json:"expression,omitempty"`
}

// ScheduleStatus is the activation state of a schedule.
type ScheduleStatus string

const (
	ScheduleActive  ScheduleStatus = "ACTIVE"
	SchedulePaused  ScheduleStatus = "PAUSED"
	ScheduleExpired ScheduleStatus = "EXPIRED"
)

// ScheduleState is the long-lived execution state of a schedule. NextRun is
// always strictly after the reference time used to compute it, except for a
// one-shot schedule whose NextRun may equal the start date.
type ScheduleState struct {
	NextRun *time.Time     `json:"next_run,omitempty"`
	LastRun *time.Time     `json:"last_run,omitempty"`
	Status  ScheduleStatus `json:"status"`
}
