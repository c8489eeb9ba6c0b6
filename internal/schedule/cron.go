package schedule

import (
	"time"

	"github.com/robfig/cron/v3"

	"github.com/cindralabs/riskcore/api/schemas"
)

// CronEvaluator resolves CUSTOM schedule expressions using the standard
// five-field cron dialect plus descriptors such as "@daily".
type CronEvaluator struct {
	parser cron.Parser
}

// NewCronEvaluator creates the default expression evaluator.
func NewCronEvaluator() *CronEvaluator {
	return &CronEvaluator{
		parser: cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
	}
}

// Next returns the first activation of the expression strictly after the
// given instant. A malformed expression is a ValidationError.
func (c *CronEvaluator) Next(expression string, after time.Time) (time.Time, error) {
	sched, err := c.parser.Parse(expression)
	if err != nil {
		return time.Time{}, &schemas.ValidationError{Field: "expression", Reason: err.Error()}
	}
	next := sched.Next(after)
	if next.IsZero() {
		return time.Time{}, &schemas.ValidationError{Field: "expression", Reason: "expression has no future activation"}
	}
	return next, nil
}
