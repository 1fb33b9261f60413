package schedule

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Cron expressions use the standard five fields: minute, hour,
// day of month, month, day of week.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ValidateCron reports whether expr is a well-formed five-field cron
// expression. Failures wrap ErrInvalidCron.
func ValidateCron(expr string) error {
	if _, err := cronParser.Parse(expr); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidCron, err)
	}
	return nil
}

// NextRun returns the first instant after the given time at which expr
// fires.
func NextRun(expr string, after time.Time) (time.Time, error) {
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s", ErrInvalidCron, err)
	}
	return sched.Next(after), nil
}
