package etl

import (
	"time"

	"github.com/hashicorp/cronexpr"
	"github.com/hydroserve/hydroserve/internal/models"
)

// NextRunAt computes when the task should run next: the next crontab
// firing, or now plus the fixed interval. Tasks without a schedule get
// nil, which clears any previously computed time. The result is never in
// the past.
func NextRunAt(task *models.Task, now time.Time) *time.Time {
	if task.Crontab != "" {
		expr, err := cronexpr.Parse(task.Crontab)
		if err != nil {
			return nil
		}
		next := expr.Next(now)
		if next.IsZero() {
			return nil
		}
		return &next
	}

	if task.IntervalSeconds != nil && *task.IntervalSeconds > 0 {
		next := now.Add(time.Duration(*task.IntervalSeconds) * time.Second)
		return &next
	}

	return nil
}

// ValidateSchedule checks a task's schedule configuration at save time so
// a bad crontab fails the request instead of the first run.
func ValidateSchedule(task *models.Task) error {
	if task.Crontab == "" {
		return nil
	}
	if _, err := cronexpr.Parse(task.Crontab); err != nil {
		return &ConfigError{Message: "invalid crontab expression: " + err.Error()}
	}
	return nil
}
