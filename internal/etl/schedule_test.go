package etl

import (
	"testing"
	"time"

	"github.com/hydroserve/hydroserve/internal/models"
)

func TestNextRunAt_Crontab(t *testing.T) {
	task := &models.Task{Crontab: "0 * * * *"}
	now := time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)

	next := NextRunAt(task, now)
	if next == nil {
		t.Fatal("expected a next run time")
	}
	want := time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("expected %v, got %v", want, next)
	}
}

func TestNextRunAt_Interval(t *testing.T) {
	interval := 900
	task := &models.Task{IntervalSeconds: &interval}
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	next := NextRunAt(task, now)
	if next == nil {
		t.Fatal("expected a next run time")
	}
	if !next.Equal(now.Add(15 * time.Minute)) {
		t.Errorf("expected now+15m, got %v", next)
	}
}

func TestNextRunAt_CrontabWinsOverInterval(t *testing.T) {
	interval := 60
	task := &models.Task{Crontab: "0 0 * * *", IntervalSeconds: &interval}
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	next := NextRunAt(task, now)
	if next == nil {
		t.Fatal("expected a next run time")
	}
	want := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("expected midnight, got %v", next)
	}
}

func TestNextRunAt_Unscheduled(t *testing.T) {
	zero := 0
	for _, task := range []*models.Task{
		{},
		{IntervalSeconds: &zero},
	} {
		if next := NextRunAt(task, time.Now()); next != nil {
			t.Errorf("unscheduled task should get nil, got %v", next)
		}
	}
}

func TestNextRunAt_BadCrontab(t *testing.T) {
	task := &models.Task{Crontab: "not a crontab"}
	if next := NextRunAt(task, time.Now()); next != nil {
		t.Errorf("invalid crontab should get nil, got %v", next)
	}
}

func TestValidateSchedule(t *testing.T) {
	if err := ValidateSchedule(&models.Task{Crontab: "*/5 * * * *"}); err != nil {
		t.Errorf("valid crontab rejected: %v", err)
	}
	if err := ValidateSchedule(&models.Task{}); err != nil {
		t.Errorf("empty schedule rejected: %v", err)
	}

	err := ValidateSchedule(&models.Task{Crontab: "61 * * * *"})
	if err == nil {
		t.Fatal("expected error for invalid crontab")
	}
	if _, ok := err.(*ConfigError); !ok {
		t.Errorf("expected ConfigError, got %T", err)
	}
}
