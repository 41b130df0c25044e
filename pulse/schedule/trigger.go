package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/teranos/dawn/errors"
)

// Trigger is a daily wall-clock time with minute granularity, in local time.
type Trigger struct {
	Hour   int
	Minute int
}

// ParseTrigger parses "HH:MM" (24h). A single-digit hour is accepted.
func ParseTrigger(s string) (Trigger, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok || len(mm) != 2 || len(hh) == 0 || len(hh) > 2 {
		return Trigger{}, errors.Newf("invalid trigger time %q (expected HH:MM)", s)
	}

	hour, err := strconv.Atoi(hh)
	if err != nil || hour < 0 || hour > 23 {
		return Trigger{}, errors.Newf("invalid trigger hour in %q", s)
	}
	minute, err := strconv.Atoi(mm)
	if err != nil || minute < 0 || minute > 59 {
		return Trigger{}, errors.Newf("invalid trigger minute in %q", s)
	}

	return Trigger{Hour: hour, Minute: minute}, nil
}

// String formats the trigger as HH:MM.
func (t Trigger) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// Matches reports whether now falls inside the trigger minute.
func (t Trigger) Matches(now time.Time) bool {
	return now.Hour() == t.Hour && now.Minute() == t.Minute
}

// CronSpec returns the equivalent standard five-field cron expression.
func (t Trigger) CronSpec() string {
	return fmt.Sprintf("%d %d * * *", t.Minute, t.Hour)
}

// Next returns the next fire time strictly after the given time, in its location.
func (t Trigger) Next(after time.Time) time.Time {
	sched, err := cron.ParseStandard(t.CronSpec())
	if err != nil {
		// Unreachable for a parsed Trigger
		return time.Time{}
	}
	return sched.Next(after)
}
