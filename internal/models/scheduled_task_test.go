package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNextDueRecurringDaily(t *testing.T) {
	rule := "FREQ=DAILY"
	due := time.Now().Add(-2 * time.Hour)
	task := ScheduledTask{
		TaskName:          "penalty_check",
		TaskType:          ScheduledTaskTypeRecurring,
		RecurringInterval: &rule,
		Due:               due,
	}

	next := task.NextDue()
	assert.True(t, next.After(time.Now()), "next occurrence must be in the future")
	assert.True(t, next.Sub(due) <= 25*time.Hour, "daily rule advances by at most one day")
}

func TestNextDueOneTimeUnchanged(t *testing.T) {
	due := time.Now().Add(-time.Hour)
	task := ScheduledTask{TaskType: ScheduledTaskTypeOneTime, Due: due}
	assert.Equal(t, due, task.NextDue())
}

func TestNextDueBadRuleFallsBack(t *testing.T) {
	rule := "not an rrule"
	due := time.Now().Add(-time.Hour)
	task := ScheduledTask{
		TaskType:          ScheduledTaskTypeRecurring,
		RecurringInterval: &rule,
		Due:               due,
	}
	assert.Equal(t, due, task.NextDue())
}
