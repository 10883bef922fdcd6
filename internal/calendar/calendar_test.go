package calendar

import (
	"testing"
	"time"

	"todosync/store"
)

func repeatingTask(dueDate string, repeat store.RepeatType) store.Task {
	return store.Task{
		ID:         "t1",
		Title:      "repeat",
		DueDate:    dueDate,
		RepeatType: repeat,
		Repeating:  repeat != store.RepeatNone,
	}
}

func TestIsTaskOnDateNonRepeating(t *testing.T) {
	task := repeatingTask("01/01/2024", store.RepeatNone)

	if !IsTaskOnDate(task, "01/01/2024") {
		t.Error("non-repeating task should match its exact due date")
	}
	if IsTaskOnDate(task, "02/01/2024") {
		t.Error("non-repeating task should not match other dates")
	}
	if IsTaskOnDate(task, "31/12/2023") {
		t.Error("non-repeating task should not match dates before due date")
	}
}

func TestIsTaskOnDateDaily(t *testing.T) {
	task := repeatingTask("01/01/2024", store.RepeatDaily)

	for _, date := range []string{"01/01/2024", "02/01/2024", "15/03/2024"} {
		if !IsTaskOnDate(task, date) {
			t.Errorf("daily task should match %s", date)
		}
	}
	if IsTaskOnDate(task, "31/12/2023") {
		t.Error("daily task should not match dates before due date")
	}
}

func TestIsTaskOnDateWeekly(t *testing.T) {
	// 01/01/2024 is a Monday
	task := repeatingTask("01/01/2024", store.RepeatWeekly)

	tests := []struct {
		date string
		want bool
	}{
		{"01/01/2024", true},  // due date itself
		{"08/01/2024", true},  // exactly one week later
		{"09/01/2024", false}, // Tuesday
		{"15/01/2024", true},  // two weeks later
		{"31/12/2023", false}, // before due date
	}
	for _, tt := range tests {
		t.Run(tt.date, func(t *testing.T) {
			if got := IsTaskOnDate(task, tt.date); got != tt.want {
				t.Errorf("IsTaskOnDate(weekly, %s) = %v, want %v", tt.date, got, tt.want)
			}
		})
	}
}

func TestIsTaskOnDateMonthly(t *testing.T) {
	task := repeatingTask("15/01/2024", store.RepeatMonthly)

	tests := []struct {
		date string
		want bool
	}{
		{"15/01/2024", true},
		{"15/02/2024", true},
		{"15/01/2025", true}, // a year later, same day of month
		{"16/02/2024", false},
		{"15/12/2023", false}, // before due date
	}
	for _, tt := range tests {
		t.Run(tt.date, func(t *testing.T) {
			if got := IsTaskOnDate(task, tt.date); got != tt.want {
				t.Errorf("IsTaskOnDate(monthly, %s) = %v, want %v", tt.date, got, tt.want)
			}
		})
	}
}

func TestIsTaskOnDateUnknownRepeatType(t *testing.T) {
	task := repeatingTask("01/01/2024", store.RepeatType("yearly"))

	if !IsTaskOnDate(task, "01/01/2024") {
		t.Error("unknown repeat type should degrade to exact match")
	}
	if IsTaskOnDate(task, "01/01/2025") {
		t.Error("unknown repeat type should not match other dates")
	}
}

func TestIsTaskOnDateMalformed(t *testing.T) {
	task := repeatingTask("not-a-date", store.RepeatDaily)

	if !IsTaskOnDate(task, "not-a-date") {
		t.Error("malformed due date should degrade to string equality")
	}
	if IsTaskOnDate(task, "01/01/2024") {
		t.Error("malformed due date should not match a real date")
	}

	task2 := repeatingTask("01/01/2024", store.RepeatDaily)
	if IsTaskOnDate(task2, "garbage") {
		t.Error("malformed target date should degrade to string equality")
	}
}

func TestIsTaskOnDateEmptyDueDate(t *testing.T) {
	task := store.Task{ID: "t1", Title: "no due"}
	if IsTaskOnDate(task, "01/01/2024") {
		t.Error("task without due date should never match")
	}
}

func TestIsTimeOverdue(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 30, 0, 0, time.Local)

	if !IsTimeOverdue("09:00", now) {
		t.Error("09:00 should be overdue at 12:30")
	}
	if IsTimeOverdue("15:00", now) {
		t.Error("15:00 should not be overdue at 12:30")
	}
	if IsTimeOverdue("12:30", now) {
		t.Error("the current minute is not overdue")
	}
	if IsTimeOverdue("bogus", now) {
		t.Error("malformed time should never be overdue")
	}
}

func TestIsSameDay(t *testing.T) {
	a := time.Date(2024, 6, 1, 0, 5, 0, 0, time.Local)
	b := time.Date(2024, 6, 1, 23, 55, 0, 0, time.Local)
	c := time.Date(2024, 6, 2, 0, 1, 0, 0, time.Local)

	if !IsSameDay(a, b) {
		t.Error("same calendar day expected")
	}
	if IsSameDay(b, c) {
		t.Error("different calendar days expected")
	}
}

func TestParseDueDate(t *testing.T) {
	// Mid-month Monday to keep offset arithmetic readable.
	now := time.Date(2026, 6, 15, 14, 30, 0, 0, time.Local)

	cases := []struct {
		input string
		want  string
	}{
		{"", ""},
		{"01/07/2026", "01/07/2026"},
		{"today", "15/06/2026"},
		{"Tomorrow", "16/06/2026"},
		{"yesterday", "14/06/2026"},
		{"+7d", "22/06/2026"},
		{"-3d", "12/06/2026"},
		{"+2w", "29/06/2026"},
		{"+1m", "15/07/2026"},
	}
	for _, tc := range cases {
		got, err := ParseDueDate(tc.input, now)
		if err != nil {
			t.Errorf("ParseDueDate(%q) unexpected error: %v", tc.input, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseDueDate(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}

func TestParseDueDateRejectsBadInput(t *testing.T) {
	now := time.Date(2026, 6, 15, 0, 0, 0, 0, time.Local)

	for _, input := range []string{"2026-06-15", "next week", "+d", "15/13/2026"} {
		if _, err := ParseDueDate(input, now); err == nil {
			t.Errorf("ParseDueDate(%q) should fail", input)
		}
	}
}

func TestNextDueDate(t *testing.T) {
	cases := []struct {
		due    string
		repeat store.RepeatType
		want   string
	}{
		{"01/06/2026", store.RepeatDaily, "02/06/2026"},
		{"30/06/2026", store.RepeatDaily, "01/07/2026"},
		{"01/06/2026", store.RepeatWeekly, "08/06/2026"},
		{"15/06/2026", store.RepeatMonthly, "15/07/2026"},
		{"31/01/2026", store.RepeatMonthly, "03/03/2026"},
		{"01/06/2026", store.RepeatNone, "01/06/2026"},
		{"bogus", store.RepeatDaily, "bogus"},
	}
	for _, tc := range cases {
		if got := NextDueDate(tc.due, tc.repeat); got != tc.want {
			t.Errorf("NextDueDate(%q, %q) = %q, want %q", tc.due, tc.repeat, got, tc.want)
		}
	}
}
