package recurrence_test

import (
	"testing"
	"time"

	"github.com/hearthtask/notify-engine/internal/domain"
	"github.com/hearthtask/notify-engine/internal/recurrence"
)

func ts(year int, month time.Month, day, hour, min int) time.Time {
	return time.Date(year, month, day, hour, min, 0, 0, time.UTC)
}

func TestStep_Daily(t *testing.T) {
	rule := &domain.RecurringRule{Cadence: domain.CadenceDaily, Interval: 1}
	got := recurrence.Step(rule, ts(2026, time.March, 10, 9, 0))
	want := ts(2026, time.March, 11, 9, 0)
	if !got.Equal(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}

	rule.Interval = 3
	got = recurrence.Step(rule, ts(2026, time.March, 10, 9, 0))
	want = ts(2026, time.March, 13, 9, 0)
	if !got.Equal(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

// TestStep_WeeklyMultipleDays verifies a Mon/Wed/Fri rule fires on each
// listed day within the week and only then advances the week pointer.
func TestStep_WeeklyMultipleDays(t *testing.T) {
	rule := &domain.RecurringRule{
		Cadence:    domain.CadenceWeekly,
		Interval:   1,
		DaysOfWeek: []time.Weekday{time.Monday, time.Wednesday, time.Friday},
	}

	// 2026-03-09 is a Monday.
	mon := ts(2026, time.March, 9, 18, 0)

	wed := recurrence.Step(rule, mon)
	if !wed.Equal(ts(2026, time.March, 11, 18, 0)) {
		t.Fatalf("Mon -> expected Wed Mar 11, got %v", wed)
	}

	fri := recurrence.Step(rule, wed)
	if !fri.Equal(ts(2026, time.March, 13, 18, 0)) {
		t.Fatalf("Wed -> expected Fri Mar 13, got %v", fri)
	}

	nextMon := recurrence.Step(rule, fri)
	if !nextMon.Equal(ts(2026, time.March, 16, 18, 0)) {
		t.Fatalf("Fri -> expected Mon Mar 16, got %v", nextMon)
	}
}

func TestStep_WeeklyEveryOtherWeek(t *testing.T) {
	rule := &domain.RecurringRule{
		Cadence:    domain.CadenceWeekly,
		Interval:   2,
		DaysOfWeek: []time.Weekday{time.Saturday},
	}

	// 2026-03-14 is a Saturday.
	sat := ts(2026, time.March, 14, 10, 0)
	got := recurrence.Step(rule, sat)
	want := ts(2026, time.March, 28, 10, 0)
	if !got.Equal(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

// TestStep_MonthlyClamp verifies the day-31 anchor clamps to the end of
// February and then returns to the 31st in March.
func TestStep_MonthlyClamp(t *testing.T) {
	rule := &domain.RecurringRule{
		Cadence:    domain.CadenceMonthly,
		Interval:   1,
		DayOfMonth: 31,
	}

	jan := ts(2026, time.January, 31, 8, 0)

	feb := recurrence.Step(rule, jan)
	if !feb.Equal(ts(2026, time.February, 28, 8, 0)) {
		t.Fatalf("Jan 31 -> expected Feb 28, got %v", feb)
	}

	mar := recurrence.Step(rule, feb)
	if !mar.Equal(ts(2026, time.March, 31, 8, 0)) {
		t.Fatalf("Feb 28 -> expected Mar 31, got %v", mar)
	}
}

func TestStep_MonthlyLeapYear(t *testing.T) {
	rule := &domain.RecurringRule{
		Cadence:    domain.CadenceMonthly,
		Interval:   1,
		DayOfMonth: 30,
	}

	jan := ts(2028, time.January, 30, 8, 0)
	feb := recurrence.Step(rule, jan)
	if !feb.Equal(ts(2028, time.February, 29, 8, 0)) {
		t.Fatalf("expected Feb 29 in a leap year, got %v", feb)
	}
}

func TestExpand_ReturnsAllDueOccurrences(t *testing.T) {
	rule := &domain.RecurringRule{
		Cadence:    domain.CadenceDaily,
		Interval:   1,
		NextFireAt: ts(2026, time.March, 10, 9, 0),
	}

	now := ts(2026, time.March, 12, 12, 0)
	occ, next := recurrence.Expand(rule, now, 10)

	if len(occ) != 3 {
		t.Fatalf("expected 3 occurrences, got %d", len(occ))
	}
	if !occ[0].Equal(ts(2026, time.March, 10, 9, 0)) {
		t.Fatalf("unexpected first occurrence %v", occ[0])
	}
	if !next.After(now) {
		t.Fatalf("next fire %v must be after now %v", next, now)
	}
	if !next.Equal(ts(2026, time.March, 13, 9, 0)) {
		t.Fatalf("expected next Mar 13, got %v", next)
	}
}

// TestExpand_CapStillAdvancesPointer verifies that a rule far behind now
// is capped in output but its pointer still lands after now, so the gap
// is never back-filled on a later tick.
func TestExpand_CapStillAdvancesPointer(t *testing.T) {
	rule := &domain.RecurringRule{
		Cadence:    domain.CadenceDaily,
		Interval:   1,
		NextFireAt: ts(2026, time.January, 1, 9, 0),
	}

	now := ts(2026, time.March, 1, 12, 0)
	occ, next := recurrence.Expand(rule, now, 5)

	if len(occ) != 5 {
		t.Fatalf("expected occurrence cap of 5, got %d", len(occ))
	}
	if !next.After(now) {
		t.Fatalf("pointer %v must advance past now %v despite cap", next, now)
	}
}

func TestExpand_NothingDue(t *testing.T) {
	rule := &domain.RecurringRule{
		Cadence:    domain.CadenceDaily,
		Interval:   1,
		NextFireAt: ts(2026, time.March, 20, 9, 0),
	}

	occ, next := recurrence.Expand(rule, ts(2026, time.March, 12, 12, 0), 10)
	if len(occ) != 0 {
		t.Fatalf("expected no occurrences, got %d", len(occ))
	}
	if !next.Equal(rule.NextFireAt) {
		t.Fatalf("pointer must not move when nothing is due, got %v", next)
	}
}

func TestNextAfter_SkipsPastOccurrences(t *testing.T) {
	rule := &domain.RecurringRule{
		Cadence:    domain.CadenceWeekly,
		Interval:   1,
		DaysOfWeek: []time.Weekday{time.Sunday},
		NextFireAt: ts(2026, time.March, 1, 17, 0), // a Sunday
	}

	now := ts(2026, time.March, 20, 0, 0)
	got := recurrence.NextAfter(rule, now)
	want := ts(2026, time.March, 22, 17, 0) // next Sunday after now
	if !got.Equal(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestAlign_Weekly(t *testing.T) {
	rule := &domain.RecurringRule{
		Cadence:    domain.CadenceWeekly,
		Interval:   1,
		DaysOfWeek: []time.Weekday{time.Monday, time.Friday},
	}

	// Start on a Wednesday: first occurrence is that Friday.
	start := ts(2026, time.March, 11, 7, 30)
	got := recurrence.Align(rule, start)
	want := ts(2026, time.March, 13, 7, 30)
	if !got.Equal(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}

	// Start exactly on a listed day: that day counts.
	start = ts(2026, time.March, 9, 7, 30) // Monday
	got = recurrence.Align(rule, start)
	if !got.Equal(start) {
		t.Fatalf("expected alignment to keep %v, got %v", start, got)
	}
}

func TestAlign_MonthlyPastAnchor(t *testing.T) {
	rule := &domain.RecurringRule{
		Cadence:    domain.CadenceMonthly,
		Interval:   1,
		DayOfMonth: 5,
	}

	// Starting on the 10th, the next anchor is the 5th of next month.
	start := ts(2026, time.March, 10, 9, 0)
	got := recurrence.Align(rule, start)
	want := ts(2026, time.April, 5, 9, 0)
	if !got.Equal(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}
