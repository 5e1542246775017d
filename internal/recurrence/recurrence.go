// Package recurrence computes occurrence times for recurring rules.
// All functions are pure: they take a rule and a reference time and
// return times, leaving persistence to the caller.
package recurrence

import (
	"sort"
	"time"

	"github.com/hearthtask/notify-engine/internal/domain"
)

// Expand returns the occurrences of the rule that are due at now — the
// rule's NextFireAt and every subsequent occurrence up to and including
// now — plus the new NextFireAt, which is always after now.
//
// At most max occurrences are returned. The pointer still advances past
// now even when the cap truncates the slice, so a rule re-enabled after a
// long pause does not flood the recipient with stale messages.
func Expand(rule *domain.RecurringRule, now time.Time, max int) ([]time.Time, time.Time) {
	var occurrences []time.Time
	t := rule.NextFireAt
	for !t.After(now) {
		if len(occurrences) < max {
			occurrences = append(occurrences, t)
		}
		t = Step(rule, t)
	}
	return occurrences, t
}

// NextAfter advances from the rule's NextFireAt until the result is after
// the reference time. Used when re-enabling a rule, which must never leave
// NextFireAt in the past.
func NextAfter(rule *domain.RecurringRule, after time.Time) time.Time {
	t := rule.NextFireAt
	for !t.After(after) {
		t = Step(rule, t)
	}
	return t
}

// Step returns the occurrence following t according to the rule's cadence.
func Step(rule *domain.RecurringRule, t time.Time) time.Time {
	switch rule.Cadence {
	case domain.CadenceWeekly:
		return stepWeekly(rule, t)
	case domain.CadenceMonthly:
		return stepMonthly(rule, t)
	default:
		return t.AddDate(0, 0, rule.Interval)
	}
}

// Align returns the first occurrence of the rule at or after start,
// preserving start's time-of-day. Used to seed NextFireAt at creation.
func Align(rule *domain.RecurringRule, start time.Time) time.Time {
	switch rule.Cadence {
	case domain.CadenceWeekly:
		days := sortedDays(rule.DaysOfWeek)
		cur := start.Weekday()
		for _, d := range days {
			if d >= cur {
				return start.AddDate(0, 0, int(d-cur))
			}
		}
		// Past the last listed weekday this week: wrap to the first day
		// of the next cycle.
		return start.AddDate(0, 0, 7*rule.Interval-int(cur)+int(days[0]))

	case domain.CadenceMonthly:
		if rule.DayOfMonth == 0 {
			return start
		}
		aligned := withClampedDay(start, rule.DayOfMonth)
		if aligned.Before(start) {
			return stepMonthly(rule, aligned)
		}
		return aligned

	default:
		return start
	}
}

// stepWeekly fires on each listed weekday within the cycle, preserving
// time-of-day, and advances the week pointer by Interval weeks only after
// the last listed weekday.
func stepWeekly(rule *domain.RecurringRule, t time.Time) time.Time {
	days := sortedDays(rule.DaysOfWeek)
	cur := t.Weekday()
	for _, d := range days {
		if d > cur {
			return t.AddDate(0, 0, int(d-cur))
		}
	}
	return t.AddDate(0, 0, 7*rule.Interval-int(cur)+int(days[0]))
}

// stepMonthly advances by Interval months, clamping to the last valid day
// when the anchor day does not exist in the target month (Jan 31 → Feb 28).
// The anchor is DayOfMonth when set, otherwise the current day — so a rule
// clamped to Feb 28 with anchor 31 returns to the 31st in March.
func stepMonthly(rule *domain.RecurringRule, t time.Time) time.Time {
	anchor := rule.DayOfMonth
	if anchor == 0 {
		anchor = t.Day()
	}
	// First-of-month arithmetic avoids Go's AddDate normalization
	// (Jan 31 + 1 month would become Mar 2/3).
	first := time.Date(t.Year(), t.Month(), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	first = first.AddDate(0, rule.Interval, 0)
	return withClampedDay(first, anchor)
}

func withClampedDay(t time.Time, day int) time.Time {
	last := daysInMonth(t.Year(), t.Month())
	if day > last {
		day = last
	}
	return time.Date(t.Year(), t.Month(), day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func sortedDays(days []time.Weekday) []time.Weekday {
	out := append([]time.Weekday(nil), days...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
