package windows

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
	_ "time/tzdata"
)

const minutesPerDay = 24 * 60

var locations sync.Map

func loadLocation(name string) (*time.Location, error) {
	if name == "" {
		return time.UTC, nil
	}
	if loc, ok := locations.Load(name); ok {
		return loc.(*time.Location), nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, err
	}
	locations.Store(name, loc)
	return loc, nil
}

// parseClock converts "HH:MM" to minutes after midnight.
func parseClock(raw string) (int, error) {
	hh, mm, ok := strings.Cut(raw, ":")
	if !ok || len(hh) != 2 || len(mm) != 2 {
		return 0, fmt.Errorf("invalid clock %q", raw)
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid hour in %q", raw)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute in %q", raw)
	}
	return h*60 + m, nil
}

// ScheduledActive reports whether now, seen in the window timezone, falls on
// one of its weekdays and inside [StartTime, EndTime). Windows with
// StartTime after EndTime cross midnight; equal bounds cover the whole day.
func ScheduledActive(w Window, now time.Time) (bool, error) {
	loc, err := loadLocation(w.Timezone)
	if err != nil {
		return false, fmt.Errorf("window %s: timezone: %w", w.ID, err)
	}
	start, err := parseClock(w.StartTime)
	if err != nil {
		return false, fmt.Errorf("window %s: %w", w.ID, err)
	}
	end, err := parseClock(w.EndTime)
	if err != nil {
		return false, fmt.Errorf("window %s: %w", w.ID, err)
	}
	local := now.In(loc)
	if !containsDay(w.DaysOfWeek, int(local.Weekday())) {
		return false, nil
	}
	if start == end {
		return true, nil
	}
	minute := local.Hour()*60 + local.Minute()
	span := (end - start + minutesPerDay) % minutesPerDay
	offset := (minute - start + minutesPerDay) % minutesPerDay
	return offset < span, nil
}

// TemporaryActive reports StartsAt <= now <= ExpiresAt with open bounds.
func TemporaryActive(w Window, now time.Time) bool {
	if w.StartsAt != nil && now.Before(*w.StartsAt) {
		return false
	}
	if w.ExpiresAt != nil && now.After(*w.ExpiresAt) {
		return false
	}
	return true
}

// CooldownActive reports now < ExpiresAt.
func CooldownActive(w Window, now time.Time) bool {
	return w.ExpiresAt != nil && now.Before(*w.ExpiresAt)
}

// Aggregate folds every window of a scope pair into one Verdict. Scheduled
// and temporary windows gate independently: each group, when present, needs
// at least one active member.
func Aggregate(ws []Window, now time.Time) (Verdict, error) {
	var (
		scheduled, temporary     int
		scheduledOK, temporaryOK bool
		cooldown                 bool
	)
	for _, w := range ws {
		switch w.WindowType {
		case TypeScheduled:
			scheduled++
			if scheduledOK {
				continue
			}
			ok, err := ScheduledActive(w, now)
			if err != nil {
				return Verdict{}, err
			}
			scheduledOK = ok
		case TypeTemporary:
			temporary++
			if TemporaryActive(w, now) {
				temporaryOK = true
			}
		case TypeCooldown:
			if CooldownActive(w, now) {
				cooldown = true
			}
		default:
			return Verdict{}, fmt.Errorf("window %s: unknown type %q", w.ID, w.WindowType)
		}
	}
	return Verdict{
		ScheduleGatePass: (scheduled == 0 || scheduledOK) && (temporary == 0 || temporaryOK),
		CooldownBlocking: cooldown,
	}, nil
}

func containsDay(days []int, day int) bool {
	for _, d := range days {
		if d == day {
			return true
		}
	}
	return false
}
