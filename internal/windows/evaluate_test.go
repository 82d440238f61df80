package windows

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	saturday10 = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	monday10   = time.Date(2025, 3, 3, 10, 0, 0, 0, time.UTC)
)

func officeHours() Window {
	return Window{WindowType: TypeScheduled, StartTime: "09:00", EndTime: "17:00", DaysOfWeek: []int{1, 2, 3, 4, 5}, Timezone: "UTC"}
}

func TestScheduledActive(t *testing.T) {
	cases := []struct {
		name   string
		window Window
		now    time.Time
		want   bool
	}{
		{"weekday inside", officeHours(), monday10, true},
		{"weekend", officeHours(), saturday10, false},
		{"end exclusive", officeHours(), time.Date(2025, 3, 3, 17, 0, 0, 0, time.UTC), false},
		{"start inclusive", officeHours(), time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC), true},
		{"cross midnight late", Window{StartTime: "22:00", EndTime: "06:00", DaysOfWeek: []int{1}}, time.Date(2025, 3, 3, 23, 30, 0, 0, time.UTC), true},
		{"cross midnight early", Window{StartTime: "22:00", EndTime: "06:00", DaysOfWeek: []int{1}}, time.Date(2025, 3, 3, 5, 59, 0, 0, time.UTC), true},
		{"cross midnight gap", Window{StartTime: "22:00", EndTime: "06:00", DaysOfWeek: []int{1}}, time.Date(2025, 3, 3, 12, 0, 0, 0, time.UTC), false},
		{"equal bounds whole day", Window{StartTime: "00:00", EndTime: "00:00", DaysOfWeek: []int{6}}, saturday10, true},
		{"local timezone before open", Window{StartTime: "09:00", EndTime: "17:00", DaysOfWeek: []int{1}, Timezone: "America/New_York"}, monday10, false},
		{"local timezone open", Window{StartTime: "09:00", EndTime: "17:00", DaysOfWeek: []int{1}, Timezone: "America/New_York"}, time.Date(2025, 3, 3, 15, 0, 0, 0, time.UTC), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ScheduledActive(tc.window, tc.now)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	_, err := ScheduledActive(Window{StartTime: "9am", EndTime: "17:00", DaysOfWeek: []int{1}}, monday10)
	require.Error(t, err)
	_, err = ScheduledActive(Window{StartTime: "09:00", EndTime: "17:00", DaysOfWeek: []int{1}, Timezone: "Mars/Olympus"}, monday10)
	require.Error(t, err)
}

func TestTemporaryAndCooldown(t *testing.T) {
	start := monday10.Add(-time.Hour)
	end := monday10.Add(time.Hour)

	assert.True(t, TemporaryActive(Window{StartsAt: &start, ExpiresAt: &end}, monday10))
	assert.True(t, TemporaryActive(Window{ExpiresAt: &end}, end), "upper bound inclusive")
	assert.False(t, TemporaryActive(Window{StartsAt: &end}, monday10))
	assert.True(t, TemporaryActive(Window{}, monday10))

	assert.True(t, CooldownActive(Window{ExpiresAt: &end}, monday10))
	assert.False(t, CooldownActive(Window{ExpiresAt: &end}, end), "cooldown ends at expiry")
	assert.False(t, CooldownActive(Window{}, monday10))
}

func TestAggregate(t *testing.T) {
	later := monday10.Add(time.Hour)
	earlier := monday10.Add(-time.Hour)

	v, err := Aggregate(nil, monday10)
	require.NoError(t, err)
	assert.Equal(t, Verdict{ScheduleGatePass: true}, v)

	v, err = Aggregate([]Window{officeHours()}, saturday10)
	require.NoError(t, err)
	assert.False(t, v.ScheduleGatePass)

	weekend := Window{WindowType: TypeScheduled, StartTime: "00:00", EndTime: "00:00", DaysOfWeek: []int{0, 6}}
	v, err = Aggregate([]Window{officeHours(), weekend}, saturday10)
	require.NoError(t, err)
	assert.True(t, v.ScheduleGatePass, "one active scheduled window is enough")

	expired := Window{WindowType: TypeTemporary, ExpiresAt: &earlier}
	v, err = Aggregate([]Window{officeHours(), expired}, monday10)
	require.NoError(t, err)
	assert.False(t, v.ScheduleGatePass, "temporary windows gate independently")

	v, err = Aggregate([]Window{{WindowType: TypeCooldown, ExpiresAt: &later}}, monday10)
	require.NoError(t, err)
	assert.True(t, v.CooldownBlocking)
	assert.True(t, v.ScheduleGatePass)

	_, err = Aggregate([]Window{{WindowType: "lunar"}}, monday10)
	require.Error(t, err)
}
