package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustWindow(t *testing.T, date, start, end string) TimeWindow {
	t.Helper()
	w, err := ParseWindow(date, start, end)
	require.NoError(t, err)
	return w
}

func TestOverlaps(t *testing.T) {
	base := mustWindow(t, "2025-06-01", "14:00", "16:00")
	tests := []struct {
		name  string
		other TimeWindow
		want  bool
	}{
		{"same window", base, true},
		{"starts inside", mustWindow(t, "2025-06-01", "15:00", "17:00"), true},
		{"ends inside", mustWindow(t, "2025-06-01", "13:00", "15:00"), true},
		{"contains", mustWindow(t, "2025-06-01", "13:00", "17:00"), true},
		{"contained", mustWindow(t, "2025-06-01", "14:30", "15:00"), true},
		{"touches end", mustWindow(t, "2025-06-01", "16:00", "18:00"), false},
		{"touches start", mustWindow(t, "2025-06-01", "12:00", "14:00"), false},
		{"other day", mustWindow(t, "2025-06-02", "14:00", "16:00"), false},
		{"full day", mustWindow(t, "2025-06-01", "00:00", "24:00"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Overlaps(base, tt.other))
			assert.Equal(t, tt.want, Overlaps(tt.other, base), "overlap must be symmetric")
			assert.True(t, Overlaps(tt.other, tt.other), "a window overlaps itself")
		})
	}
}

func TestWindowValidate(t *testing.T) {
	d := NewDate(2025, 6, 1)
	_, err := NewWindow(d, 600, 600)
	assert.ErrorIs(t, err, ErrInvalidWindow)

	_, err = NewWindow(d, 700, 600)
	assert.ErrorIs(t, err, ErrInvalidWindow)

	_, err = NewWindow(d, 600, MinutesPerDay+1)
	assert.ErrorIs(t, err, ErrInvalidWindow)

	_, err = NewWindow(Date{}, 600, 700)
	assert.ErrorIs(t, err, ErrInvalidDate)

	w, err := NewWindow(d, 0, MinutesPerDay)
	require.NoError(t, err)
	assert.Equal(t, "24h0m0s", w.Duration().String())
}

func TestParseMinute(t *testing.T) {
	tests := []struct {
		in      string
		want    Minute
		wantErr bool
	}{
		{"00:00", 0, false},
		{"9:30", 570, false},
		{"14:00:00", 840, false},
		{"24:00", MinutesPerDay, false},
		{"24:01", 0, true},
		{"12:5", 0, true},
		{"12:60", 0, true},
		{"12:00:30", 0, true},
		{"noon", 0, true},
		{"+9:00", 0, true},
		{"-0:00", 0, true},
		{"09:+5", 0, true},
		{" 9:00", 540, false},
		{"", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMinute(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidTime)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
	assert.Equal(t, "09:05", Minute(545).String())
}

func TestWindowJSON(t *testing.T) {
	w := mustWindow(t, "2025-06-01", "14:00", "16:30")
	b, err := json.Marshal(w)
	require.NoError(t, err)
	assert.JSONEq(t, `{"date":"2025-06-01","start_time":"14:00","end_time":"16:30"}`, string(b))

	var back TimeWindow
	require.NoError(t, json.Unmarshal(b, &back))
	assert.True(t, back.Date.Equal(w.Date))
	assert.Equal(t, w.Start, back.Start)
	assert.Equal(t, w.End, back.End)

	assert.Error(t, json.Unmarshal([]byte(`{"date":"01/06/2025"}`), &back))
	assert.Error(t, json.Unmarshal([]byte(`{"date":"2025-06-01","start_time":1400}`), &back))
}

func TestDate(t *testing.T) {
	d, err := ParseDate("2025-02-27")
	require.NoError(t, err)
	assert.Equal(t, "2025-03-01", d.AddDays(2).String())
	assert.Equal(t, 2, d.DaysUntil(d.AddDays(2)))
	assert.True(t, d == NewDate(2025, 2, 27), "dates of the same day compare equal")

	days := map[Date]int{d: 1}
	b, err := json.Marshal(days)
	require.NoError(t, err)
	assert.JSONEq(t, `{"2025-02-27":1}`, string(b))

	var scanned Date
	require.NoError(t, scanned.Scan([]byte("2025-02-27")))
	assert.Equal(t, d, scanned)
	v, err := d.Value()
	require.NoError(t, err)
	assert.Equal(t, "2025-02-27", v)

	_, err = ParseDate("2025-13-01")
	assert.ErrorIs(t, err, ErrInvalidDate)
}
