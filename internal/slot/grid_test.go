package slot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/lounge-reservation/internal/apperr"
)

func mustClock(t *testing.T, s string) Clock {
	t.Helper()
	c, err := ParseClock(s)
	require.NoError(t, err)
	return c
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		want    Clock
		wantErr bool
	}{
		{"09:00", 540, false},
		{"18:30", 1110, false},
		{"18:30:00", 1110, false},
		{"24:00", 1440, false},
		{"24:30", 0, true},
		{"7", 0, true},
		{"aa:00", 0, true},
		{"10:75", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseClock(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.in[:5], got.String())
		})
	}
}

func TestOverlapsIsHalfOpen(t *testing.T) {
	six := mustClock(t, "18:00")
	assert.True(t, Overlaps(six, 60, six.Add(30), 60))
	assert.False(t, Overlaps(six, 60, six.Add(60), 30), "touching ranges do not overlap")
	assert.False(t, Overlaps(six.Add(60), 30, six, 60))
	assert.True(t, Overlaps(six, 120, six.Add(30), 30), "containment overlaps")
}

func TestAffectedSlots(t *testing.T) {
	got := AffectedSlots(mustClock(t, "18:00"), 90)
	assert.Equal(t, []Clock{1080, 1110, 1140}, got)
	assert.Len(t, AffectedSlots(mustClock(t, "09:00"), 30), 1)
}

func TestDaySlots(t *testing.T) {
	slots := DaySlots()
	require.Len(t, slots, 26)
	assert.Equal(t, Open, slots[0])
	assert.Equal(t, LastStart, slots[len(slots)-1])
}

func TestValidateRange(t *testing.T) {
	tests := []struct {
		name     string
		start    string
		duration int
		ok       bool
	}{
		{"opening slot", "09:00", 60, true},
		{"last start two hours", "21:30", 120, true},
		{"evening", "18:00", 90, true},
		{"before opening", "08:30", 60, false},
		{"midnight start", "00:00", 30, false},
		{"after grid last start", "22:00", 30, true},
		{"closing half hour", "23:30", 30, true},
		{"late two hours", "22:00", 120, true},
		{"late hour", "23:00", 60, true},
		{"late ninety", "22:30", 90, true},
		{"runs past close", "22:30", 120, false},
		{"hour past close", "23:30", 60, false},
		{"unaligned", "18:15", 60, false},
		{"odd duration", "18:00", 45, false},
		{"too long", "18:00", 150, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRange(mustClock(t, tt.start), tt.duration)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			var ve *apperr.ValidationError
			assert.ErrorAs(t, err, &ve)
		})
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2026-01-15")
	require.NoError(t, err)
	assert.Equal(t, "2026-01-15", d.Format(DateFormat))

	_, err = ParseDate("15/01/2026")
	var ve *apperr.ValidationError
	assert.ErrorAs(t, err, &ve)
}
