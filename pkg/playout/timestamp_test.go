package playout

import (
	"testing"
	"time"
)

func TestIsNewerTimestamp(t *testing.T) {
	tests := []struct {
		name          string
		timestamp     uint32
		prevTimestamp uint32
		want          bool
	}{
		{"equal", 1000, 1000, false},
		{"newer", 1960, 1000, true},
		{"older", 1000, 1960, false},
		{"newer across wrap", 5, 0xFFFFFFF0, true},
		{"older across wrap", 0xFFFFFFF0, 5, false},
		{"just below half range", 0x7FFFFFFF, 0, true},
		{"just above half range", 0x80000001, 0, false},
		{"exactly half range forward", 0x80000000, 0, true},
		{"exactly half range backward", 0, 0x80000000, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsNewerTimestamp(tt.timestamp, tt.prevTimestamp)
			if got != tt.want {
				t.Errorf("IsNewerTimestamp(%#x, %#x) = %v, want %v",
					tt.timestamp, tt.prevTimestamp, got, tt.want)
			}
		})
	}
}

func TestIsNewerTimestampAntisymmetric(t *testing.T) {
	// For any distinct pair exactly one direction is newer, including the
	// ambiguous half-range case.
	pairs := [][2]uint32{
		{0, 1},
		{0, 0x7FFFFFFF},
		{0, 0x80000000},
		{0, 0x80000001},
		{0xFFFFFFFF, 3},
		{123456789, 987654321},
	}
	for _, p := range pairs {
		a, b := p[0], p[1]
		if IsNewerTimestamp(a, b) == IsNewerTimestamp(b, a) {
			t.Errorf("IsNewerTimestamp not antisymmetric for %#x, %#x", a, b)
		}
	}
}

func TestUnwrapTimestampDelta(t *testing.T) {
	tests := []struct {
		name string
		prev uint32
		curr uint32
		want int64
	}{
		{"zero", 1000, 1000, 0},
		{"forward", 1000, 1960, 960},
		{"backward", 1960, 1000, -960},
		{"forward across wrap", 0xFFFFFFFE, 2, 4},
		{"backward across wrap", 2, 0xFFFFFFFE, -4},
		{"max forward", 0, 0x7FFFFFFF, 2147483647},
		{"half range is negative", 0, 0x80000000, -2147483648},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := UnwrapTimestampDelta(tt.prev, tt.curr)
			if got != tt.want {
				t.Errorf("UnwrapTimestampDelta(%#x, %#x) = %d, want %d",
					tt.prev, tt.curr, got, tt.want)
			}
		})
	}
}

func TestTimestampDeltaMs(t *testing.T) {
	tests := []struct {
		name         string
		prev         uint32
		curr         uint32
		sampleRateHz int
		want         int
	}{
		{"one packet at 48kHz", 0, 960, 48000, 20},
		{"one packet at 16kHz", 0, 320, 16000, 20},
		{"one packet at 8kHz", 0, 80, 8000, 10},
		{"negative delta", 960, 0, 48000, -20},
		{"across wrap", 0xFFFFFFF0, 944, 48000, 20},
		{"truncates toward zero", 0, 12, 8000, 1},
		{"negative truncates toward zero", 12, 0, 8000, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TimestampDeltaMs(tt.prev, tt.curr, tt.sampleRateHz)
			if got != tt.want {
				t.Errorf("TimestampDeltaMs(%#x, %#x, %d) = %d, want %d",
					tt.prev, tt.curr, tt.sampleRateHz, got, tt.want)
			}
		})
	}
}

func TestDurationToTimestamp(t *testing.T) {
	tests := []struct {
		name         string
		d            time.Duration
		sampleRateHz int
		want         uint32
	}{
		{"20ms at 48kHz", 20 * time.Millisecond, 48000, 960},
		{"10ms at 8kHz", 10 * time.Millisecond, 8000, 80},
		{"one second at 90kHz", time.Second, 90000, 90000},
		{"zero", 0, 48000, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DurationToTimestamp(tt.d, tt.sampleRateHz)
			if got != tt.want {
				t.Errorf("DurationToTimestamp(%v, %d) = %d, want %d",
					tt.d, tt.sampleRateHz, got, tt.want)
			}
		})
	}
}
