package playout

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTargetDelayNotifier_FirstAlwaysNotifies(t *testing.T) {
	n := NewTargetDelayNotifier(DefaultNotifierConfig())

	assert.True(t, n.ShouldNotify(80, time.Now()))
}

func TestTargetDelayNotifier_IncreaseTriggersImmediately(t *testing.T) {
	n := NewTargetDelayNotifier(DefaultNotifierConfig())
	t0 := time.Now()
	n.Record(100, t0)

	// One bucket of growth right after the last notification.
	assert.True(t, n.ShouldNotify(120, t0.Add(10*time.Millisecond)))
	// Just below the threshold: not urgent.
	assert.False(t, n.ShouldNotify(119, t0.Add(10*time.Millisecond)))
}

func TestTargetDelayNotifier_SmallChangeWaitsForInterval(t *testing.T) {
	n := NewTargetDelayNotifier(DefaultNotifierConfig())
	t0 := time.Now()
	n.Record(100, t0)

	assert.False(t, n.ShouldNotify(110, t0.Add(10*time.Millisecond)))
	assert.True(t, n.ShouldNotify(110, t0.Add(time.Second)))
}

func TestTargetDelayNotifier_DecreaseWaitsForInterval(t *testing.T) {
	n := NewTargetDelayNotifier(DefaultNotifierConfig())
	t0 := time.Now()
	n.Record(100, t0)

	// Draining latency is not urgent.
	assert.False(t, n.ShouldNotify(40, t0.Add(10*time.Millisecond)))
	assert.True(t, n.ShouldNotify(40, t0.Add(time.Second)))
}

func TestTargetDelayNotifier_UnchangedStaysQuiet(t *testing.T) {
	n := NewTargetDelayNotifier(DefaultNotifierConfig())
	t0 := time.Now()
	n.Record(100, t0)

	assert.False(t, n.ShouldNotify(100, t0.Add(5*time.Second)))
}

func TestTargetDelayNotifier_MaybeNotifyRecords(t *testing.T) {
	n := NewTargetDelayNotifier(DefaultNotifierConfig())
	t0 := time.Now()

	assert.True(t, n.MaybeNotify(100, t0))
	assert.Equal(t, 100, n.LastNotifiedValue())
	assert.Equal(t, t0, n.LastNotifiedTime())

	assert.False(t, n.MaybeNotify(100, t0.Add(2*time.Second)))
	assert.True(t, n.MaybeNotify(130, t0.Add(2*time.Second)))
	assert.Equal(t, 130, n.LastNotifiedValue())
}

func TestTargetDelayNotifier_Reset(t *testing.T) {
	n := NewTargetDelayNotifier(DefaultNotifierConfig())
	n.Record(100, time.Now())

	n.Reset()

	assert.Equal(t, 0, n.LastNotifiedValue())
	assert.True(t, n.LastNotifiedTime().IsZero())
	assert.True(t, n.ShouldNotify(80, time.Now()))
}

func TestTargetDelayNotifier_Defaults(t *testing.T) {
	n := NewTargetDelayNotifier(NotifierConfig{})

	assert.Equal(t, time.Second, n.config.MinInterval)
	assert.Equal(t, bucketSizeMs, n.config.ChangeThresholdMs)
}
