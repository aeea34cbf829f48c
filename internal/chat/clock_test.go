package chat

import (
	"testing"
	"time"
)

func TestClockNeverRegresses(t *testing.T) {
	base := time.UnixMilli(1_700_000_000_000)
	// same millisecond, wall clock stepped back, sub-millisecond progress
	readings := []time.Time{
		base,
		base,
		base.Add(-time.Second),
		base.Add(500 * time.Microsecond),
		base.Add(10 * time.Millisecond),
	}
	i := 0
	clock := NewClock(func() time.Time {
		t := readings[i]
		i++
		return t
	})

	want := []int64{
		base.UnixMilli(),
		base.UnixMilli() + 1,
		base.UnixMilli() + 2,
		base.UnixMilli() + 3,
		base.UnixMilli() + 10,
	}
	for n, w := range want {
		if got := clock.Stamp(); got != w {
			t.Fatalf("stamp %d: expected %d, got %d", n, w, got)
		}
	}
}
