package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockClock_After(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMockClock(start)

	ch := c.After(time.Second)
	assert.Equal(t, 1, c.Waiters())

	c.Advance(500 * time.Millisecond)
	select {
	case <-ch:
		t.Fatal("timer fired early")
	default:
	}

	c.Advance(500 * time.Millisecond)
	select {
	case got := <-ch:
		assert.Equal(t, start.Add(time.Second), got)
	default:
		t.Fatal("timer did not fire")
	}
	assert.Equal(t, 0, c.Waiters())
}

func TestMockClock_AfterNonPositive(t *testing.T) {
	c := NewMockClock(time.Unix(0, 0))
	select {
	case <-c.After(0):
	default:
		t.Fatal("zero duration should fire immediately")
	}
}

func TestMockClock_Ticker(t *testing.T) {
	c := NewMockClock(time.Unix(0, 0))
	tk := c.NewTicker(30 * time.Second)

	c.Advance(30 * time.Second)
	require.Len(t, tk.C(), 1)
	<-tk.C()

	// two periods elapse but the buffered channel only keeps one tick
	c.Advance(60 * time.Second)
	assert.Len(t, tk.C(), 1)

	tk.Stop()
	assert.Equal(t, 0, c.Waiters())
}

func TestMockClock_Set(t *testing.T) {
	c := NewMockClock(time.Unix(0, 0))
	target := time.Unix(100, 0)
	c.Set(target)
	assert.Equal(t, target, c.Now())
}
