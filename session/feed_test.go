package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeedNumbersEvents(t *testing.T) {
	f := NewFeed(0)
	assert.Nil(t, f.Append())

	added := f.Append(HideSummary{}, HideWeather{})
	require.Len(t, added, 2)
	assert.Equal(t, uint64(1), added[0].Seq)
	assert.Equal(t, uint64(2), added[1].Seq)
	assert.Equal(t, uint64(2), f.Last())

	f.Append(ClearLayers{})
	since := f.Since(1)
	require.Len(t, since, 2)
	assert.Equal(t, HideWeather{}, since[0].Instruction)
	assert.Equal(t, ClearLayers{}, since[1].Instruction)
}

func TestFeedTrims(t *testing.T) {
	f := NewFeed(3)
	for i := 0; i < 5; i++ {
		f.Append(ClearLayers{})
	}
	events := f.Since(0)
	require.Len(t, events, 3)
	assert.Equal(t, uint64(3), events[0].Seq)
	assert.Equal(t, uint64(5), f.Last())
}

func TestFeedWaitWakesUp(t *testing.T) {
	f := NewFeed(0)
	f.Append(ClearLayers{})

	got := make(chan []Event, 1)
	go func() {
		events, err := f.Wait(context.Background(), 1)
		assert.NoError(t, err)
		got <- events
	}()

	time.Sleep(20 * time.Millisecond)
	f.Append(HideSummary{})

	select {
	case events := <-got:
		require.Len(t, events, 1)
		assert.Equal(t, uint64(2), events[0].Seq)
	case <-time.After(2 * time.Second):
		t.Fatal("wait did not return")
	}
}

func TestFeedWaitReturnsPending(t *testing.T) {
	f := NewFeed(0)
	f.Append(ClearLayers{})
	events, err := f.Wait(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestFeedWaitTimesOut(t *testing.T) {
	f := NewFeed(0)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := f.Wait(ctx, 0)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
