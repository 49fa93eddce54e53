package schedule

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weekcal/internal/extract"
	"weekcal/internal/model"
)

type fakeFetcher struct {
	mu    sync.Mutex
	reqs  []extract.Request
	err   error
	calls chan struct{}
}

func (f *fakeFetcher) Extract(_ context.Context, req extract.Request) (*extract.Result, error) {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	f.mu.Unlock()
	if f.calls != nil {
		f.calls <- struct{}{}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &extract.Result{Week: &model.WeekFile{Week: "2025-W02"}}, nil
}

func TestNew_RejectsBadSpec(t *testing.T) {
	_, err := New(&fakeFetcher{}, "every hour", time.UTC, extract.Request{}, nil)
	assert.Error(t, err)
}

func TestRunOnce_FetchesCurrentWeek(t *testing.T) {
	f := &fakeFetcher{}
	s, err := New(f, "0 * * * *", time.UTC, extract.Request{IncludeCalendars: []string{"Work"}}, nil)
	require.NoError(t, err)
	s.now = func() time.Time { return time.Date(2025, 1, 9, 15, 30, 0, 0, time.UTC) }

	require.NoError(t, s.RunOnce(context.Background()))

	require.Len(t, f.reqs, 1)
	assert.Equal(t, time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC), f.reqs[0].Start)
	assert.Equal(t, []string{"Work"}, f.reqs[0].IncludeCalendars)
}

func TestRunOnce_PropagatesError(t *testing.T) {
	f := &fakeFetcher{err: errors.New("boom")}
	s, err := New(f, "0 * * * *", time.UTC, extract.Request{}, nil)
	require.NoError(t, err)

	assert.EqualError(t, s.RunOnce(context.Background()), "boom")
}

func TestRun_FetchesImmediatelyAndStops(t *testing.T) {
	f := &fakeFetcher{calls: make(chan struct{}, 4)}
	s, err := New(f, "0 0 1 1 *", time.UTC, extract.Request{}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	select {
	case <-f.calls:
	case <-time.After(5 * time.Second):
		t.Fatal("no initial fetch")
	}
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}
