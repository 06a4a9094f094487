package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jordanhubbard/convreview/pkg/models"
)

type fakeRunner struct {
	calls    atomic.Int32
	daysBack atomic.Int32
	block    chan struct{}
	err      error
}

func (f *fakeRunner) EnsureBaselineAnalysis(ctx context.Context, daysBack int) (*models.BatchResult, error) {
	f.calls.Add(1)
	f.daysBack.Store(int32(daysBack))
	if f.block != nil {
		<-f.block
	}
	if f.err != nil {
		return nil, f.err
	}
	return &models.BatchResult{Analyzed: 2}, nil
}

func TestRunOnce(t *testing.T) {
	r := &fakeRunner{}
	s := New(r, "0 0 3 * * *", 14)

	res, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Analyzed)
	assert.EqualValues(t, 1, r.calls.Load())
	assert.EqualValues(t, 14, r.daysBack.Load())

	last, lastErr := s.LastRun()
	assert.False(t, last.IsZero())
	assert.NoError(t, lastErr)
}

func TestRunOnce_RecordsError(t *testing.T) {
	boom := errors.New("database is down")
	s := New(&fakeRunner{err: boom}, "0 0 3 * * *", 30)

	_, err := s.RunOnce(context.Background())
	assert.ErrorIs(t, err, boom)
	_, lastErr := s.LastRun()
	assert.ErrorIs(t, lastErr, boom)
}

func TestRunOnce_NoOverlap(t *testing.T) {
	r := &fakeRunner{block: make(chan struct{})}
	s := New(r, "0 0 3 * * *", 30)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = s.RunOnce(context.Background())
	}()

	require.Eventually(t, func() bool { return r.calls.Load() == 1 }, 2*time.Second, 5*time.Millisecond)
	_, err := s.RunOnce(context.Background())
	assert.ErrorIs(t, err, ErrAlreadyRunning)

	close(r.block)
	wg.Wait()
	assert.EqualValues(t, 1, r.calls.Load())
}

func TestStart_InvalidSpec(t *testing.T) {
	s := New(&fakeRunner{}, "every tuesday", 30)
	err := s.Start(context.Background())
	assert.Error(t, err)
}

func TestStart_Ticks(t *testing.T) {
	r := &fakeRunner{}
	s := New(r, "* * * * * *", 30)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, s.Start(ctx))

	assert.Eventually(t, func() bool { return r.calls.Load() >= 1 }, 3*time.Second, 20*time.Millisecond)
	s.Stop()
	s.Stop()
}
