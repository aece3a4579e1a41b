package worker

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mapslead/metrics"
)

type failureRecorder struct {
	mu      sync.Mutex
	reasons []string
}

func (f *failureRecorder) record(reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reasons = append(f.reasons, reason)
}

func (f *failureRecorder) all() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.reasons...)
}

func TestSupervisor_Outcomes(t *testing.T) {
	tests := []struct {
		name        string
		run         func(ctx context.Context) error
		wantReasons []string
	}{
		{
			name:        "success does not fail the record",
			run:         func(ctx context.Context) error { return nil },
			wantReasons: nil,
		},
		{
			name:        "error fails the record",
			run:         func(ctx context.Context) error { return errors.New("write failed") },
			wantReasons: []string{"write failed"},
		},
		{
			name:        "panic is recovered and fails the record",
			run:         func(ctx context.Context) error { panic("boom") },
			wantReasons: []string{"panic: boom"},
		},
		{
			name:        "deleted record stops quietly",
			run:         func(ctx context.Context) error { return ErrRecordGone },
			wantReasons: nil,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			sup := NewSupervisor(testLogger(), metrics.NewNop())
			rec := &failureRecorder{}

			require.True(t, sup.Go(metrics.KindScrape, "job-1", tc.run, rec.record))
			sup.Wait()

			assert.Equal(t, tc.wantReasons, rec.all())
			assert.False(t, sup.Running(metrics.KindScrape, "job-1"))
		})
	}
}

func TestSupervisor_CancelDoesNotFail(t *testing.T) {
	sup := NewSupervisor(testLogger(), metrics.NewNop())
	rec := &failureRecorder{}
	started := make(chan struct{})

	require.True(t, sup.Go(metrics.KindCampaign, "c-1", func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}, rec.record))

	<-started
	assert.True(t, sup.Running(metrics.KindCampaign, "c-1"))
	assert.True(t, sup.Cancel(metrics.KindCampaign, "c-1"))
	sup.Wait()

	assert.Empty(t, rec.all())
	assert.False(t, sup.Cancel(metrics.KindCampaign, "c-1"))
}

func TestSupervisor_RejectsDuplicatesAndAfterShutdown(t *testing.T) {
	sup := NewSupervisor(testLogger(), metrics.NewNop())
	release := make(chan struct{})

	block := func(ctx context.Context) error {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil
	}

	require.True(t, sup.Go(metrics.KindScrape, "job-1", block, nil))
	assert.False(t, sup.Go(metrics.KindScrape, "job-1", block, nil))
	assert.True(t, sup.Go(metrics.KindCampaign, "job-1", block, nil), "kinds are tracked separately")

	close(release)
	require.NoError(t, sup.Shutdown(context.Background()))
	assert.False(t, sup.Go(metrics.KindScrape, "job-2", block, nil))
}
