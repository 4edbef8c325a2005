package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RBarbieri13/Decant-sub001/internal/domain"
	"github.com/RBarbieri13/Decant-sub001/internal/service"
)

type countingRecomputer struct {
	runs   atomic.Int64
	method atomic.Value
	err    error
}

func (c *countingRecomputer) RecomputeCorpus(ctx context.Context, req service.RecomputeRequest, _ service.ProgressFunc) (*service.RecomputeReport, error) {
	c.runs.Add(1)
	c.method.Store(req.Method)
	if c.err != nil {
		return nil, c.err
	}
	return &service.RecomputeReport{Method: req.Method, Cancelled: ctx.Err() != nil}, nil
}

func TestSchedulerRunsPeriodically(t *testing.T) {
	r := &countingRecomputer{}
	s, err := New(r, 20*time.Millisecond, "tfidf")
	require.NoError(t, err)
	s.Start()

	require.Eventually(t, func() bool { return r.runs.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, s.Stop())
	assert.Equal(t, domain.MethodTFIDF, r.method.Load())
}

func TestSchedulerSurvivesFailures(t *testing.T) {
	r := &countingRecomputer{err: errors.New("db down")}
	s, err := New(r, 20*time.Millisecond, "")
	require.NoError(t, err)
	s.Start()

	require.Eventually(t, func() bool { return r.runs.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, s.Stop())
}

func TestSchedulerRejectsNonPositiveInterval(t *testing.T) {
	_, err := New(&countingRecomputer{}, 0, "")
	assert.Error(t, err)
}
