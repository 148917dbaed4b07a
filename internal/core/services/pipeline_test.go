package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/core/domain"
	"github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/core/ports/driven/mocks"
)

func newTestPipeline(f *publishFixture, lock *mocks.MockDistributedLock) *Pipeline {
	cfg := PipelineConfig{
		Exporter:  f.exporter,
		Publisher: f.publisher,
		Reasoning: f.reasoning,
		Products:  f.products,
	}
	// avoid storing a typed-nil mock in the interface
	if lock != nil {
		cfg.Lock = lock
	}
	return NewPipeline(cfg)
}

func stageNames(r *domain.PublishReport) []domain.PublishStage {
	var names []domain.PublishStage
	for _, s := range r.Stages {
		names = append(names, s.Stage)
	}
	return names
}

func TestPipeline_Run(t *testing.T) {
	f := newPublishFixture(t)
	f.reasoning.QueryFn = func(reg *domain.AgentRegistration, query string) (string, error) {
		return "```json\n{\"recommendations\":[{\"id\":\"p1\",\"matchPercentage\":96},{\"id\":\"ghost\",\"matchPercentage\":90}]}\n```", nil
	}
	lock := mocks.NewMockDistributedLock()
	p := newTestPipeline(f, lock)

	report, err := p.Run(context.Background(), domain.PublishOptions{})
	require.NoError(t, err)

	assert.True(t, report.Passed())
	assert.Equal(t, []domain.PublishStage{
		domain.StageExport, domain.StageUpload, domain.StageRegister, domain.StageActivate, domain.StageSmoke,
	}, stageNames(report))
	require.NotNil(t, report.Smoke)
	require.Len(t, report.Smoke.Recommendations, 1)
	assert.Equal(t, "p1", report.Smoke.Recommendations[0].ID)
	assert.Equal(t, []string{"ghost"}, report.Smoke.Unknown)
	assert.Equal(t, []string{"email automation"}, f.reasoning.Queries())
	assert.False(t, lock.IsHeld(PublishLockName), "lock must be released")
	assert.False(t, report.FinishedAt.IsZero())
}

func TestPipeline_Run_SkipSmoke(t *testing.T) {
	f := newPublishFixture(t)
	p := newTestPipeline(f, nil)

	report, err := p.Run(context.Background(), domain.PublishOptions{SkipSmoke: true})
	require.NoError(t, err)

	assert.True(t, report.Passed())
	last := report.Stages[len(report.Stages)-1]
	assert.Equal(t, domain.StageSmoke, last.Stage)
	assert.True(t, last.Skipped)
	assert.Empty(t, f.reasoning.Queries())
}

func TestPipeline_Run_CustomSmokeQuery(t *testing.T) {
	f := newPublishFixture(t)
	p := newTestPipeline(f, nil)

	_, err := p.Run(context.Background(), domain.PublishOptions{SmokeQuery: "video editing"})
	require.NoError(t, err)
	assert.Equal(t, []string{"video editing"}, f.reasoning.Queries())
}

func TestPipeline_Run_LockBusy(t *testing.T) {
	f := newPublishFixture(t)
	lock := mocks.NewMockDistributedLock()
	lock.SetLockHeld(PublishLockName, time.Minute)
	p := newTestPipeline(f, lock)

	report, err := p.Run(context.Background(), domain.PublishOptions{})
	assert.ErrorIs(t, err, domain.ErrPublishInProgress)
	assert.Empty(t, report.Stages)
	assert.Equal(t, 0, f.snapshots.Writes(), "no export while another run holds the lock")
}

func TestPipeline_Run_LockError(t *testing.T) {
	f := newPublishFixture(t)
	lock := mocks.NewMockDistributedLock()
	lock.AcquireFn = func(string, time.Duration) (bool, error) { return false, errors.New("redis down") }
	p := newTestPipeline(f, lock)

	_, err := p.Run(context.Background(), domain.PublishOptions{})
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrPublishInProgress)
}

func TestPipeline_Run_StageFailures(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(f *publishFixture)
		stage  domain.PublishStage
		stages int
	}{
		{
			name:   "export",
			setup:  func(f *publishFixture) { f.snapshots.WriteErr = errors.New("read-only fs") },
			stage:  domain.StageExport,
			stages: 1,
		},
		{
			name: "upload",
			setup: func(f *publishFixture) {
				f.reasoning.UploadFn = func(string, []byte) (*domain.ContentHandle, error) { return nil, errors.New("413") }
			},
			stage:  domain.StageUpload,
			stages: 2,
		},
		{
			name: "register",
			setup: func(f *publishFixture) {
				f.reasoning.CreateFn = func(domain.AgentSpec) (string, error) { return "", errors.New("400") }
			},
			stage:  domain.StageRegister,
			stages: 3,
		},
		{
			name: "smoke malformed answer",
			setup: func(f *publishFixture) {
				f.reasoning.QueryFn = func(*domain.AgentRegistration, string) (string, error) { return "no idea", nil }
			},
			stage:  domain.StageSmoke,
			stages: 5,
		},
		{
			name: "smoke transport error",
			setup: func(f *publishFixture) {
				f.reasoning.QueryFn = func(*domain.AgentRegistration, string) (string, error) { return "", errors.New("timeout") }
			},
			stage:  domain.StageSmoke,
			stages: 5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newPublishFixture(t)
			tt.setup(f)
			lock := mocks.NewMockDistributedLock()
			p := newTestPipeline(f, lock)

			report, err := p.Run(context.Background(), domain.PublishOptions{})
			require.Error(t, err)

			stage, ok := domain.FailedStage(err)
			require.True(t, ok)
			assert.Equal(t, tt.stage, stage)
			assert.False(t, report.Passed())
			require.Len(t, report.Stages, tt.stages)
			failed := report.Stages[len(report.Stages)-1]
			assert.Equal(t, tt.stage, failed.Stage)
			assert.False(t, failed.Passed)
			assert.NotEmpty(t, failed.Detail)
			assert.False(t, lock.IsHeld(PublishLockName), "lock must be released on failure")
		})
	}
}

func TestPipeline_Run_ExtendsLockWhileRunning(t *testing.T) {
	f := newPublishFixture(t)
	f.reasoning.QueryFn = func(*domain.AgentRegistration, string) (string, error) {
		time.Sleep(100 * time.Millisecond)
		return `{"recommendations":[{"id":"p1","matchPercentage":90}]}`, nil
	}
	lock := mocks.NewMockDistributedLock()
	p := NewPipeline(PipelineConfig{
		Exporter:  f.exporter,
		Publisher: f.publisher,
		Reasoning: f.reasoning,
		Products:  f.products,
		Lock:      lock,
		LockTTL:   60 * time.Millisecond,
	})

	report, err := p.Run(context.Background(), domain.PublishOptions{})
	require.NoError(t, err)
	assert.True(t, report.Passed())
	assert.GreaterOrEqual(t, lock.ExtendCount(), 2, "lock must be renewed during a long stage")
	assert.False(t, lock.IsHeld(PublishLockName), "lock must be released")
}

func TestPipeline_Run_AbortsWhenLockLost(t *testing.T) {
	f := newPublishFixture(t)
	lost := make(chan struct{})
	var once sync.Once

	lock := mocks.NewMockDistributedLock()
	lock.ExtendFn = func(string, time.Duration) error {
		once.Do(func() { close(lost) })
		return domain.ErrLockLost
	}
	f.reasoning.QueryFn = func(*domain.AgentRegistration, string) (string, error) {
		select {
		case <-lost:
		case <-time.After(2 * time.Second):
		}
		return "", errors.New("request cancelled")
	}
	p := NewPipeline(PipelineConfig{
		Exporter:  f.exporter,
		Publisher: f.publisher,
		Reasoning: f.reasoning,
		Products:  f.products,
		Lock:      lock,
		LockTTL:   30 * time.Millisecond,
	})

	report, err := p.Run(context.Background(), domain.PublishOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrLockLost)
	stage, ok := domain.FailedStage(err)
	require.True(t, ok)
	assert.Equal(t, domain.StageSmoke, stage)
	assert.False(t, report.Passed())
	assert.Equal(t, 1, lock.Releases)
}
