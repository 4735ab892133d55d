package service

import (
	"context"
	"edu_assessment_backend/internal/model"
	"edu_assessment_backend/internal/repository"
	"edu_assessment_backend/internal/util"
	"edu_assessment_backend/pkg/logger"
	"edu_assessment_backend/pkg/monitoring"
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// TimeCheck is the server's verdict on a submission's timing.
type TimeCheck struct {
	TimeSpent     int
	AutoSubmitted bool
}

// Supervisor validates submissions against the attempt deadline. The server
// clock is the only source of truth; client timers are recorded, never used.
type Supervisor struct {
	tolerance atomic.Int64
}

func NewSupervisor(tolerance time.Duration) *Supervisor {
	s := &Supervisor{}
	s.SetTolerance(tolerance)
	return s
}

func (s *Supervisor) SetTolerance(d time.Duration) {
	if d < 0 {
		d = 0
	}
	s.tolerance.Store(int64(d))
}

func (s *Supervisor) Tolerance() time.Duration {
	return time.Duration(s.tolerance.Load())
}

// Check computes the time spent at now. Past deadline plus tolerance the
// submission is still accepted, but clamped to the duration and tagged.
func (s *Supervisor) Check(attempt *model.Attempt, duration time.Duration, now time.Time) TimeCheck {
	elapsed := now.Sub(attempt.StartedAt)
	if elapsed < 0 {
		elapsed = 0
	}
	check := TimeCheck{TimeSpent: int(elapsed / time.Second)}
	if duration <= 0 {
		return check
	}
	if now.After(attempt.Deadline(duration).Add(s.Tolerance())) {
		check.TimeSpent = int(duration / time.Second)
		check.AutoSubmitted = true
	}
	return check
}

// Remaining is the whole seconds left before the deadline, nil when untimed.
func (s *Supervisor) Remaining(attempt *model.Attempt, duration time.Duration, now time.Time) *int {
	if duration <= 0 {
		return nil
	}
	left := int(attempt.Deadline(duration).Sub(now) / time.Second)
	if left < 0 {
		left = 0
	}
	return &left
}

// DraftBuffer holds answers a client buffered before submitting.
type DraftBuffer interface {
	SaveDraft(ctx context.Context, attemptID string, answers []model.Answer, ttl time.Duration) error
	LoadDraft(ctx context.Context, attemptID string) ([]model.Answer, error)
	DropDraft(ctx context.Context, attemptID string) error
}

// Locker keeps replicas from sweeping at the same time.
type Locker interface {
	TryLock(ctx context.Context, name string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, name string) error
}

const sweepLockName = "attempt-sweep"

// Sweeper force-submits attempts whose deadline passed without a submit.
type Sweeper struct {
	Attempts   *repository.AttemptRepository
	Submitter  *AttemptService
	Locker     Locker
	Supervisor *Supervisor
	BatchSize  int
	LockTTL    time.Duration
	now        func() time.Time
}

func NewSweeper(attempts *repository.AttemptRepository, submitter *AttemptService, locker Locker, supervisor *Supervisor, batchSize int, lockTTL time.Duration) *Sweeper {
	return &Sweeper{
		Attempts:   attempts,
		Submitter:  submitter,
		Locker:     locker,
		Supervisor: supervisor,
		BatchSize:  batchSize,
		LockTTL:    lockTTL,
		now:        time.Now,
	}
}

// Run sweeps one batch and returns how many attempts it submitted. Attempts
// a student submitted concurrently are skipped.
func (s *Sweeper) Run(ctx context.Context) (int, error) {
	ok, err := s.Locker.TryLock(ctx, sweepLockName, s.LockTTL)
	if err != nil {
		return 0, err
	}
	if !ok {
		logger.Log.Debug("Sweep skipped, another instance holds the lock")
		return 0, nil
	}
	defer func() {
		if err := s.Locker.Unlock(context.Background(), sweepLockName); err != nil {
			logger.Log.Warn("Failed to release sweep lock", zap.Error(err))
		}
	}()

	start := time.Now()
	defer func() {
		monitoring.SweepDuration.Observe(time.Since(start).Seconds())
	}()

	cutoff := s.now().Add(-s.Supervisor.Tolerance())
	expired, err := s.Attempts.ListExpired(cutoff, s.BatchSize)
	if err != nil {
		return 0, err
	}

	submitted := 0
	for i := range expired {
		if ctx.Err() != nil {
			return submitted, ctx.Err()
		}
		a := expired[i]
		_, err := s.Submitter.ForceSubmit(ctx, &a)
		switch {
		case err == nil:
			submitted++
		case errors.Is(err, util.ErrAlreadySubmitted):
		default:
			logger.Log.Error("Force submit failed",
				zap.String("attemptId", a.ID),
				zap.Error(err))
		}
	}

	if len(expired) > 0 {
		logger.Log.Info("Expired attempts swept",
			zap.Int("candidates", len(expired)),
			zap.Int("submitted", submitted))
	}
	return submitted, nil
}
