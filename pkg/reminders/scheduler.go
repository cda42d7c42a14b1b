package reminders

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nurse-etr/assistant/pkg/common/logger"
	"github.com/nurse-etr/assistant/pkg/observability/metrics"
	"github.com/sirupsen/logrus"
)

var (
	ErrUnknownJob = errors.New("unknown reminder job")
	ErrJobBusy    = errors.New("reminder job already running")
	ErrLockHeld   = errors.New("reminder job locked by another instance")
)

type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Locker serialises a job across processes. release is nil when acquired is
// false.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), acquired bool, err error)
}

type jobState struct {
	Job
	running sync.Mutex
}

// Scheduler runs each job on its own ticker. A job is never re-entered while
// a previous run of the same job is in flight.
type Scheduler struct {
	jobs    map[string]*jobState
	order   []string
	locker  Locker
	lockTTL time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type SchedulerOption func(*Scheduler)

// WithLocker adds cross-instance locking; ttl bounds how long a crashed
// holder can block other replicas.
func WithLocker(l Locker, ttl time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		s.locker = l
		s.lockTTL = ttl
	}
}

func NewScheduler(jobs []Job, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		jobs:    make(map[string]*jobState, len(jobs)),
		lockTTL: 10 * time.Minute,
	}
	for _, j := range jobs {
		s.jobs[j.Name] = &jobState{Job: j}
		s.order = append(s.order, j.Name)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches one goroutine per job. Calling Start on a running
// scheduler is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)

	for _, name := range s.order {
		job := s.jobs[name]
		if job.Interval <= 0 {
			logger.Log.WithField("job", name).Warn("Reminder job has no interval, not scheduled")
			continue
		}
		s.wg.Add(1)
		go s.loop(ctx, job)
	}
	logger.Log.WithField("jobs", s.order).Info("Reminder scheduler started")
}

// Stop cancels the tickers and waits for in-flight runs to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	s.wg.Wait()
	logger.Log.Info("Reminder scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context, job *jobState) {
	defer s.wg.Done()
	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.run(ctx, job); err != nil && !errors.Is(err, ErrJobBusy) && !errors.Is(err, ErrLockHeld) {
				logger.Log.WithError(err).WithField("job", job.Name).Error("Reminder job failed")
			}
		}
	}
}

// RunOnce triggers a job immediately, subject to the same exclusion rules
// as a tick.
func (s *Scheduler) RunOnce(ctx context.Context, name string) error {
	job, ok := s.jobs[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	return s.run(ctx, job)
}

func (s *Scheduler) Jobs() []string {
	return append([]string(nil), s.order...)
}

func (s *Scheduler) run(ctx context.Context, job *jobState) (err error) {
	if !job.running.TryLock() {
		metrics.ObserveSweep(job.Name, true)
		logger.Log.WithField("job", job.Name).Warn("Previous run still in flight, skipping tick")
		return ErrJobBusy
	}
	defer job.running.Unlock()

	if s.locker != nil {
		release, acquired, lockErr := s.locker.Acquire(ctx, "reminders:lock:"+job.Name, s.lockTTL)
		switch {
		case lockErr != nil:
			// run locally rather than miss reminders while the lock store is down
			logger.Log.WithError(lockErr).WithField("job", job.Name).Warn("Lock unavailable, running without it")
		case !acquired:
			metrics.ObserveSweep(job.Name, true)
			logger.Log.WithField("job", job.Name).Info("Job held by another instance, skipping")
			return ErrLockHeld
		default:
			defer release()
		}
	}

	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("reminder job %s panicked: %v", job.Name, p)
			logger.Log.WithFields(logrus.Fields{"job": job.Name, "panic": p}).Error("Panic recovered in reminder job")
		}
	}()

	metrics.ObserveSweep(job.Name, false)
	start := time.Now()
	err = job.Run(ctx)
	logger.Log.WithFields(logrus.Fields{
		"job":      job.Name,
		"duration": time.Since(start).Milliseconds(),
	}).Debug("Reminder job finished")
	return err
}
