package reminders

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/nurse-etr/assistant/pkg/common/logger"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedis(t *testing.T) (*miniredis.Miniredis, *RedisLocker) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, NewRedisLocker(client)
}

func TestRunOnceIsNotReentrant(t *testing.T) {
	logger.Discard()
	entered := make(chan struct{})
	release := make(chan struct{})
	var runs atomic.Int32

	s := NewScheduler([]Job{{
		Name:     JobMedication,
		Interval: time.Hour,
		Run: func(ctx context.Context) error {
			runs.Add(1)
			entered <- struct{}{}
			<-release
			return nil
		},
	}})

	done := make(chan error, 1)
	go func() { done <- s.RunOnce(context.Background(), JobMedication) }()
	<-entered

	err := s.RunOnce(context.Background(), JobMedication)
	assert.ErrorIs(t, err, ErrJobBusy)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, int32(1), runs.Load())
}

func TestRunOnceUnknownJob(t *testing.T) {
	s := NewScheduler(nil)
	assert.ErrorIs(t, s.RunOnce(context.Background(), "nope"), ErrUnknownJob)
}

func TestRunOnceRecoversPanic(t *testing.T) {
	logger.Discard()
	s := NewScheduler([]Job{{Name: "boom", Interval: time.Hour, Run: func(context.Context) error { panic("bad row") }}})

	err := s.RunOnce(context.Background(), "boom")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad row")

	// the job mutex was released
	err = s.RunOnce(context.Background(), "boom")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrJobBusy)
}

func TestSchedulerTicksUntilStopped(t *testing.T) {
	logger.Discard()
	var runs atomic.Int32
	s := NewScheduler([]Job{{
		Name:     JobAppointment,
		Interval: 10 * time.Millisecond,
		Run: func(context.Context) error {
			runs.Add(1)
			return nil
		},
	}})

	s.Start(context.Background())
	require.Eventually(t, func() bool { return runs.Load() >= 2 }, time.Second, 5*time.Millisecond)
	s.Stop()

	after := runs.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, runs.Load(), "no runs after Stop")
	s.Stop()
}

func TestRedisLockerExclusive(t *testing.T) {
	mr, locker := setupRedis(t)
	ctx := context.Background()

	release, ok, err := locker.Acquire(ctx, "reminders:lock:x", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = locker.Acquire(ctx, "reminders:lock:x", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "second holder must be refused")

	release()
	assert.False(t, mr.Exists("reminders:lock:x"))

	_, ok, err = locker.Acquire(ctx, "reminders:lock:x", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLockerExpiryAndForeignRelease(t *testing.T) {
	mr, locker := setupRedis(t)
	ctx := context.Background()

	staleRelease, ok, err := locker.Acquire(ctx, "k", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Second)
	_, ok, err = locker.Acquire(ctx, "k", time.Minute)
	require.NoError(t, err)
	require.True(t, ok, "expired lock can be taken")

	// the first holder's release must not drop the new holder's lock
	staleRelease()
	assert.True(t, mr.Exists("k"))
}

func TestSchedulerHonoursRedisLock(t *testing.T) {
	logger.Discard()
	_, locker := setupRedis(t)
	var runs atomic.Int32
	jobs := []Job{{Name: JobMedication, Interval: time.Hour, Run: func(context.Context) error { runs.Add(1); return nil }}}

	a := NewScheduler(jobs, WithLocker(locker, time.Minute))
	held, ok, err := locker.Acquire(context.Background(), "reminders:lock:"+JobMedication, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	assert.ErrorIs(t, a.RunOnce(context.Background(), JobMedication), ErrLockHeld)
	assert.Equal(t, int32(0), runs.Load())

	held()
	require.NoError(t, a.RunOnce(context.Background(), JobMedication))
	assert.Equal(t, int32(1), runs.Load())
}

type brokenLocker struct{}

func (brokenLocker) Acquire(context.Context, string, time.Duration) (func(), bool, error) {
	return nil, false, errors.New("connection refused")
}

func TestSchedulerRunsWhenLockStoreDown(t *testing.T) {
	logger.Discard()
	var runs atomic.Int32
	s := NewScheduler([]Job{{Name: JobMedication, Interval: time.Hour, Run: func(context.Context) error { runs.Add(1); return nil }}},
		WithLocker(brokenLocker{}, time.Minute))

	require.NoError(t, s.RunOnce(context.Background(), JobMedication))
	assert.Equal(t, int32(1), runs.Load())
}

func TestLoadJobs(t *testing.T) {
	jobs, err := LoadJobs("")
	require.NoError(t, err)
	assert.Equal(t, DefaultJobs(), jobs)

	path := filepath.Join(t.TempDir(), "jobs.yaml")
	require.NoError(t, os.WriteFile(path, []byte("medication:\n  interval: 5m\nappointment:\n  window: 12h\n  disabled: true\n"), 0o600))

	jobs, err = LoadJobs(path)
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, jobs.Medication.Interval)
	assert.Equal(t, DefaultLookahead, jobs.Medication.Lookahead)
	assert.Equal(t, 12*time.Hour, jobs.Appointment.Window)
	assert.Equal(t, time.Hour, jobs.Appointment.Interval)

	built := jobs.Build(NewScanner(nil, LogChannel{}))
	require.Len(t, built, 1)
	assert.Equal(t, JobMedication, built[0].Name)

	_, err = LoadJobs(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
