package bootstrap

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/nurse-etr/assistant/pkg/common/config"
	"github.com/nurse-etr/assistant/pkg/common/logger"
	"github.com/nurse-etr/assistant/pkg/records"
	"github.com/nurse-etr/assistant/pkg/reminders"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lockConfig(addr string) *config.Config {
	host, port, _ := net.SplitHostPort(addr)
	return &config.Config{
		RedisHost:           host,
		RedisPort:           port,
		ReminderLockEnabled: true,
		ReminderLockTTL:     time.Minute,
	}
}

func TestSchedulerTakesRedisLock(t *testing.T) {
	logger.Discard()
	mr := miniredis.RunT(t)
	mr.Set("reminders:lock:"+reminders.JobMedication, "other-instance")

	scheduler, cleanup, err := Scheduler(context.Background(), lockConfig(mr.Addr()), records.NewMemoryStore(), reminders.LogChannel{})
	require.NoError(t, err)
	defer cleanup()

	err = scheduler.RunOnce(context.Background(), reminders.JobMedication)
	assert.ErrorIs(t, err, reminders.ErrLockHeld)
}

func TestSchedulerRunsUnlockedWithoutRedis(t *testing.T) {
	logger.Discard()
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	scheduler, cleanup, err := Scheduler(context.Background(), lockConfig(addr), records.NewMemoryStore(), reminders.LogChannel{})
	require.NoError(t, err)
	defer cleanup()

	assert.NoError(t, scheduler.RunOnce(context.Background(), reminders.JobMedication))
}
