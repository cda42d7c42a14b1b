// Package bootstrap wires the store, reminder channels and scheduler from
// configuration. Both binaries share it.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/nurse-etr/assistant/pkg/common/config"
	"github.com/nurse-etr/assistant/pkg/common/database"
	"github.com/nurse-etr/assistant/pkg/common/kafka"
	"github.com/nurse-etr/assistant/pkg/common/logger"
	"github.com/nurse-etr/assistant/pkg/dlp"
	"github.com/nurse-etr/assistant/pkg/records"
	"github.com/nurse-etr/assistant/pkg/reminders"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// OpenStore returns the configured store. The postgres store is migrated
// before it is returned.
func OpenStore(cfg *config.Config) (records.Store, func(), error) {
	switch cfg.StoreDriver {
	case DriverMemory:
		logger.Log.Warn("Using in-memory store; records are lost on restart")
		return records.NewMemoryStore(), func() {}, nil
	case DriverPostgres, "":
		db, err := database.GetPostgres()
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		store := records.NewGormStore(db)
		if err := store.AutoMigrate(); err != nil {
			return nil, nil, fmt.Errorf("migrating schema: %w", err)
		}
		return store, func() {
			if err := database.ClosePostgres(); err != nil {
				logger.Log.WithError(err).Warn("Failed to close PostgreSQL")
			}
		}, nil
	default:
		return nil, nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}
}

// Channel fans reminders out to the log, plus Telex and Kafka when they
// are configured.
func Channel(cfg *config.Config) (reminders.Channel, func()) {
	channels := reminders.FanOut{reminders.LogChannel{}}
	cleanup := func() {}

	if cfg.TelexBotToken != "" && cfg.TelexChannelID != "" {
		channels = append(channels, reminders.NewTelexChannel(cfg))
		logger.Log.WithField("channel_id", cfg.TelexChannelID).Info("Telex reminder delivery enabled")
	}
	if cfg.ReminderKafkaTopic != "" {
		producer := kafka.NewProducer(cfg.ReminderKafkaTopic)
		channels = append(channels, reminders.NewKafkaChannel(producer))
		cleanup = func() {
			if err := producer.Close(); err != nil {
				logger.Log.WithError(err).Warn("Failed to close Kafka producer")
			}
		}
		logger.Log.WithField("topic", cfg.ReminderKafkaTopic).Info("Kafka reminder delivery enabled")
	}
	return channels, cleanup
}

// Scheduler builds the reminder scheduler. With the lock enabled it takes
// a Redis connection; when Redis is unreachable the jobs run unlocked.
func Scheduler(ctx context.Context, cfg *config.Config, store records.Store, channel reminders.Channel) (*reminders.Scheduler, func(), error) {
	jobs, err := reminders.LoadJobs(cfg.ReminderJobsFile)
	if err != nil {
		return nil, nil, err
	}
	scanner := reminders.NewScanner(store, channel, jobs.ScannerOptions()...)

	var opts []reminders.SchedulerOption
	cleanup := func() {}
	if cfg.ReminderLockEnabled {
		client, err := database.OpenRedis(ctx, cfg)
		if err != nil {
			logger.Log.WithError(err).Warn("Reminder lock unavailable, jobs run without it")
		} else {
			opts = append(opts, reminders.WithLocker(reminders.NewRedisLocker(client), cfg.ReminderLockTTL))
			cleanup = func() {
				if err := client.Close(); err != nil {
					logger.Log.WithError(err).Warn("Failed to close Redis")
				}
			}
		}
	}
	return reminders.NewScheduler(jobs.Build(scanner), opts...), cleanup, nil
}

// Redactor returns the message log redactor, or nil when redaction is off.
func Redactor(cfg *config.Config) (*dlp.Redactor, error) {
	if !cfg.AuditRedact {
		return nil, nil
	}
	rules, err := dlp.LoadRules(cfg.AuditRedactionRules)
	if err != nil {
		return nil, err
	}
	return dlp.NewRedactor(rules)
}
