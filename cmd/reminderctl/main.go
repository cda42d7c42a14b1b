package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/nurse-etr/assistant/pkg/assistant"
	"github.com/nurse-etr/assistant/pkg/bootstrap"
	"github.com/nurse-etr/assistant/pkg/common/config"
	"github.com/nurse-etr/assistant/pkg/common/database"
	"github.com/nurse-etr/assistant/pkg/common/kafka"
	"github.com/nurse-etr/assistant/pkg/common/logger"
	"github.com/nurse-etr/assistant/pkg/common/models"
	"github.com/nurse-etr/assistant/pkg/intent"
	"github.com/nurse-etr/assistant/pkg/records"
	"github.com/nurse-etr/assistant/pkg/reminders"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func main() {
	logger.Init("reminderctl")

	rootCmd := &cobra.Command{
		Use:   "reminderctl",
		Short: "Operate the nurse assistant's records and reminder jobs",
	}
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(sweepCmd())
	rootCmd.AddCommand(jobsCmd())
	rootCmd.AddCommand(messageCmd())
	rootCmd.AddCommand(tailCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the PostgreSQL schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := database.GetPostgres()
			if err != nil {
				return fmt.Errorf("connecting to postgres: %w", err)
			}
			defer database.ClosePostgres()

			if err := records.NewGormStore(db).AutoMigrate(); err != nil {
				return fmt.Errorf("migrating schema: %w", err)
			}
			logger.Log.Info("Schema migrated")
			return nil
		},
	}
}

// jobAliases maps the short names accepted on the command line to job names.
var jobAliases = map[string]string{
	"medications":  reminders.JobMedication,
	"appointments": reminders.JobAppointment,
}

func resolveJob(arg string) (string, error) {
	arg = strings.ToLower(strings.TrimSpace(arg))
	if name, ok := jobAliases[arg]; ok {
		return name, nil
	}
	if arg == reminders.JobMedication || arg == reminders.JobAppointment {
		return arg, nil
	}
	return "", fmt.Errorf("%w: %s", reminders.ErrUnknownJob, arg)
}

func sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "sweep <medications|appointments>",
		Short:     "Run one reminder job now",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"medications", "appointments"},
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := resolveJob(args[0])
			if err != nil {
				return err
			}
			cfg := config.Load()

			store, closeStore, err := bootstrap.OpenStore(cfg)
			if err != nil {
				return err
			}
			defer closeStore()
			channel, closeChannel := bootstrap.Channel(cfg)
			defer closeChannel()

			scheduler, closeScheduler, err := bootstrap.Scheduler(cmd.Context(), cfg, store, channel)
			if err != nil {
				return err
			}
			defer closeScheduler()

			err = scheduler.RunOnce(cmd.Context(), name)
			if errors.Is(err, reminders.ErrLockHeld) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s is running on another instance\n", name)
				return nil
			}
			return err
		},
	}
}

func jobsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "jobs",
		Short: "Print the effective reminder job configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			jobs, err := reminders.LoadJobs(config.Load().ReminderJobsFile)
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			defer enc.Close()
			return enc.Encode(jobs)
		},
	}
}

func messageCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "message <text>",
		Short: "Send one message through the assistant and print the reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, _ := cmd.Flags().GetString("user")
			cfg := config.Load()

			store, closeStore, err := bootstrap.OpenStore(cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			redactor, err := bootstrap.Redactor(cfg)
			if err != nil {
				return err
			}
			dispatcher := assistant.NewDispatcher(store, intent.NewLLMExtractor(cfg), assistant.WithRedactor(redactor))
			out := dispatcher.HandleMessage(cmd.Context(), userID, strings.Join(args, " "))
			fmt.Fprintln(cmd.OutOrStdout(), out.Text)
			return nil
		},
	}
	cmd.Flags().String("user", "cli_user", "user id recorded in the message log")
	return cmd
}

func tailCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Print reminder events from the Kafka topic",
		RunE: func(cmd *cobra.Command, args []string) error {
			group, _ := cmd.Flags().GetString("group")
			cfg := config.Load()
			if cfg.ReminderKafkaTopic == "" {
				return errors.New("REMINDER_KAFKA_TOPIC is not set")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			consumer := kafka.NewConsumer(cfg.ReminderKafkaTopic, group)
			defer consumer.Close()

			enc := json.NewEncoder(cmd.OutOrStdout())
			err := consumer.Consume(ctx, func(_ context.Context, event models.Event) error {
				return enc.Encode(event)
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().String("group", "reminderctl-tail", "Kafka consumer group")
	return cmd
}
