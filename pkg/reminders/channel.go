package reminders

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/nurse-etr/assistant/pkg/common/config"
	"github.com/nurse-etr/assistant/pkg/common/logger"
	"github.com/nurse-etr/assistant/pkg/common/models"
	"github.com/nurse-etr/assistant/pkg/gateway/httpclient"
	"github.com/sirupsen/logrus"
)

// Channel delivers a formatted reminder somewhere a nurse will see it.
// Delivery is attempted once; callers record the outcome.
type Channel interface {
	Deliver(ctx context.Context, r models.Reminder) error
}

type ChannelFunc func(ctx context.Context, r models.Reminder) error

func (f ChannelFunc) Deliver(ctx context.Context, r models.Reminder) error { return f(ctx, r) }

// LogChannel writes reminders to the service log.
type LogChannel struct{}

func (LogChannel) Deliver(_ context.Context, r models.Reminder) error {
	logger.Log.WithFields(logrus.Fields{
		"reminder_id": r.ID,
		"kind":        r.Kind,
		"patient_id":  r.PatientID,
		"due_at":      r.DueAt,
	}).Info("[REMINDER] " + r.Text)
	return nil
}

// TelexChannel posts reminders into a Telex channel as the bot user.
type TelexChannel struct {
	client    *http.Client
	apiURL    string
	channelID string
}

func NewTelexChannel(cfg *config.Config) *TelexChannel {
	return &TelexChannel{
		client:    httpclient.NewBearer(cfg.TelexTimeout, cfg.TelexBotToken),
		apiURL:    strings.TrimRight(cfg.TelexAPIURL, "/"),
		channelID: cfg.TelexChannelID,
	}
}

func (c *TelexChannel) Deliver(ctx context.Context, r models.Reminder) error {
	payload, err := json.Marshal(map[string]string{
		"channel_id": c.channelID,
		"text":       r.Text,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/messages", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("telex send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &httpclient.StatusError{Code: resp.StatusCode, Body: string(body)}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// EventPublisher is satisfied by kafka.Producer.
type EventPublisher interface {
	PublishEvent(ctx context.Context, eventType, source, key string, data map[string]interface{}) error
}

const (
	EventMedicationReminder  = "medication_reminder"
	EventAppointmentReminder = "appointment_reminder"
	eventSource              = "nurse-agent"
)

// KafkaChannel publishes reminders as events keyed by patient id.
type KafkaChannel struct {
	publisher EventPublisher
}

func NewKafkaChannel(publisher EventPublisher) *KafkaChannel {
	return &KafkaChannel{publisher: publisher}
}

func (c *KafkaChannel) Deliver(ctx context.Context, r models.Reminder) error {
	eventType := EventMedicationReminder
	if r.Kind == models.ReminderKindAppointment {
		eventType = EventAppointmentReminder
	}
	data := map[string]interface{}{
		"reminder_id": r.ID,
		"kind":        r.Kind,
		"patient_id":  r.PatientID,
		"subject_id":  r.SubjectID,
		"due_at":      r.DueAt,
		"text":        r.Text,
	}
	for k, v := range r.Payload {
		if _, taken := data[k]; !taken {
			data[k] = v
		}
	}
	return c.publisher.PublishEvent(ctx, eventType, eventSource, r.PatientID, data)
}

// FanOut delivers to every channel and reports the joined failures.
type FanOut []Channel

func (f FanOut) Deliver(ctx context.Context, r models.Reminder) error {
	var errs []error
	for _, ch := range f {
		if err := ch.Deliver(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
