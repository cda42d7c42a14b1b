package reminders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nurse-etr/assistant/pkg/common/logger"
	"github.com/nurse-etr/assistant/pkg/common/models"
	"github.com/nurse-etr/assistant/pkg/observability/metrics"
	"github.com/nurse-etr/assistant/pkg/records"
	"github.com/sirupsen/logrus"
)

const (
	DefaultLookahead         = 15 * time.Minute
	DefaultAppointmentWindow = 24 * time.Hour

	drainBatch = 100
)

// SweepResult summarises one sweep.
type SweepResult struct {
	Job       string `json:"job"`
	Selected  int    `json:"selected"`
	Delivered int    `json:"delivered"`
	Failed    int    `json:"failed"`
	// Skipped counts doses another sweep advanced between selection and update.
	Skipped int `json:"skipped"`
	// Drained counts outbox rows left pending by an earlier, interrupted sweep.
	Drained int `json:"drained"`
}

type Scanner struct {
	store     records.Store
	channel   Channel
	now       func() time.Time
	lookahead time.Duration
	window    time.Duration
}

type ScannerOption func(*Scanner)

func WithNow(now func() time.Time) ScannerOption {
	return func(s *Scanner) { s.now = now }
}

func WithLookahead(d time.Duration) ScannerOption {
	return func(s *Scanner) {
		if d > 0 {
			s.lookahead = d
		}
	}
}

func WithWindow(d time.Duration) ScannerOption {
	return func(s *Scanner) {
		if d > 0 {
			s.window = d
		}
	}
}

func NewScanner(store records.Store, channel Channel, opts ...ScannerOption) *Scanner {
	s := &Scanner{
		store:     store,
		channel:   channel,
		now:       time.Now,
		lookahead: DefaultLookahead,
		window:    DefaultAppointmentWindow,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SweepMedications reminds for every active medication due within the
// lookahead. For each one the advanced dose time and a pending outbox row
// are committed together before delivery is attempted; the delivery outcome
// is then recorded on the row. Failed deliveries are not retried.
func (s *Scanner) SweepMedications(ctx context.Context) (SweepResult, error) {
	res := SweepResult{Job: JobMedication}
	start := s.now().UTC()

	res.Drained = s.drainPending(ctx, start, &res)

	due, err := s.store.DueMedications(ctx, start.Add(s.lookahead))
	if err != nil {
		return res, fmt.Errorf("selecting due medications: %w", err)
	}
	res.Selected = len(due)

	for _, item := range due {
		dueAt := start
		if item.Medication.NextDoseTime != nil {
			dueAt = item.Medication.NextDoseTime.UTC()
		}
		reminder := models.Reminder{
			ID:        uuid.New().String(),
			Kind:      models.ReminderKindMedication,
			PatientID: item.Patient.PatientID,
			DueAt:     dueAt,
			Text:      FormatMedication(item),
			Payload: map[string]interface{}{
				"patient_name":    item.Patient.Name,
				"medication_name": item.Medication.Name,
				"dosage":          item.Medication.Dosage,
				"route":           item.Medication.Route,
				"frequency":       item.Medication.Frequency,
			},
		}

		next := records.NextDose(item.Medication.Frequency, start)
		stored, err := s.store.AdvanceDose(ctx, item.Medication.ID, dueAt, next, reminder)
		if errors.Is(err, records.ErrDoseAlreadyAdvanced) {
			logger.Log.WithField("medication_id", item.Medication.ID).Info("Dose already advanced by another sweep, skipping")
			res.Skipped++
			continue
		}
		if err != nil {
			logger.Log.WithError(err).WithField("medication_id", item.Medication.ID).Error("Failed to advance dose")
			res.Failed++
			continue
		}
		s.deliverAndMark(ctx, stored, &res)
	}

	logSweep(res)
	return res, nil
}

// drainPending delivers outbox rows created before this sweep started that
// never reached a delivery attempt.
func (s *Scanner) drainPending(ctx context.Context, before time.Time, res *SweepResult) int {
	pending, err := s.store.PendingReminders(ctx, before, drainBatch)
	if err != nil {
		logger.Log.WithError(err).Warn("Failed to load pending reminders")
		return 0
	}
	for _, r := range pending {
		s.deliverAndMark(ctx, r, res)
	}
	return len(pending)
}

func (s *Scanner) deliverAndMark(ctx context.Context, r models.Reminder, res *SweepResult) {
	status, errMsg := models.ReminderSent, ""
	if err := s.deliver(ctx, r); err != nil {
		status, errMsg = models.ReminderFailed, err.Error()
	}
	if err := s.store.MarkReminder(ctx, r.ID, status, errMsg); err != nil {
		logger.Log.WithError(err).WithField("reminder_id", r.ID).Error("Failed to record reminder outcome")
	}
	if status == models.ReminderSent {
		res.Delivered++
	} else {
		res.Failed++
	}
}

// SweepAppointments reminds for every open appointment in [now, now+window].
// Nothing is written, so an appointment is reminded on every sweep while it
// stays in the window.
func (s *Scanner) SweepAppointments(ctx context.Context) (SweepResult, error) {
	res := SweepResult{Job: JobAppointment}
	start := s.now().UTC()

	upcoming, err := s.store.UpcomingAppointments(ctx, start, start.Add(s.window))
	if err != nil {
		return res, fmt.Errorf("selecting upcoming appointments: %w", err)
	}
	res.Selected = len(upcoming)

	for _, item := range upcoming {
		r := models.Reminder{
			ID:        uuid.New().String(),
			Kind:      models.ReminderKindAppointment,
			PatientID: item.Patient.PatientID,
			SubjectID: item.Appointment.ID,
			DueAt:     item.Appointment.ScheduledAt.UTC(),
			Text:      FormatAppointment(item),
			Status:    models.ReminderPending,
			Payload: map[string]interface{}{
				"patient_name":     item.Patient.Name,
				"appointment_type": item.Appointment.Type,
			},
		}
		if err := s.deliver(ctx, r); err != nil {
			res.Failed++
			continue
		}
		res.Delivered++
	}

	logSweep(res)
	return res, nil
}

// deliver isolates one item: a failing or panicking channel only affects
// that reminder.
func (s *Scanner) deliver(ctx context.Context, r models.Reminder) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("channel panic: %v", p)
		}
		metrics.ObserveReminder(err == nil)
		if err != nil {
			logger.Log.WithError(err).WithFields(logrus.Fields{
				"reminder_id": r.ID,
				"kind":        r.Kind,
				"patient_id":  r.PatientID,
			}).Warn("Reminder delivery failed")
		}
	}()
	return s.channel.Deliver(ctx, r)
}

func logSweep(res SweepResult) {
	logger.Log.WithFields(logrus.Fields{
		"job":       res.Job,
		"selected":  res.Selected,
		"delivered": res.Delivered,
		"failed":    res.Failed,
		"skipped":   res.Skipped,
		"drained":   res.Drained,
	}).Info("Reminder sweep finished")
}
