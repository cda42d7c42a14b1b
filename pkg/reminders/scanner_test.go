package reminders

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nurse-etr/assistant/pkg/common/logger"
	"github.com/nurse-etr/assistant/pkg/common/models"
	"github.com/nurse-etr/assistant/pkg/records"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureChannel struct {
	mu        sync.Mutex
	delivered []models.Reminder
	fail      func(models.Reminder) error
}

func (c *captureChannel) Deliver(_ context.Context, r models.Reminder) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail != nil {
		if err := c.fail(r); err != nil {
			return err
		}
	}
	c.delivered = append(c.delivered, r)
	return nil
}

func (c *captureChannel) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.delivered)
}

func setupStore(t *testing.T) *records.MemoryStore {
	t.Helper()
	logger.Discard()
	store := records.NewMemoryStore()
	_, err := store.CreatePatient(context.Background(), records.NewPatient{PatientID: "PT001", Name: "John Smith"})
	require.NoError(t, err)
	return store
}

func prescribe(t *testing.T, store *records.MemoryStore, name, freq string, next time.Time) models.Medication {
	t.Helper()
	med, err := store.PrescribeMedication(context.Background(), "PT001", records.NewMedication{
		Name: name, Dosage: "500mg", Frequency: freq, Route: "oral", NextDoseTime: next,
	})
	require.NoError(t, err)
	return med
}

func nextDoseOf(t *testing.T, store *records.MemoryStore, id uint) time.Time {
	t.Helper()
	record, err := store.PatientRecord(context.Background(), "PT001")
	require.NoError(t, err)
	for _, m := range record.Medications {
		if m.ID == id {
			return *m.NextDoseTime
		}
	}
	t.Fatalf("medication %d not found", id)
	return time.Time{}
}

func TestSweepMedicationsLookahead(t *testing.T) {
	store := setupStore(t)
	now := time.Now().UTC()
	soon := prescribe(t, store, "amoxicillin", "twice daily", now.Add(10*time.Minute))
	later := prescribe(t, store, "ibuprofen", "daily", now.Add(20*time.Minute))

	ch := &captureChannel{}
	res, err := NewScanner(store, ch, WithNow(func() time.Time { return now })).SweepMedications(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, res.Selected)
	assert.Equal(t, 1, res.Delivered)
	require.Equal(t, 1, ch.count())
	assert.Contains(t, ch.delivered[0].Text, "Medication Reminder")
	assert.Contains(t, ch.delivered[0].Text, "John Smith (PT001)")
	assert.Contains(t, ch.delivered[0].Text, "amoxicillin 500mg")

	assert.True(t, nextDoseOf(t, store, soon.ID).Equal(now.Add(12*time.Hour)), "selected dose should advance")
	assert.True(t, nextDoseOf(t, store, later.ID).Equal(now.Add(20*time.Minute)), "unselected dose should not move")

	outbox := store.Reminders()
	require.Len(t, outbox, 1)
	assert.Equal(t, models.ReminderSent, outbox[0].Status)
	assert.Equal(t, soon.ID, outbox[0].SubjectID)
}

func TestSweepMedicationsDeliveryFailureStillAdvances(t *testing.T) {
	store := setupStore(t)
	now := time.Now().UTC()
	a := prescribe(t, store, "a", "every 6 hours", now)
	b := prescribe(t, store, "b", "every 8 hours", now.Add(time.Minute))

	ch := &captureChannel{fail: func(r models.Reminder) error {
		if strings.Contains(r.Text, "Medication: a ") {
			return errors.New("channel down")
		}
		return nil
	}}
	res, err := NewScanner(store, ch, WithNow(func() time.Time { return now })).SweepMedications(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, res.Selected)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 1, res.Delivered)
	assert.True(t, nextDoseOf(t, store, a.ID).Equal(now.Add(6*time.Hour)))
	assert.True(t, nextDoseOf(t, store, b.ID).Equal(now.Add(8*time.Hour)))

	statuses := map[uint]string{}
	for _, r := range store.Reminders() {
		statuses[r.SubjectID] = r.Status
	}
	assert.Equal(t, models.ReminderFailed, statuses[a.ID])
	assert.Equal(t, models.ReminderSent, statuses[b.ID])

	// failed rows are not retried by the next sweep
	res, err = NewScanner(store, &captureChannel{}).SweepMedications(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Drained)
	assert.Equal(t, 0, res.Selected)
}

func TestSweepMedicationsDrainsStalePending(t *testing.T) {
	store := setupStore(t)
	med := prescribe(t, store, "a", "daily", time.Now().Add(48*time.Hour))

	// simulates a crash between commit and delivery
	_, err := store.AdvanceDose(context.Background(), med.ID, *med.NextDoseTime, time.Now().Add(72*time.Hour), models.Reminder{
		ID: "stale-1", Kind: models.ReminderKindMedication, PatientID: "PT001", Text: "left behind",
	})
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)

	ch := &captureChannel{}
	res, err := NewScanner(store, ch).SweepMedications(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Drained)
	require.Equal(t, 1, ch.count())
	assert.Equal(t, "stale-1", ch.delivered[0].ID)
	assert.Equal(t, models.ReminderSent, store.Reminders()[0].Status)
}

func TestSweepMedicationsSkipsInactive(t *testing.T) {
	store := setupStore(t)
	med := prescribe(t, store, "a", "daily", time.Now())
	store.SetMedicationActive(med.ID, false)

	res, err := NewScanner(store, &captureChannel{}).SweepMedications(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Selected)
}

func TestSweepAppointmentsWindow(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	now := time.Now().UTC()
	notes := "Bring lab results"

	in, err := store.ScheduleAppointment(ctx, "PT001", records.NewAppointment{Type: "follow-up", ScheduledAt: now.Add(23*time.Hour + 59*time.Minute), Notes: &notes})
	require.NoError(t, err)
	_, err = store.ScheduleAppointment(ctx, "PT001", records.NewAppointment{Type: "far", ScheduledAt: now.Add(25 * time.Hour)})
	require.NoError(t, err)
	done, err := store.ScheduleAppointment(ctx, "PT001", records.NewAppointment{Type: "done", ScheduledAt: now.Add(time.Hour)})
	require.NoError(t, err)
	store.SetAppointmentCompleted(done.ID, true)

	ch := &captureChannel{}
	scanner := NewScanner(store, ch, WithNow(func() time.Time { return now }))
	res, err := scanner.SweepAppointments(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Selected)
	require.Equal(t, 1, ch.count())
	assert.Equal(t, in.ID, ch.delivered[0].SubjectID)
	assert.Contains(t, ch.delivered[0].Text, "Appointment Reminder")
	assert.Contains(t, ch.delivered[0].Text, "Notes: Bring lab results")

	// no suppression: the next sweep reminds again
	_, err = scanner.SweepAppointments(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, ch.count())
	assert.Empty(t, store.Reminders(), "appointment sweep must not write")
}

func TestSweepAppointmentsSurvivesChannelPanic(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	now := time.Now().UTC()
	for i := 1; i <= 3; i++ {
		_, err := store.ScheduleAppointment(ctx, "PT001", records.NewAppointment{Type: "checkup", ScheduledAt: now.Add(time.Duration(i) * time.Hour)})
		require.NoError(t, err)
	}

	calls := 0
	ch := ChannelFunc(func(context.Context, models.Reminder) error {
		calls++
		if calls == 1 {
			panic("boom")
		}
		return nil
	})
	res, err := NewScanner(store, ch, WithNow(func() time.Time { return now })).SweepAppointments(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 2, res.Delivered)
}

func TestFormatMedicationDueTime(t *testing.T) {
	due := time.Date(2025, 3, 3, 14, 5, 0, 0, time.UTC)
	text := FormatMedication(models.DueMedication{
		Medication: models.Medication{Name: "amoxicillin", Dosage: "500mg", Route: "oral", NextDoseTime: &due},
		Patient:    models.Patient{PatientID: "PT001", Name: "John Smith"},
	})
	assert.Equal(t, "🔔 **Medication Reminder**\n\nPatient: John Smith (PT001)\nMedication: amoxicillin 500mg\nRoute: oral\nDue: 02:05 PM", text)
}

func TestFormatAppointmentWithoutNotes(t *testing.T) {
	text := FormatAppointment(models.UpcomingAppointment{
		Appointment: models.Appointment{Type: "checkup", ScheduledAt: time.Date(2025, 3, 4, 9, 0, 0, 0, time.UTC)},
		Patient:     models.Patient{PatientID: "PT001", Name: "John Smith"},
	})
	assert.Equal(t, "📅 **Appointment Reminder**\n\nPatient: John Smith (PT001)\nType: checkup\nTime: March 04, 2025 at 09:00 AM", text)
}

// interleavedStore runs a competing sweep after the first sweep has selected
// its due doses and before it advances them.
type interleavedStore struct {
	*records.MemoryStore
	competing func()
	once      sync.Once
}

func (s *interleavedStore) DueMedications(ctx context.Context, cutoff time.Time) ([]models.DueMedication, error) {
	due, err := s.MemoryStore.DueMedications(ctx, cutoff)
	s.once.Do(s.competing)
	return due, err
}

func TestConcurrentSweepsRemindOncePerDose(t *testing.T) {
	mem := setupStore(t)
	prescribe(t, mem, "Amoxicillin", "three times daily", time.Now().Add(-time.Minute))

	other := &captureChannel{}
	store := &interleavedStore{MemoryStore: mem}
	store.competing = func() {
		res, err := NewScanner(mem, other).SweepMedications(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, res.Delivered)
	}

	first := &captureChannel{}
	res, err := NewScanner(store, first).SweepMedications(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, res.Selected)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, 0, res.Failed)
	assert.Equal(t, 0, first.count())
	assert.Equal(t, 1, other.count())
	assert.Len(t, mem.Reminders(), 1, "one due dose must produce one outbox row")
}
