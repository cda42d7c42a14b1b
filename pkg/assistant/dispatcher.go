package assistant

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nurse-etr/assistant/pkg/common/logger"
	"github.com/nurse-etr/assistant/pkg/common/models"
	"github.com/nurse-etr/assistant/pkg/dlp"
	"github.com/nurse-etr/assistant/pkg/intent"
	"github.com/nurse-etr/assistant/pkg/observability/metrics"
	"github.com/nurse-etr/assistant/pkg/records"
	"github.com/sirupsen/logrus"
)

// DefaultAppointmentLead is used when the requested time cannot be read.
const DefaultAppointmentLead = 24 * time.Hour

// Outcome is the result of one nurse message.
type Outcome struct {
	Intent  intent.Kind
	Success bool
	Data    map[string]interface{}
	Text    string
	// Err is set only for internal failures; a missing patient is a
	// plain Success=false.
	Err error
}

type Dispatcher struct {
	store     records.Store
	extractor intent.Extractor
	now       func() time.Time
	idgen     records.IDGenerator
	attempts  int
	redactor  *dlp.Redactor
}

type Option func(*Dispatcher)

func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

func WithIDGenerator(gen records.IDGenerator, attempts int) Option {
	return func(d *Dispatcher) {
		d.idgen = gen
		d.attempts = attempts
	}
}

// WithRedactor masks identifiers in message log rows.
func WithRedactor(r *dlp.Redactor) Option {
	return func(d *Dispatcher) { d.redactor = r }
}

func NewDispatcher(store records.Store, extractor intent.Extractor, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		store:     store,
		extractor: extractor,
		now:       time.Now,
		idgen:     records.RandomPatientID,
		attempts:  records.DefaultIDAttempts,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// HandleMessage runs extraction, decoding and dispatch for one message. It
// always returns a renderable Outcome.
func (d *Dispatcher) HandleMessage(ctx context.Context, userID, text string) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic handling message: %v", r)
			logger.Log.WithError(err).Error("Panic recovered in dispatcher")
			out = errorOutcome(out.Intent, err)
		}
		d.audit(ctx, userID, text, out)
	}()

	raw := d.extractor.Extract(ctx, text)
	cmd := intent.Decode(raw)
	logger.Log.WithFields(logrus.Fields{
		"user_id": userID,
		"intent":  cmd.Kind(),
	}).Info("Intent detected")

	out, err := d.Dispatch(ctx, cmd)
	if err != nil {
		logger.Log.WithError(err).WithField("intent", cmd.Kind()).Error("Failed to handle message")
		return errorOutcome(cmd.Kind(), err)
	}
	return out
}

func errorOutcome(kind intent.Kind, err error) Outcome {
	if kind == "" {
		kind = intent.KindUnknown
	}
	return Outcome{Intent: kind, Success: false, Data: map[string]interface{}{}, Text: ErrorText, Err: err}
}

func (d *Dispatcher) audit(ctx context.Context, userID, text string, out Outcome) {
	metrics.ObserveMessage(string(out.Intent), out.Success, out.Err != nil)

	entry := models.MessageLog{
		ID:        uuid.New().String(),
		UserID:    userID,
		Message:   d.redactor.Text(text),
		Intent:    string(out.Intent),
		Success:   out.Success,
		Response:  d.redactor.Text(out.Text),
		Data:      d.redactor.Map(auditData(out.Data)),
		CreatedAt: d.now().UTC(),
	}
	if out.Err != nil {
		entry.Error = out.Err.Error()
	}
	if masked := d.redactor.Types(text); len(masked) > 0 {
		logger.Log.WithFields(logrus.Fields{
			"user_id":  userID,
			"intent":   out.Intent,
			"redacted": masked,
		}).Info("Masked identifiers in message log entry")
	}
	if err := d.store.LogMessage(ctx, entry); err != nil {
		logger.Log.WithError(err).Warn("Failed to write message log")
	}
}

// auditData drops the typed chart values a query returns; the log keeps
// only flat fields.
func auditData(data map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(data))
	for k, v := range data {
		switch v.(type) {
		case string, bool, int, float64, map[string]interface{}:
			out[k] = v
		}
	}
	return out
}

// Dispatch performs the single store operation a command maps to and renders
// the reply. A returned error means the store itself failed.
func (d *Dispatcher) Dispatch(ctx context.Context, cmd intent.Command) (Outcome, error) {
	var (
		data map[string]interface{}
		err  error
	)

	switch c := cmd.(type) {
	case intent.RegisterPatient:
		data, err = d.registerPatient(ctx, c)
	case intent.RecordVitals:
		data, err = d.recordVitals(ctx, c)
	case intent.AddDiagnosis:
		data, err = d.addDiagnosis(ctx, c)
	case intent.PrescribeMedication:
		data, err = d.prescribeMedication(ctx, c)
	case intent.ScheduleAppointment:
		data, err = d.scheduleAppointment(ctx, c)
	case intent.QueryPatient:
		data, err = d.queryPatient(ctx, c)
	default:
		data = map[string]interface{}{}
	}

	kind := cmd.Kind()
	success := data != nil
	switch {
	case errors.Is(err, records.ErrPatientNotFound), errors.Is(err, errMissingField):
		success = false
	case err != nil:
		return Outcome{Intent: kind}, err
	}
	if kind == intent.KindUnknown || kind == intent.KindListReminders {
		success = false
	}
	if data == nil {
		data = map[string]interface{}{}
	}

	return Outcome{
		Intent:  kind,
		Success: success,
		Data:    data,
		Text:    Render(kind, success, data),
	}, nil
}

var errMissingField = errors.New("required field missing")

func requirePatientID(id string) error {
	if id == "" {
		return records.ErrPatientNotFound
	}
	return nil
}

func (d *Dispatcher) registerPatient(ctx context.Context, c intent.RegisterPatient) (map[string]interface{}, error) {
	p, err := records.RegisterPatient(ctx, d.store, d.idgen, records.NewPatient{
		Name:   c.Name,
		Age:    c.Age,
		Gender: c.Gender,
		Phone:  c.Phone,
	}, d.attempts)
	if err != nil {
		return nil, err
	}
	data := map[string]interface{}{
		"patient_id": p.PatientID,
		"name":       p.Name,
	}
	if p.Age != nil {
		data["age"] = *p.Age
	}
	if p.Gender != nil {
		data["gender"] = *p.Gender
	}
	return data, nil
}

func (d *Dispatcher) recordVitals(ctx context.Context, c intent.RecordVitals) (map[string]interface{}, error) {
	if err := requirePatientID(c.PatientID); err != nil {
		return nil, err
	}
	v, err := d.store.RecordVitals(ctx, c.PatientID, records.NewVitals{
		BloodPressure:    c.BloodPressure,
		Temperature:      c.Temperature,
		Pulse:            c.Pulse,
		RespiratoryRate:  c.RespiratoryRate,
		OxygenSaturation: c.OxygenSaturation,
		Notes:            c.Notes,
		RecordedAt:       d.now(),
	})
	if err != nil {
		return nil, err
	}

	vitals := map[string]interface{}{}
	if v.BloodPressure != nil {
		vitals["blood_pressure"] = *v.BloodPressure
	}
	if v.Temperature != nil {
		vitals["temperature"] = *v.Temperature
	}
	if v.Pulse != nil {
		vitals["pulse"] = *v.Pulse
	}
	if v.RespiratoryRate != nil {
		vitals["respiratory_rate"] = *v.RespiratoryRate
	}
	if v.OxygenSaturation != nil {
		vitals["oxygen_saturation"] = *v.OxygenSaturation
	}
	return map[string]interface{}{
		"patient_id": c.PatientID,
		"vitals":     vitals,
	}, nil
}

func (d *Dispatcher) addDiagnosis(ctx context.Context, c intent.AddDiagnosis) (map[string]interface{}, error) {
	if err := requirePatientID(c.PatientID); err != nil {
		return nil, err
	}
	if c.Diagnosis == "" {
		return nil, errMissingField
	}
	diag, err := d.store.AddDiagnosis(ctx, c.PatientID, records.NewDiagnosis{
		DoctorName:  c.DoctorName,
		Diagnosis:   c.Diagnosis,
		DiagnosedAt: d.now(),
	})
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"patient_id":  c.PatientID,
		"doctor_name": diag.DoctorName,
		"diagnosis":   diag.Diagnosis,
	}, nil
}

func (d *Dispatcher) prescribeMedication(ctx context.Context, c intent.PrescribeMedication) (map[string]interface{}, error) {
	if err := requirePatientID(c.PatientID); err != nil {
		return nil, err
	}
	if c.Name == "" {
		return nil, errMissingField
	}
	now := d.now()
	med, err := d.store.PrescribeMedication(ctx, c.PatientID, records.NewMedication{
		Name:         c.Name,
		Dosage:       c.Dosage,
		Frequency:    c.Frequency,
		Route:        c.Route,
		StartDate:    now,
		NextDoseTime: records.NextDose(c.Frequency, now),
		Notes:        c.Notes,
	})
	if err != nil {
		return nil, err
	}
	data := map[string]interface{}{
		"patient_id":      c.PatientID,
		"medication_name": med.Name,
		"dosage":          med.Dosage,
		"frequency":       med.Frequency,
		"route":           med.Route,
	}
	if med.NextDoseTime != nil {
		data["next_dose_time"] = med.NextDoseTime.UTC().Format(time.RFC3339)
	}
	return data, nil
}

func (d *Dispatcher) scheduleAppointment(ctx context.Context, c intent.ScheduleAppointment) (map[string]interface{}, error) {
	if err := requirePatientID(c.PatientID); err != nil {
		return nil, err
	}
	now := d.now()
	at, ok := intent.ParseAppointmentTime(c.Time, now)
	if !ok {
		at = now.UTC().Add(DefaultAppointmentLead)
	}
	appt, err := d.store.ScheduleAppointment(ctx, c.PatientID, records.NewAppointment{
		Type:        c.Type,
		ScheduledAt: at,
		Notes:       c.Notes,
	})
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"patient_id":           c.PatientID,
		"appointment_type":     appt.Type,
		"appointment_datetime": appt.ScheduledAt.Format(AppointmentLayout),
	}, nil
}

func (d *Dispatcher) queryPatient(ctx context.Context, c intent.QueryPatient) (map[string]interface{}, error) {
	if err := requirePatientID(c.PatientID); err != nil {
		return nil, err
	}
	record, err := d.store.PatientRecord(ctx, c.PatientID)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"patient":      record.Patient,
		"vitals":       record.Vitals,
		"diagnoses":    record.Diagnoses,
		"medications":  record.Medications,
		"appointments": record.Appointments,
	}, nil
}
