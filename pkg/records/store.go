package records

import (
	"context"
	"errors"
	"time"

	"github.com/nurse-etr/assistant/pkg/common/models"
)

var (
	ErrPatientNotFound    = errors.New("patient not found")
	ErrDuplicatePatientID = errors.New("patient id already taken")
	ErrReminderNotFound   = errors.New("reminder not found")
	ErrMedicationNotFound = errors.New("medication not found")
	// ErrDoseAlreadyAdvanced means next_dose_time no longer holds the value
	// the caller selected; another sweep got there first.
	ErrDoseAlreadyAdvanced = errors.New("dose already advanced")
)

// Store is the clinical record store shared by the message path and the
// reminder sweeps. Every mutating call is a single transaction; child rows
// are only written once their patient resolves.
type Store interface {
	PatientIDExists(ctx context.Context, patientID string) (bool, error)
	CreatePatient(ctx context.Context, in NewPatient) (models.Patient, error)
	GetPatient(ctx context.Context, patientID string) (models.Patient, error)

	RecordVitals(ctx context.Context, patientID string, in NewVitals) (models.Vitals, error)
	AddDiagnosis(ctx context.Context, patientID string, in NewDiagnosis) (models.Diagnosis, error)
	PrescribeMedication(ctx context.Context, patientID string, in NewMedication) (models.Medication, error)
	ScheduleAppointment(ctx context.Context, patientID string, in NewAppointment) (models.Appointment, error)
	PatientRecord(ctx context.Context, patientID string) (models.PatientRecord, error)

	DueMedications(ctx context.Context, cutoff time.Time) ([]models.DueMedication, error)
	UpcomingAppointments(ctx context.Context, from, to time.Time) ([]models.UpcomingAppointment, error)
	// AdvanceDose moves next_dose_time from expected to next and inserts the
	// pending reminder in the same transaction.
	AdvanceDose(ctx context.Context, medicationID uint, expected, next time.Time, reminder models.Reminder) (models.Reminder, error)
	PendingReminders(ctx context.Context, createdBefore time.Time, limit int) ([]models.Reminder, error)
	MarkReminder(ctx context.Context, id, status, errMsg string) error

	LogMessage(ctx context.Context, entry models.MessageLog) error
}

type NewPatient struct {
	PatientID string
	Name      string
	Age       *int
	Gender    *string
	Phone     *string
}

type NewVitals struct {
	BloodPressure    *string
	Temperature      *float64
	Pulse            *int
	RespiratoryRate  *int
	OxygenSaturation *float64
	Notes            *string
	RecordedAt       time.Time
}

type NewDiagnosis struct {
	DoctorName  string
	Diagnosis   string
	DiagnosedAt time.Time
}

type NewMedication struct {
	Name         string
	Dosage       string
	Frequency    string
	Route        string
	StartDate    time.Time
	EndDate      *time.Time
	NextDoseTime time.Time
	Notes        *string
}

type NewAppointment struct {
	Type        string
	ScheduledAt time.Time
	Notes       *string
}

func stamp(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t.UTC()
}

var (
	_ Store = (*GormStore)(nil)
	_ Store = (*MemoryStore)(nil)
)
