package records

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/nurse-etr/assistant/pkg/common/models"
)

// MemoryStore keeps everything in process. Used for local runs and tests.
type MemoryStore struct {
	mu sync.RWMutex

	nextID       uint
	patients     map[string]*models.Patient
	vitals       map[uint][]models.Vitals
	diagnoses    map[uint][]models.Diagnosis
	medications  []*models.Medication
	appointments []*models.Appointment
	reminders    []*models.Reminder
	messages     []models.MessageLog
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		patients:  make(map[string]*models.Patient),
		vitals:    make(map[uint][]models.Vitals),
		diagnoses: make(map[uint][]models.Diagnosis),
	}
}

func (s *MemoryStore) id() uint {
	s.nextID++
	return s.nextID
}

func (s *MemoryStore) PatientIDExists(_ context.Context, patientID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.patients[patientID]
	return ok, nil
}

func (s *MemoryStore) CreatePatient(_ context.Context, in NewPatient) (models.Patient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.patients[in.PatientID]; ok {
		return models.Patient{}, ErrDuplicatePatientID
	}
	now := time.Now().UTC()
	p := &models.Patient{
		ID:        s.id(),
		PatientID: in.PatientID,
		Name:      in.Name,
		Age:       in.Age,
		Gender:    in.Gender,
		Phone:     in.Phone,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.patients[in.PatientID] = p
	return *p, nil
}

func (s *MemoryStore) GetPatient(_ context.Context, patientID string) (models.Patient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.patients[patientID]
	if !ok {
		return models.Patient{}, ErrPatientNotFound
	}
	return *p, nil
}

func (s *MemoryStore) RecordVitals(_ context.Context, patientID string, in NewVitals) (models.Vitals, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.patients[patientID]
	if !ok {
		return models.Vitals{}, ErrPatientNotFound
	}
	v := models.Vitals{
		ID:               s.id(),
		PatientRef:       p.ID,
		BloodPressure:    in.BloodPressure,
		Temperature:      in.Temperature,
		Pulse:            in.Pulse,
		RespiratoryRate:  in.RespiratoryRate,
		OxygenSaturation: in.OxygenSaturation,
		Notes:            in.Notes,
		RecordedAt:       stamp(in.RecordedAt),
	}
	s.vitals[p.ID] = append(s.vitals[p.ID], v)
	return v, nil
}

func (s *MemoryStore) AddDiagnosis(_ context.Context, patientID string, in NewDiagnosis) (models.Diagnosis, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.patients[patientID]
	if !ok {
		return models.Diagnosis{}, ErrPatientNotFound
	}
	d := models.Diagnosis{
		ID:          s.id(),
		PatientRef:  p.ID,
		DoctorName:  in.DoctorName,
		Diagnosis:   in.Diagnosis,
		DiagnosedAt: stamp(in.DiagnosedAt),
	}
	s.diagnoses[p.ID] = append(s.diagnoses[p.ID], d)
	return d, nil
}

func (s *MemoryStore) PrescribeMedication(_ context.Context, patientID string, in NewMedication) (models.Medication, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.patients[patientID]
	if !ok {
		return models.Medication{}, ErrPatientNotFound
	}
	next := in.NextDoseTime.UTC()
	m := &models.Medication{
		ID:           s.id(),
		PatientRef:   p.ID,
		Name:         in.Name,
		Dosage:       in.Dosage,
		Frequency:    in.Frequency,
		Route:        in.Route,
		StartDate:    stamp(in.StartDate),
		EndDate:      in.EndDate,
		NextDoseTime: &next,
		Active:       true,
		Notes:        in.Notes,
	}
	s.medications = append(s.medications, m)
	return *m, nil
}

func (s *MemoryStore) ScheduleAppointment(_ context.Context, patientID string, in NewAppointment) (models.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.patients[patientID]
	if !ok {
		return models.Appointment{}, ErrPatientNotFound
	}
	a := &models.Appointment{
		ID:          s.id(),
		PatientRef:  p.ID,
		Type:        in.Type,
		ScheduledAt: in.ScheduledAt.UTC(),
		Notes:       in.Notes,
		CreatedAt:   time.Now().UTC(),
	}
	s.appointments = append(s.appointments, a)
	return *a, nil
}

// SetAppointmentCompleted flips the completion flag. There is no chat
// command for it; operators and tests use it directly.
func (s *MemoryStore) SetAppointmentCompleted(id uint, completed bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.appointments {
		if a.ID == id {
			a.Completed = completed
			return true
		}
	}
	return false
}

// SetMedicationActive toggles whether a prescription is still swept.
func (s *MemoryStore) SetMedicationActive(id uint, active bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.medications {
		if m.ID == id {
			m.Active = active
			return true
		}
	}
	return false
}

func (s *MemoryStore) PatientRecord(_ context.Context, patientID string) (models.PatientRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.patients[patientID]
	if !ok {
		return models.PatientRecord{}, ErrPatientNotFound
	}

	record := models.PatientRecord{
		Patient:      *p,
		Vitals:       append([]models.Vitals{}, s.vitals[p.ID]...),
		Diagnoses:    append([]models.Diagnosis{}, s.diagnoses[p.ID]...),
		Medications:  []models.Medication{},
		Appointments: []models.Appointment{},
	}
	sort.SliceStable(record.Vitals, func(i, j int) bool {
		a, b := record.Vitals[i], record.Vitals[j]
		if !a.RecordedAt.Equal(b.RecordedAt) {
			return a.RecordedAt.After(b.RecordedAt)
		}
		return a.ID > b.ID
	})
	sort.SliceStable(record.Diagnoses, func(i, j int) bool {
		a, b := record.Diagnoses[i], record.Diagnoses[j]
		if !a.DiagnosedAt.Equal(b.DiagnosedAt) {
			return a.DiagnosedAt.After(b.DiagnosedAt)
		}
		return a.ID > b.ID
	})
	for _, m := range s.medications {
		if m.PatientRef == p.ID {
			record.Medications = append(record.Medications, *m)
		}
	}
	for _, a := range s.appointments {
		if a.PatientRef == p.ID {
			record.Appointments = append(record.Appointments, *a)
		}
	}
	sort.SliceStable(record.Appointments, func(i, j int) bool {
		a, b := record.Appointments[i], record.Appointments[j]
		if !a.ScheduledAt.Equal(b.ScheduledAt) {
			return a.ScheduledAt.Before(b.ScheduledAt)
		}
		return a.ID < b.ID
	})
	return record, nil
}

func (s *MemoryStore) patientByRef(ref uint) models.Patient {
	for _, p := range s.patients {
		if p.ID == ref {
			return *p
		}
	}
	return models.Patient{}
}

func (s *MemoryStore) DueMedications(_ context.Context, cutoff time.Time) ([]models.DueMedication, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.DueMedication
	for _, m := range s.medications {
		if !m.Active || m.NextDoseTime == nil || m.NextDoseTime.After(cutoff) {
			continue
		}
		out = append(out, models.DueMedication{Medication: *m, Patient: s.patientByRef(m.PatientRef)})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Medication.NextDoseTime.Before(*out[j].Medication.NextDoseTime)
	})
	return out, nil
}

func (s *MemoryStore) UpcomingAppointments(_ context.Context, from, to time.Time) ([]models.UpcomingAppointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.UpcomingAppointment
	for _, a := range s.appointments {
		if a.Completed || a.ScheduledAt.Before(from) || a.ScheduledAt.After(to) {
			continue
		}
		out = append(out, models.UpcomingAppointment{Appointment: *a, Patient: s.patientByRef(a.PatientRef)})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Appointment.ScheduledAt.Before(out[j].Appointment.ScheduledAt)
	})
	return out, nil
}

func (s *MemoryStore) AdvanceDose(_ context.Context, medicationID uint, expected, next time.Time, reminder models.Reminder) (models.Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var med *models.Medication
	for _, m := range s.medications {
		if m.ID == medicationID {
			med = m
			break
		}
	}
	if med == nil {
		return models.Reminder{}, ErrMedicationNotFound
	}
	if med.NextDoseTime == nil || !med.NextDoseTime.Equal(expected) {
		return models.Reminder{}, ErrDoseAlreadyAdvanced
	}
	n := next.UTC()
	med.NextDoseTime = &n

	r := reminder
	r.SubjectID = medicationID
	r.DueAt = r.DueAt.UTC()
	r.Status = models.ReminderPending
	r.CreatedAt = time.Now().UTC()
	s.reminders = append(s.reminders, &r)
	return r, nil
}

func (s *MemoryStore) PendingReminders(_ context.Context, createdBefore time.Time, limit int) ([]models.Reminder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var out []models.Reminder
	for _, r := range s.reminders {
		if r.Status != models.ReminderPending || !r.CreatedAt.Before(createdBefore) {
			continue
		}
		out = append(out, *r)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *MemoryStore) MarkReminder(_ context.Context, id, status, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.reminders {
		if r.ID == id {
			r.Status = status
			r.Error = errMsg
			return nil
		}
	}
	return ErrReminderNotFound
}

// Reminders returns a snapshot of the outbox in insertion order.
func (s *MemoryStore) Reminders() []models.Reminder {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Reminder, 0, len(s.reminders))
	for _, r := range s.reminders {
		out = append(out, *r)
	}
	return out
}

func (s *MemoryStore) LogMessage(_ context.Context, entry models.MessageLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry.CreatedAt = stamp(entry.CreatedAt)
	s.messages = append(s.messages, entry)
	return nil
}

func (s *MemoryStore) Messages() []models.MessageLog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.MessageLog{}, s.messages...)
}
