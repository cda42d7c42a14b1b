package records

import (
	"context"
	"errors"
	"time"

	"github.com/nurse-etr/assistant/pkg/common/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore is the relational Store. Child tables reference patients.id
// with ON DELETE CASCADE.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

type patientModel struct {
	ID        uint      `gorm:"primaryKey;column:id"`
	PatientID string    `gorm:"column:patient_id;size:32;uniqueIndex;not null"`
	Name      string    `gorm:"column:name;not null"`
	Age       *int      `gorm:"column:age"`
	Gender    *string   `gorm:"column:gender"`
	Phone     *string   `gorm:"column:phone"`
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (patientModel) TableName() string { return "patients" }

type vitalsModel struct {
	ID               uint         `gorm:"primaryKey;column:id"`
	PatientRef       uint         `gorm:"column:patient_id;index;not null"`
	Patient          patientModel `gorm:"foreignKey:PatientRef;constraint:OnDelete:CASCADE"`
	BloodPressure    *string      `gorm:"column:blood_pressure"`
	Temperature      *float64     `gorm:"column:temperature"`
	Pulse            *int         `gorm:"column:pulse"`
	RespiratoryRate  *int         `gorm:"column:respiratory_rate"`
	OxygenSaturation *float64     `gorm:"column:oxygen_saturation"`
	Notes            *string      `gorm:"column:notes;type:text"`
	RecordedAt       time.Time    `gorm:"column:recorded_at;index"`
}

func (vitalsModel) TableName() string { return "vitals" }

type diagnosisModel struct {
	ID          uint         `gorm:"primaryKey;column:id"`
	PatientRef  uint         `gorm:"column:patient_id;index;not null"`
	Patient     patientModel `gorm:"foreignKey:PatientRef;constraint:OnDelete:CASCADE"`
	DoctorName  string       `gorm:"column:doctor_name"`
	Diagnosis   string       `gorm:"column:diagnosis;type:text;not null"`
	DiagnosedAt time.Time    `gorm:"column:diagnosed_at;index"`
}

func (diagnosisModel) TableName() string { return "diagnoses" }

type medicationModel struct {
	ID           uint         `gorm:"primaryKey;column:id"`
	PatientRef   uint         `gorm:"column:patient_id;index;not null"`
	Patient      patientModel `gorm:"foreignKey:PatientRef;constraint:OnDelete:CASCADE"`
	Name         string       `gorm:"column:medication_name;not null"`
	Dosage       string       `gorm:"column:dosage"`
	Frequency    string       `gorm:"column:frequency"`
	Route        string       `gorm:"column:route"`
	StartDate    time.Time    `gorm:"column:start_date"`
	EndDate      *time.Time   `gorm:"column:end_date"`
	NextDoseTime *time.Time   `gorm:"column:next_dose_time;index"`
	IsActive     bool         `gorm:"column:is_active;index;not null;default:true"`
	Notes        *string      `gorm:"column:notes;type:text"`
}

func (medicationModel) TableName() string { return "medications" }

type appointmentModel struct {
	ID          uint         `gorm:"primaryKey;column:id"`
	PatientRef  uint         `gorm:"column:patient_id;index;not null"`
	Patient     patientModel `gorm:"foreignKey:PatientRef;constraint:OnDelete:CASCADE"`
	Type        string       `gorm:"column:appointment_type"`
	ScheduledAt time.Time    `gorm:"column:appointment_datetime;index;not null"`
	Notes       *string      `gorm:"column:notes;type:text"`
	IsCompleted bool         `gorm:"column:is_completed;index;not null;default:false"`
	CreatedAt   time.Time    `gorm:"column:created_at"`
}

func (appointmentModel) TableName() string { return "appointments" }

type reminderModel struct {
	ID        string            `gorm:"primaryKey;column:id;size:36"`
	Kind      string            `gorm:"column:kind;size:32"`
	PatientID string            `gorm:"column:patient_id;size:32;index"`
	SubjectID uint              `gorm:"column:subject_id"`
	DueAt     time.Time         `gorm:"column:due_at"`
	Text      string            `gorm:"column:text;type:text"`
	Status    string            `gorm:"column:status;size:16;index"`
	Error     string            `gorm:"column:error"`
	Payload   datatypes.JSONMap `gorm:"column:payload;type:jsonb"`
	CreatedAt time.Time         `gorm:"column:created_at;index"`
	UpdatedAt time.Time         `gorm:"column:updated_at"`
}

func (reminderModel) TableName() string { return "reminder_outbox" }

type messageLogModel struct {
	ID        string            `gorm:"primaryKey;column:id;size:36"`
	UserID    string            `gorm:"column:user_id;index"`
	Message   string            `gorm:"column:message;type:text"`
	Intent    string            `gorm:"column:intent;size:32;index"`
	Success   bool              `gorm:"column:success"`
	Response  string            `gorm:"column:response;type:text"`
	Data      datatypes.JSONMap `gorm:"column:data;type:jsonb"`
	Error     string            `gorm:"column:error"`
	CreatedAt time.Time         `gorm:"column:created_at;index"`
}

func (messageLogModel) TableName() string { return "message_logs" }

func (s *GormStore) AutoMigrate() error {
	return s.db.AutoMigrate(
		&patientModel{},
		&vitalsModel{},
		&diagnosisModel{},
		&medicationModel{},
		&appointmentModel{},
		&reminderModel{},
		&messageLogModel{},
	)
}

func (s *GormStore) PatientIDExists(ctx context.Context, patientID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&patientModel{}).Where("patient_id = ?", patientID).Count(&count).Error
	return count > 0, err
}

func (s *GormStore) CreatePatient(ctx context.Context, in NewPatient) (models.Patient, error) {
	now := time.Now().UTC()
	row := &patientModel{
		PatientID: in.PatientID,
		Name:      in.Name,
		Age:       in.Age,
		Gender:    in.Gender,
		Phone:     in.Phone,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return models.Patient{}, ErrDuplicatePatientID
		}
		return models.Patient{}, err
	}
	return mapPatient(*row), nil
}

func (s *GormStore) GetPatient(ctx context.Context, patientID string) (models.Patient, error) {
	row, err := findPatient(s.db.WithContext(ctx), patientID)
	if err != nil {
		return models.Patient{}, err
	}
	return mapPatient(row), nil
}

func findPatient(tx *gorm.DB, patientID string) (patientModel, error) {
	var row patientModel
	err := tx.Where("patient_id = ?", patientID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return patientModel{}, ErrPatientNotFound
	}
	return row, err
}

// withPatient resolves the patient and runs fn inside the same transaction,
// so a missing patient never leaves a child row behind.
func (s *GormStore) withPatient(ctx context.Context, patientID string, fn func(tx *gorm.DB, p patientModel) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := findPatient(tx, patientID)
		if err != nil {
			return err
		}
		return fn(tx.Omit(clause.Associations), p)
	})
}

func (s *GormStore) RecordVitals(ctx context.Context, patientID string, in NewVitals) (models.Vitals, error) {
	var row vitalsModel
	err := s.withPatient(ctx, patientID, func(tx *gorm.DB, p patientModel) error {
		row = vitalsModel{
			PatientRef:       p.ID,
			BloodPressure:    in.BloodPressure,
			Temperature:      in.Temperature,
			Pulse:            in.Pulse,
			RespiratoryRate:  in.RespiratoryRate,
			OxygenSaturation: in.OxygenSaturation,
			Notes:            in.Notes,
			RecordedAt:       stamp(in.RecordedAt),
		}
		return tx.Create(&row).Error
	})
	if err != nil {
		return models.Vitals{}, err
	}
	return mapVitals(row), nil
}

func (s *GormStore) AddDiagnosis(ctx context.Context, patientID string, in NewDiagnosis) (models.Diagnosis, error) {
	var row diagnosisModel
	err := s.withPatient(ctx, patientID, func(tx *gorm.DB, p patientModel) error {
		row = diagnosisModel{
			PatientRef:  p.ID,
			DoctorName:  in.DoctorName,
			Diagnosis:   in.Diagnosis,
			DiagnosedAt: stamp(in.DiagnosedAt),
		}
		return tx.Create(&row).Error
	})
	if err != nil {
		return models.Diagnosis{}, err
	}
	return mapDiagnosis(row), nil
}

func (s *GormStore) PrescribeMedication(ctx context.Context, patientID string, in NewMedication) (models.Medication, error) {
	var row medicationModel
	err := s.withPatient(ctx, patientID, func(tx *gorm.DB, p patientModel) error {
		next := in.NextDoseTime.UTC()
		row = medicationModel{
			PatientRef:   p.ID,
			Name:         in.Name,
			Dosage:       in.Dosage,
			Frequency:    in.Frequency,
			Route:        in.Route,
			StartDate:    stamp(in.StartDate),
			EndDate:      in.EndDate,
			NextDoseTime: &next,
			IsActive:     true,
			Notes:        in.Notes,
		}
		return tx.Create(&row).Error
	})
	if err != nil {
		return models.Medication{}, err
	}
	return mapMedication(row), nil
}

func (s *GormStore) ScheduleAppointment(ctx context.Context, patientID string, in NewAppointment) (models.Appointment, error) {
	var row appointmentModel
	err := s.withPatient(ctx, patientID, func(tx *gorm.DB, p patientModel) error {
		row = appointmentModel{
			PatientRef:  p.ID,
			Type:        in.Type,
			ScheduledAt: in.ScheduledAt.UTC(),
			Notes:       in.Notes,
			CreatedAt:   time.Now().UTC(),
		}
		return tx.Create(&row).Error
	})
	if err != nil {
		return models.Appointment{}, err
	}
	return mapAppointment(row), nil
}

func (s *GormStore) PatientRecord(ctx context.Context, patientID string) (models.PatientRecord, error) {
	db := s.db.WithContext(ctx)
	p, err := findPatient(db, patientID)
	if err != nil {
		return models.PatientRecord{}, err
	}

	var vitals []vitalsModel
	if err := db.Where("patient_id = ?", p.ID).Order("recorded_at DESC, id DESC").Find(&vitals).Error; err != nil {
		return models.PatientRecord{}, err
	}
	var diagnoses []diagnosisModel
	if err := db.Where("patient_id = ?", p.ID).Order("diagnosed_at DESC, id DESC").Find(&diagnoses).Error; err != nil {
		return models.PatientRecord{}, err
	}
	var medications []medicationModel
	if err := db.Where("patient_id = ?", p.ID).Order("id").Find(&medications).Error; err != nil {
		return models.PatientRecord{}, err
	}
	var appointments []appointmentModel
	if err := db.Where("patient_id = ?", p.ID).Order("appointment_datetime, id").Find(&appointments).Error; err != nil {
		return models.PatientRecord{}, err
	}

	record := models.PatientRecord{
		Patient:      mapPatient(p),
		Vitals:       make([]models.Vitals, 0, len(vitals)),
		Diagnoses:    make([]models.Diagnosis, 0, len(diagnoses)),
		Medications:  make([]models.Medication, 0, len(medications)),
		Appointments: make([]models.Appointment, 0, len(appointments)),
	}
	for _, v := range vitals {
		record.Vitals = append(record.Vitals, mapVitals(v))
	}
	for _, d := range diagnoses {
		record.Diagnoses = append(record.Diagnoses, mapDiagnosis(d))
	}
	for _, m := range medications {
		record.Medications = append(record.Medications, mapMedication(m))
	}
	for _, a := range appointments {
		record.Appointments = append(record.Appointments, mapAppointment(a))
	}
	return record, nil
}

func (s *GormStore) DueMedications(ctx context.Context, cutoff time.Time) ([]models.DueMedication, error) {
	var rows []medicationModel
	err := s.db.WithContext(ctx).
		Preload("Patient").
		Where("is_active = ? AND next_dose_time IS NOT NULL AND next_dose_time <= ?", true, cutoff.UTC()).
		Order("next_dose_time, id").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]models.DueMedication, 0, len(rows))
	for _, row := range rows {
		out = append(out, models.DueMedication{Medication: mapMedication(row), Patient: mapPatient(row.Patient)})
	}
	return out, nil
}

func (s *GormStore) UpcomingAppointments(ctx context.Context, from, to time.Time) ([]models.UpcomingAppointment, error) {
	var rows []appointmentModel
	err := s.db.WithContext(ctx).
		Preload("Patient").
		Where("is_completed = ? AND appointment_datetime >= ? AND appointment_datetime <= ?", false, from.UTC(), to.UTC()).
		Order("appointment_datetime, id").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]models.UpcomingAppointment, 0, len(rows))
	for _, row := range rows {
		out = append(out, models.UpcomingAppointment{Appointment: mapAppointment(row), Patient: mapPatient(row.Patient)})
	}
	return out, nil
}

func (s *GormStore) AdvanceDose(ctx context.Context, medicationID uint, expected, next time.Time, reminder models.Reminder) (models.Reminder, error) {
	now := time.Now().UTC()
	row := reminderModel{
		ID:        reminder.ID,
		Kind:      reminder.Kind,
		PatientID: reminder.PatientID,
		SubjectID: medicationID,
		DueAt:     reminder.DueAt.UTC(),
		Text:      reminder.Text,
		Status:    models.ReminderPending,
		Payload:   datatypes.JSONMap(reminder.Payload),
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&medicationModel{}).
			Where("id = ? AND next_dose_time = ?", medicationID, expected.UTC()).
			Update("next_dose_time", next.UTC())
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&medicationModel{}).Where("id = ?", medicationID).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return ErrMedicationNotFound
			}
			return ErrDoseAlreadyAdvanced
		}
		return tx.Create(&row).Error
	})
	if err != nil {
		return models.Reminder{}, err
	}
	return mapReminder(row), nil
}

func (s *GormStore) PendingReminders(ctx context.Context, createdBefore time.Time, limit int) ([]models.Reminder, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var rows []reminderModel
	err := s.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", models.ReminderPending, createdBefore.UTC()).
		Order("created_at").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]models.Reminder, 0, len(rows))
	for _, row := range rows {
		out = append(out, mapReminder(row))
	}
	return out, nil
}

func (s *GormStore) MarkReminder(ctx context.Context, id, status, errMsg string) error {
	res := s.db.WithContext(ctx).Model(&reminderModel{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":     status,
		"error":      errMsg,
		"updated_at": time.Now().UTC(),
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrReminderNotFound
	}
	return nil
}

func (s *GormStore) LogMessage(ctx context.Context, entry models.MessageLog) error {
	row := messageLogModel{
		ID:        entry.ID,
		UserID:    entry.UserID,
		Message:   entry.Message,
		Intent:    entry.Intent,
		Success:   entry.Success,
		Response:  entry.Response,
		Data:      datatypes.JSONMap(entry.Data),
		Error:     entry.Error,
		CreatedAt: stamp(entry.CreatedAt),
	}
	return s.db.WithContext(ctx).Create(&row).Error
}

func mapPatient(row patientModel) models.Patient {
	return models.Patient{
		ID:        row.ID,
		PatientID: row.PatientID,
		Name:      row.Name,
		Age:       row.Age,
		Gender:    row.Gender,
		Phone:     row.Phone,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
}

func mapVitals(row vitalsModel) models.Vitals {
	return models.Vitals{
		ID:               row.ID,
		PatientRef:       row.PatientRef,
		BloodPressure:    row.BloodPressure,
		Temperature:      row.Temperature,
		Pulse:            row.Pulse,
		RespiratoryRate:  row.RespiratoryRate,
		OxygenSaturation: row.OxygenSaturation,
		Notes:            row.Notes,
		RecordedAt:       row.RecordedAt,
	}
}

func mapDiagnosis(row diagnosisModel) models.Diagnosis {
	return models.Diagnosis{
		ID:          row.ID,
		PatientRef:  row.PatientRef,
		DoctorName:  row.DoctorName,
		Diagnosis:   row.Diagnosis,
		DiagnosedAt: row.DiagnosedAt,
	}
}

func mapMedication(row medicationModel) models.Medication {
	return models.Medication{
		ID:           row.ID,
		PatientRef:   row.PatientRef,
		Name:         row.Name,
		Dosage:       row.Dosage,
		Frequency:    row.Frequency,
		Route:        row.Route,
		StartDate:    row.StartDate,
		EndDate:      row.EndDate,
		NextDoseTime: row.NextDoseTime,
		Active:       row.IsActive,
		Notes:        row.Notes,
	}
}

func mapAppointment(row appointmentModel) models.Appointment {
	return models.Appointment{
		ID:          row.ID,
		PatientRef:  row.PatientRef,
		Type:        row.Type,
		ScheduledAt: row.ScheduledAt,
		Notes:       row.Notes,
		Completed:   row.IsCompleted,
		CreatedAt:   row.CreatedAt,
	}
}

func mapReminder(row reminderModel) models.Reminder {
	return models.Reminder{
		ID:        row.ID,
		Kind:      row.Kind,
		PatientID: row.PatientID,
		SubjectID: row.SubjectID,
		DueAt:     row.DueAt,
		Text:      row.Text,
		Status:    row.Status,
		Error:     row.Error,
		Payload:   map[string]interface{}(row.Payload),
		CreatedAt: row.CreatedAt,
	}
}
