package models

import (
	"time"
)

// Clinical records. All timestamps are UTC.

type Patient struct {
	ID        uint      `json:"-"`
	PatientID string    `json:"patient_id"`
	Name      string    `json:"name"`
	Age       *int      `json:"age,omitempty"`
	Gender    *string   `json:"gender,omitempty"`
	Phone     *string   `json:"phone,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Vitals struct {
	ID               uint      `json:"-"`
	PatientRef       uint      `json:"-"`
	BloodPressure    *string   `json:"blood_pressure,omitempty"`
	Temperature      *float64  `json:"temperature,omitempty"`
	Pulse            *int      `json:"pulse,omitempty"`
	RespiratoryRate  *int      `json:"respiratory_rate,omitempty"`
	OxygenSaturation *float64  `json:"oxygen_saturation,omitempty"`
	Notes            *string   `json:"notes,omitempty"`
	RecordedAt       time.Time `json:"recorded_at"`
}

type Diagnosis struct {
	ID          uint      `json:"-"`
	PatientRef  uint      `json:"-"`
	DoctorName  string    `json:"doctor_name"`
	Diagnosis   string    `json:"diagnosis"`
	DiagnosedAt time.Time `json:"diagnosed_at"`
}

type Medication struct {
	ID           uint       `json:"-"`
	PatientRef   uint       `json:"-"`
	Name         string     `json:"medication_name"`
	Dosage       string     `json:"dosage"`
	Frequency    string     `json:"frequency"`
	Route        string     `json:"route"`
	StartDate    time.Time  `json:"start_date"`
	EndDate      *time.Time `json:"end_date,omitempty"`
	NextDoseTime *time.Time `json:"next_dose_time,omitempty"`
	Active       bool       `json:"is_active"`
	Notes        *string    `json:"notes,omitempty"`
}

type Appointment struct {
	ID          uint      `json:"-"`
	PatientRef  uint      `json:"-"`
	Type        string    `json:"appointment_type"`
	ScheduledAt time.Time `json:"appointment_datetime"`
	Notes       *string   `json:"notes,omitempty"`
	Completed   bool      `json:"is_completed"`
	CreatedAt   time.Time `json:"created_at"`
}

// PatientRecord is the full chart: vitals and diagnoses newest first,
// appointments in chronological order.
type PatientRecord struct {
	Patient      Patient       `json:"patient"`
	Vitals       []Vitals      `json:"vitals"`
	Diagnoses    []Diagnosis   `json:"diagnoses"`
	Medications  []Medication  `json:"medications"`
	Appointments []Appointment `json:"appointments"`
}

type DueMedication struct {
	Medication Medication
	Patient    Patient
}

type UpcomingAppointment struct {
	Appointment Appointment
	Patient     Patient
}

// Reminder outbox

const (
	ReminderPending = "pending"
	ReminderSent    = "sent"
	ReminderFailed  = "failed"
)

const (
	ReminderKindMedication  = "medication"
	ReminderKindAppointment = "appointment"
)

type Reminder struct {
	ID        string                 `json:"id"`
	Kind      string                 `json:"kind"`
	PatientID string                 `json:"patient_id"`
	SubjectID uint                   `json:"subject_id"`
	DueAt     time.Time              `json:"due_at"`
	Text      string                 `json:"text"`
	Status    string                 `json:"status"`
	Error     string                 `json:"error,omitempty"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

// Conversation audit

type MessageLog struct {
	ID        string                 `json:"id"`
	UserID    string                 `json:"user_id"`
	Message   string                 `json:"message"`
	Intent    string                 `json:"intent"`
	Success   bool                   `json:"success"`
	Response  string                 `json:"response"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Error     string                 `json:"error,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

// Event Bus models
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"` // medication_reminder, appointment_reminder
	Source    string                 `json:"source"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]string      `json:"metadata,omitempty"`
}

// Chat surface

type MessageRequest struct {
	Message string `json:"message"`
	UserID  string `json:"user_id"`
}

// MessageResponse carries the rendered text under several aliases so
// different chat clients find it.
type MessageResponse struct {
	Response  string                 `json:"response"`
	Text      string                 `json:"text"`
	Message   string                 `json:"message"`
	Content   string                 `json:"content"`
	Intent    string                 `json:"intent,omitempty"`
	Success   bool                   `json:"success"`
	Data      map[string]interface{} `json:"data,omitempty"`
	UserID    string                 `json:"user_id,omitempty"`
	Error     string                 `json:"error,omitempty"`
	Timestamp string                 `json:"timestamp"`
}

func NewMessageResponse(text string) MessageResponse {
	return MessageResponse{
		Response:  text,
		Text:      text,
		Message:   text,
		Content:   text,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	}
}
