package intent

import (
	"testing"
	"time"
)

func TestDecodeRegisterPatient(t *testing.T) {
	cmd := Decode(Raw{Intent: "register_patient", Data: map[string]interface{}{
		"name":   "  Jane Doe ",
		"age":    "30",
		"gender": "female",
	}})

	reg, ok := cmd.(RegisterPatient)
	if !ok {
		t.Fatalf("expected RegisterPatient, got %T", cmd)
	}
	if reg.Name != "Jane Doe" {
		t.Fatalf("expected trimmed name, got %q", reg.Name)
	}
	if reg.Age == nil || *reg.Age != 30 {
		t.Fatalf("expected age 30, got %v", reg.Age)
	}
	if reg.Phone != nil {
		t.Fatalf("expected no phone, got %q", *reg.Phone)
	}
}

func TestDecodeRegisterWithoutNameIsUnknown(t *testing.T) {
	cmd := Decode(Raw{Intent: "register_patient", Data: map[string]interface{}{"age": 40}})
	if cmd.Kind() != KindUnknown {
		t.Fatalf("expected unknown, got %s", cmd.Kind())
	}
}

func TestDecodeVitalsCoercion(t *testing.T) {
	cmd := Decode(Raw{Intent: "record_vitals", Data: map[string]interface{}{
		"patient_id":        "pt001",
		"blood_pressure":    "120/80",
		"temperature":       "37.2C",
		"pulse":             75.0,
		"oxygen_saturation": "98%",
	}})

	v := cmd.(RecordVitals)
	if v.PatientID != "PT001" {
		t.Fatalf("expected upper-cased id, got %q", v.PatientID)
	}
	if v.Temperature == nil || *v.Temperature != 37.2 {
		t.Fatalf("expected temperature 37.2, got %v", v.Temperature)
	}
	if v.Pulse == nil || *v.Pulse != 75 {
		t.Fatalf("expected pulse 75, got %v", v.Pulse)
	}
	if v.OxygenSaturation == nil || *v.OxygenSaturation != 98 {
		t.Fatalf("expected spo2 98, got %v", v.OxygenSaturation)
	}
	if v.RespiratoryRate != nil {
		t.Fatal("expected respiratory rate to be absent")
	}
}

func TestDecodeDefaults(t *testing.T) {
	med := Decode(Raw{Intent: "prescribe_medication", Data: map[string]interface{}{
		"patient_id": "PT001", "medication_name": "amoxicillin", "dosage": "500mg", "frequency": "three times daily",
	}}).(PrescribeMedication)
	if med.Route != DefaultRoute {
		t.Fatalf("expected default route, got %q", med.Route)
	}

	appt := Decode(Raw{Intent: "schedule_appointment", Data: map[string]interface{}{
		"patient_id": "PT001", "time": "tomorrow at 2pm",
	}}).(ScheduleAppointment)
	if appt.Type != DefaultAppointmentType {
		t.Fatalf("expected default appointment type, got %q", appt.Type)
	}
	if appt.Time != "tomorrow at 2pm" {
		t.Fatalf("unexpected time %q", appt.Time)
	}
}

func TestDecodeUnrecognisedIntent(t *testing.T) {
	for _, label := range []string{"", "delete_patient", "REGISTER_PATIENT"} {
		if k := Decode(Raw{Intent: label}).Kind(); k != KindUnknown {
			t.Fatalf("Decode(%q) = %s, want unknown", label, k)
		}
	}
	if k := Decode(Raw{Intent: "list_reminders"}).Kind(); k != KindListReminders {
		t.Fatalf("expected list_reminders, got %s", k)
	}
}

func TestParseAppointmentTime(t *testing.T) {
	now := time.Date(2025, 3, 3, 10, 0, 0, 0, time.UTC)

	got, ok := ParseAppointmentTime("2025-03-10T09:30:00+01:00", now)
	if !ok || !got.Equal(time.Date(2025, 3, 10, 8, 30, 0, 0, time.UTC)) || got.Location() != time.UTC {
		t.Fatalf("unexpected RFC3339 result %v %v", got, ok)
	}

	got, ok = ParseAppointmentTime("2025-03-10 14:15", now)
	if !ok || !got.Equal(time.Date(2025, 3, 10, 14, 15, 0, 0, time.UTC)) {
		t.Fatalf("unexpected layout result %v %v", got, ok)
	}

	got, ok = ParseAppointmentTime("tomorrow at 2pm", now)
	if !ok {
		t.Fatal("expected natural language time to parse")
	}
	if got.Day() != 4 || got.Hour() != 14 {
		t.Fatalf("expected March 4 14:00 UTC, got %v", got)
	}

	if _, ok := ParseAppointmentTime("", now); ok {
		t.Fatal("expected empty text to fail")
	}
	if _, ok := ParseAppointmentTime("whenever suits", now); ok {
		t.Fatal("expected gibberish to fail")
	}
}
