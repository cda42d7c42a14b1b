package intent

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

const (
	DefaultRoute           = "oral"
	DefaultAppointmentType = "checkup"
)

// Decode validates the extractor output into a typed Command. Missing
// fields decode to zero values; the dispatcher decides what that means.
func Decode(raw Raw) Command {
	d := fields(raw.Data)

	switch ParseKind(raw.Intent) {
	case KindRegisterPatient:
		name := d.str("name")
		if name == "" {
			return Unknown{}
		}
		return RegisterPatient{
			Name:   name,
			Age:    d.intPtr("age"),
			Gender: d.strPtr("gender"),
			Phone:  d.strPtr("phone"),
		}
	case KindRecordVitals:
		return RecordVitals{
			PatientID:        d.patientID(),
			BloodPressure:    d.strPtr("blood_pressure"),
			Temperature:      d.floatPtr("temperature"),
			Pulse:            d.intPtr("pulse"),
			RespiratoryRate:  d.intPtr("respiratory_rate"),
			OxygenSaturation: d.floatPtr("oxygen_saturation"),
			Notes:            d.strPtr("notes"),
		}
	case KindAddDiagnosis:
		return AddDiagnosis{
			PatientID:  d.patientID(),
			DoctorName: d.str("doctor_name"),
			Diagnosis:  d.str("diagnosis"),
		}
	case KindPrescribeMedication:
		return PrescribeMedication{
			PatientID: d.patientID(),
			Name:      d.str("medication_name"),
			Dosage:    d.str("dosage"),
			Frequency: d.str("frequency"),
			Route:     d.strOr("route", DefaultRoute),
			Notes:     d.strPtr("notes"),
		}
	case KindScheduleAppointment:
		return ScheduleAppointment{
			PatientID: d.patientID(),
			Type:      d.strOr("appointment_type", DefaultAppointmentType),
			Time:      d.str("time"),
			Notes:     d.strPtr("notes"),
		}
	case KindQueryPatient:
		return QueryPatient{PatientID: d.patientID()}
	case KindListReminders:
		return ListReminders{}
	default:
		return Unknown{}
	}
}

type fields map[string]interface{}

// patientID normalises "pt001" to "PT001".
func (f fields) patientID() string {
	return strings.ToUpper(f.str("patient_id"))
}

func (f fields) str(key string) string {
	switch v := f[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case json.Number:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

func (f fields) strOr(key, fallback string) string {
	if s := f.str(key); s != "" {
		return s
	}
	return fallback
}

func (f fields) strPtr(key string) *string {
	s := f.str(key)
	if s == "" {
		return nil
	}
	return &s
}

func (f fields) floatPtr(key string) *float64 {
	var n float64
	switch v := f[key].(type) {
	case float64:
		n = v
	case int:
		n = float64(v)
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return nil
		}
		n = parsed
	case string:
		parsed, err := strconv.ParseFloat(leadingNumber(v), 64)
		if err != nil {
			return nil
		}
		n = parsed
	default:
		return nil
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return nil
	}
	return &n
}

func (f fields) intPtr(key string) *int {
	n := f.floatPtr(key)
	if n == nil {
		return nil
	}
	i := int(math.Round(*n))
	return &i
}

// leadingNumber keeps the numeric prefix of values like "37.2C" or "98%".
func leadingNumber(s string) string {
	s = strings.TrimSpace(s)
	end := 0
	for i, r := range s {
		if (r >= '0' && r <= '9') || r == '.' || (i == 0 && (r == '-' || r == '+')) {
			end = i + 1
			continue
		}
		break
	}
	return s[:end]
}
