package assistant

import (
	"fmt"
	"strings"

	"github.com/nurse-etr/assistant/pkg/common/models"
	"github.com/nurse-etr/assistant/pkg/intent"
)

const (
	FailureText = "❌ Sorry, I couldn't complete that action. Please check the patient ID and try again."
	ErrorText   = "Sorry, I encountered an error. Please try again."
	EmptyText   = "Please provide a message."

	HelpText = "I'm here to help! You can:\n\n" +
		"• Register a new patient\n" +
		"• Record vitals\n" +
		"• Add diagnoses\n" +
		"• Prescribe medications\n" +
		"• Schedule appointments\n" +
		"• Query patient records\n\n" +
		"Just tell me what you need!"

	// AppointmentLayout is how appointment times are shown to nurses.
	AppointmentLayout = "January 02, 2006 at 03:04 PM"

	maxDiagnosesShown = 3
)

var vitalLabels = []struct{ key, label string }{
	{"blood_pressure", "Blood Pressure"},
	{"temperature", "Temperature"},
	{"pulse", "Pulse"},
	{"respiratory_rate", "Respiratory Rate"},
	{"oxygen_saturation", "Oxygen Saturation"},
}

// Render turns a dispatch result into chat text. It does no I/O. Unknown
// and list_reminders always get the help text.
func Render(kind intent.Kind, success bool, data map[string]interface{}) string {
	if kind == intent.KindUnknown || kind == intent.KindListReminders {
		return HelpText
	}
	if !success {
		return FailureText
	}

	switch kind {
	case intent.KindRegisterPatient:
		return fmt.Sprintf("✅ Patient registered successfully!\n\n**Patient ID:** %s\n**Name:** %s\n\n"+
			"You can now record vitals, diagnoses, and medications using this Patient ID.",
			data["patient_id"], data["name"])

	case intent.KindRecordVitals:
		var b strings.Builder
		fmt.Fprintf(&b, "✅ Vitals recorded for Patient %s:\n", data["patient_id"])
		vitals, _ := data["vitals"].(map[string]interface{})
		if len(vitals) > 0 {
			b.WriteString("\n")
		}
		for _, v := range vitalLabels {
			if value, ok := vitals[v.key]; ok {
				fmt.Fprintf(&b, "• %s: %v\n", v.label, value)
			}
		}
		return strings.TrimRight(b.String(), "\n")

	case intent.KindAddDiagnosis:
		var b strings.Builder
		fmt.Fprintf(&b, "✅ Diagnosis added for Patient %s:\n\n", data["patient_id"])
		if doctor, _ := data["doctor_name"].(string); doctor != "" {
			fmt.Fprintf(&b, "**Doctor:** %s\n", doctor)
		}
		fmt.Fprintf(&b, "**Diagnosis:** %s", data["diagnosis"])
		return b.String()

	case intent.KindPrescribeMedication:
		var b strings.Builder
		fmt.Fprintf(&b, "✅ Medication prescribed for Patient %s:\n\n", data["patient_id"])
		fmt.Fprintf(&b, "**Medication:** %s\n", data["medication_name"])
		if dosage, _ := data["dosage"].(string); dosage != "" {
			fmt.Fprintf(&b, "**Dosage:** %s\n", dosage)
		}
		if freq, _ := data["frequency"].(string); freq != "" {
			fmt.Fprintf(&b, "**Frequency:** %s\n", freq)
		}
		b.WriteString("\n⏰ Reminders have been set automatically.")
		return b.String()

	case intent.KindScheduleAppointment:
		return fmt.Sprintf("✅ Appointment scheduled for Patient %s:\n\n**Type:** %s\n**Date/Time:** %s\n\n"+
			"📅 Reminder will be sent 24 hours before.",
			data["patient_id"], data["appointment_type"], data["appointment_datetime"])

	case intent.KindQueryPatient:
		return renderRecord(data)

	default:
		return HelpText
	}
}

func renderRecord(data map[string]interface{}) string {
	patient, ok := data["patient"].(models.Patient)
	if !ok {
		return FailureText
	}
	vitals, _ := data["vitals"].([]models.Vitals)
	diagnoses, _ := data["diagnoses"].([]models.Diagnosis)
	medications, _ := data["medications"].([]models.Medication)

	var sections []string

	var header strings.Builder
	fmt.Fprintf(&header, "📋 **Patient Record: %s**\n\n", patient.PatientID)
	fmt.Fprintf(&header, "**Name:** %s", patient.Name)
	if patient.Age != nil {
		fmt.Fprintf(&header, "\n**Age:** %d", *patient.Age)
	}
	if patient.Gender != nil {
		fmt.Fprintf(&header, "\n**Gender:** %s", *patient.Gender)
	}
	if patient.Phone != nil {
		fmt.Fprintf(&header, "\n**Phone:** %s", *patient.Phone)
	}
	sections = append(sections, header.String())

	if len(vitals) > 0 {
		if lines := vitalLines(vitals[0]); len(lines) > 0 {
			sections = append(sections, "**Latest Vitals:**\n"+strings.Join(lines, "\n"))
		}
	}

	if len(diagnoses) > 0 {
		lines := make([]string, 0, maxDiagnosesShown)
		for i, d := range diagnoses {
			if i == maxDiagnosesShown {
				break
			}
			if d.DoctorName != "" {
				lines = append(lines, fmt.Sprintf("• %s (%s)", d.Diagnosis, d.DoctorName))
			} else {
				lines = append(lines, "• "+d.Diagnosis)
			}
		}
		sections = append(sections, "**Diagnoses:**\n"+strings.Join(lines, "\n"))
	}

	var active []string
	for _, m := range medications {
		if !m.Active {
			continue
		}
		line := "• " + m.Name
		if m.Dosage != "" {
			line += " " + m.Dosage
		}
		if m.Frequency != "" {
			line += " - " + m.Frequency
		}
		active = append(active, line)
	}
	if len(active) > 0 {
		sections = append(sections, "**Active Medications:**\n"+strings.Join(active, "\n"))
	}

	return strings.Join(sections, "\n\n")
}

func vitalLines(v models.Vitals) []string {
	var lines []string
	if v.BloodPressure != nil && *v.BloodPressure != "" {
		lines = append(lines, "• BP: "+*v.BloodPressure)
	}
	if v.Temperature != nil {
		lines = append(lines, fmt.Sprintf("• Temp: %g°C", *v.Temperature))
	}
	if v.Pulse != nil {
		lines = append(lines, fmt.Sprintf("• Pulse: %d BPM", *v.Pulse))
	}
	if v.RespiratoryRate != nil {
		lines = append(lines, fmt.Sprintf("• Resp. Rate: %d/min", *v.RespiratoryRate))
	}
	if v.OxygenSaturation != nil {
		lines = append(lines, fmt.Sprintf("• SpO2: %g%%", *v.OxygenSaturation))
	}
	return lines
}
