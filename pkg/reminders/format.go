package reminders

import (
	"fmt"
	"strings"

	"github.com/nurse-etr/assistant/pkg/common/models"
)

const (
	doseTimeLayout        = "03:04 PM"
	appointmentTimeLayout = "January 02, 2006 at 03:04 PM"
)

func FormatMedication(due models.DueMedication) string {
	var b strings.Builder
	b.WriteString("🔔 **Medication Reminder**\n\n")
	fmt.Fprintf(&b, "Patient: %s (%s)\n", due.Patient.Name, due.Patient.PatientID)
	fmt.Fprintf(&b, "Medication: %s %s\n", due.Medication.Name, due.Medication.Dosage)
	fmt.Fprintf(&b, "Route: %s\n", due.Medication.Route)
	if due.Medication.NextDoseTime != nil {
		fmt.Fprintf(&b, "Due: %s", due.Medication.NextDoseTime.UTC().Format(doseTimeLayout))
	}
	return strings.TrimRight(b.String(), "\n")
}

func FormatAppointment(up models.UpcomingAppointment) string {
	var b strings.Builder
	b.WriteString("📅 **Appointment Reminder**\n\n")
	fmt.Fprintf(&b, "Patient: %s (%s)\n", up.Patient.Name, up.Patient.PatientID)
	fmt.Fprintf(&b, "Type: %s\n", up.Appointment.Type)
	fmt.Fprintf(&b, "Time: %s", up.Appointment.ScheduledAt.UTC().Format(appointmentTimeLayout))
	if up.Appointment.Notes != nil && *up.Appointment.Notes != "" {
		fmt.Fprintf(&b, "\nNotes: %s", *up.Appointment.Notes)
	}
	return b.String()
}
