package reminders

import (
	"context"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	JobMedication  = "medication_reminders"
	JobAppointment = "appointment_reminders"
)

// Jobs is the reminder schedule. It can be overridden from YAML:
//
//	medication:
//	  interval: 15m
//	  lookahead: 15m
//	appointment:
//	  interval: 1h
//	  window: 24h
type Jobs struct {
	Medication  MedicationJob  `yaml:"medication"`
	Appointment AppointmentJob `yaml:"appointment"`
}

type MedicationJob struct {
	Disabled  bool          `yaml:"disabled"`
	Interval  time.Duration `yaml:"interval"`
	Lookahead time.Duration `yaml:"lookahead"`
}

type AppointmentJob struct {
	Disabled bool          `yaml:"disabled"`
	Interval time.Duration `yaml:"interval"`
	Window   time.Duration `yaml:"window"`
}

func DefaultJobs() Jobs {
	return Jobs{
		Medication:  MedicationJob{Interval: 15 * time.Minute, Lookahead: DefaultLookahead},
		Appointment: AppointmentJob{Interval: time.Hour, Window: DefaultAppointmentWindow},
	}
}

// LoadJobs reads the schedule from path. An empty path yields the defaults;
// missing or non-positive durations fall back to their defaults.
func LoadJobs(path string) (Jobs, error) {
	jobs := DefaultJobs()
	if path == "" {
		return jobs, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return jobs, fmt.Errorf("reading reminder jobs: %w", err)
	}
	if err := yaml.Unmarshal(raw, &jobs); err != nil {
		return DefaultJobs(), fmt.Errorf("parsing reminder jobs: %w", err)
	}

	defaults := DefaultJobs()
	if jobs.Medication.Interval <= 0 {
		jobs.Medication.Interval = defaults.Medication.Interval
	}
	if jobs.Medication.Lookahead <= 0 {
		jobs.Medication.Lookahead = defaults.Medication.Lookahead
	}
	if jobs.Appointment.Interval <= 0 {
		jobs.Appointment.Interval = defaults.Appointment.Interval
	}
	if jobs.Appointment.Window <= 0 {
		jobs.Appointment.Window = defaults.Appointment.Window
	}
	return jobs, nil
}

// ScannerOptions carries the lookahead and window into a Scanner.
func (j Jobs) ScannerOptions() []ScannerOption {
	return []ScannerOption{
		WithLookahead(j.Medication.Lookahead),
		WithWindow(j.Appointment.Window),
	}
}

// Build binds the enabled sweeps of s to their intervals.
func (j Jobs) Build(s *Scanner) []Job {
	var out []Job
	if !j.Medication.Disabled {
		out = append(out, Job{
			Name:     JobMedication,
			Interval: j.Medication.Interval,
			Run: func(ctx context.Context) error {
				_, err := s.SweepMedications(ctx)
				return err
			},
		})
	}
	if !j.Appointment.Disabled {
		out = append(out, Job{
			Name:     JobAppointment,
			Interval: j.Appointment.Interval,
			Run: func(ctx context.Context) error {
				_, err := s.SweepAppointments(ctx)
				return err
			},
		})
	}
	return out
}
