package main

import (
	"bytes"
	"errors"
	"testing"

	"github.com/nurse-etr/assistant/pkg/reminders"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveJob(t *testing.T) {
	name, err := resolveJob("Medications")
	require.NoError(t, err)
	assert.Equal(t, reminders.JobMedication, name)

	name, err = resolveJob(reminders.JobAppointment)
	require.NoError(t, err)
	assert.Equal(t, reminders.JobAppointment, name)

	_, err = resolveJob("labs")
	assert.True(t, errors.Is(err, reminders.ErrUnknownJob))
}

func TestJobsCommandPrintsDefaults(t *testing.T) {
	t.Setenv("REMINDER_JOBS_FILE", "")
	var out bytes.Buffer
	cmd := jobsCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "interval: 15m0s")
	assert.Contains(t, out.String(), "window: 24h0m0s")
}
