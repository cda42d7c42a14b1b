package reminders

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nurse-etr/assistant/pkg/common/config"
	"github.com/nurse-etr/assistant/pkg/common/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTelexChannelPostsMessage(t *testing.T) {
	var got map[string]string
	var auth, path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		path = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	ch := NewTelexChannel(&config.Config{
		TelexAPIURL:    srv.URL + "/",
		TelexBotToken:  "bot-token",
		TelexChannelID: "chan-1",
		TelexTimeout:   time.Second,
	})
	require.NoError(t, ch.Deliver(context.Background(), models.Reminder{Text: "take meds"}))

	assert.Equal(t, "/messages", path)
	assert.Equal(t, "Bearer bot-token", auth)
	assert.Equal(t, map[string]string{"channel_id": "chan-1", "text": "take meds"}, got)
}

func TestTelexChannelReportsStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	ch := NewTelexChannel(&config.Config{TelexAPIURL: srv.URL, TelexTimeout: time.Second})
	err := ch.Deliver(context.Background(), models.Reminder{Text: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

type publishedEvent struct {
	eventType, key string
	data           map[string]interface{}
}

type fakePublisher struct {
	events []publishedEvent
}

func (p *fakePublisher) PublishEvent(_ context.Context, eventType, _, key string, data map[string]interface{}) error {
	p.events = append(p.events, publishedEvent{eventType, key, data})
	return nil
}

func TestKafkaChannelPublishesByPatient(t *testing.T) {
	pub := &fakePublisher{}
	ch := NewKafkaChannel(pub)

	require.NoError(t, ch.Deliver(context.Background(), models.Reminder{
		ID: "r1", Kind: models.ReminderKindAppointment, PatientID: "PT001", Text: "soon",
		Payload: map[string]interface{}{"appointment_type": "checkup", "text": "ignored"},
	}))

	require.Len(t, pub.events, 1)
	ev := pub.events[0]
	assert.Equal(t, EventAppointmentReminder, ev.eventType)
	assert.Equal(t, "PT001", ev.key)
	assert.Equal(t, "soon", ev.data["text"])
	assert.Equal(t, "checkup", ev.data["appointment_type"])
}

func TestFanOutJoinsErrors(t *testing.T) {
	var delivered int
	ok := ChannelFunc(func(context.Context, models.Reminder) error { delivered++; return nil })
	bad := ChannelFunc(func(context.Context, models.Reminder) error { return errors.New("down") })

	err := FanOut{bad, ok, LogChannel{}}.Deliver(context.Background(), models.Reminder{Text: "x"})
	require.Error(t, err)
	assert.Equal(t, 1, delivered, "later channels still receive the reminder")
}
