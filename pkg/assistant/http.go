package assistant

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/nurse-etr/assistant/pkg/common/logger"
	"github.com/nurse-etr/assistant/pkg/common/models"
)

const (
	serviceName   = "Nurse ETR Assistant"
	defaultUserID = "telex_user"
)

// MessageHandler is the part of Dispatcher the HTTP layer needs.
type MessageHandler interface {
	HandleMessage(ctx context.Context, userID, text string) Outcome
}

type Handler struct {
	messages MessageHandler
}

func NewHandler(messages MessageHandler) *Handler {
	return &Handler{messages: messages}
}

func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/", h.handleRoot).Methods(http.MethodGet)
	r.HandleFunc("/", h.handleWebhook).Methods(http.MethodPost)
	r.HandleFunc("/agent/message", h.handleMessage).Methods(http.MethodPost)
	r.HandleFunc("/agent/health", h.handleHealth).Methods(http.MethodGet)
}

func (h *Handler) handleMessage(w http.ResponseWriter, r *http.Request) {
	var req models.MessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, h.respond(r.Context(), req.UserID, req.Message))
}

// handleWebhook accepts the loosely shaped payloads chat platforms post to
// the service root.
func (h *Handler) handleWebhook(w http.ResponseWriter, r *http.Request) {
	var body map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		logger.Log.WithError(err).Warn("Invalid webhook payload")
		resp := models.NewMessageResponse("Sorry, I encountered an error processing your request.")
		resp.Error = err.Error()
		writeJSON(w, http.StatusBadRequest, resp)
		return
	}

	text := firstString(body, "message", "text", "content")
	if text == "" {
		if nested, ok := body["data"].(map[string]interface{}); ok {
			text = firstString(nested, "message", "text")
		}
	}
	userID := firstString(body, "user_id", "userId", "sender_id", "from")
	if userID == "" {
		userID = defaultUserID
	}

	writeJSON(w, http.StatusOK, h.respond(r.Context(), userID, text))
}

func (h *Handler) respond(ctx context.Context, userID, text string) models.MessageResponse {
	text = strings.TrimSpace(text)
	if text == "" {
		resp := models.NewMessageResponse(EmptyText)
		resp.UserID = userID
		return resp
	}

	logger.Log.WithField("user_id", userID).Info("Received message")
	out := h.messages.HandleMessage(ctx, userID, text)

	resp := models.NewMessageResponse(out.Text)
	resp.Intent = string(out.Intent)
	resp.Success = out.Success
	resp.Data = out.Data
	resp.UserID = userID
	if out.Err != nil {
		resp.Error = out.Err.Error()
	}
	return resp
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"service":   serviceName,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
	})
}

func (h *Handler) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Welcome to " + serviceName + " API",
		"status":  "operational",
		"endpoints": map[string]string{
			"message": "/agent/message",
			"health":  "/agent/health",
			"metrics": "/metrics",
		},
	})
}

func firstString(m map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
