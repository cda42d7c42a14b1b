package intent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/nurse-etr/assistant/pkg/common/config"
	"github.com/nurse-etr/assistant/pkg/common/logger"
	"github.com/nurse-etr/assistant/pkg/gateway/httpclient"
)

// Extractor turns a nurse message into an intent label plus loosely typed
// fields. Implementations never fail: errors degrade to UnknownRaw.
type Extractor interface {
	Extract(ctx context.Context, text string) Raw
}

type ExtractorFunc func(ctx context.Context, text string) Raw

func (f ExtractorFunc) Extract(ctx context.Context, text string) Raw { return f(ctx, text) }

// LLMExtractor asks an OpenAI-compatible chat completions endpoint to label
// the message.
type LLMExtractor struct {
	client    *http.Client
	apiKey    string
	baseURL   string
	modelName string
	timeout   time.Duration
	attempts  int
}

func NewLLMExtractor(cfg *config.Config) *LLMExtractor {
	return &LLMExtractor{
		client:    httpclient.NewBearer(cfg.LLMTimeout, cfg.LLMAPIKey),
		apiKey:    cfg.LLMAPIKey,
		baseURL:   strings.TrimRight(cfg.LLMBaseURL, "/"),
		modelName: cfg.LLMModelName,
		timeout:   cfg.LLMTimeout,
		attempts:  cfg.LLMRetries,
	}
}

var errNoChoices = errors.New("no response from LLM")

func (e *LLMExtractor) Extract(ctx context.Context, text string) Raw {
	if e.apiKey == "" {
		// Mock response for development
		return UnknownRaw()
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	var content string
	err := httpclient.RetryIf(ctx, e.attempts, 250*time.Millisecond, httpclient.IsRetriable, func() error {
		var err error
		content, err = e.callLLM(ctx, buildPrompt(text))
		return err
	})
	if err != nil {
		logger.Log.WithError(err).Warn("Intent extraction failed")
		return UnknownRaw()
	}

	raw, err := ParseCompletion(content)
	if err != nil {
		logger.Log.WithError(err).WithField("content", truncate(content, 200)).Warn("Unparseable intent payload")
		return UnknownRaw()
	}
	return raw
}

func (e *LLMExtractor) callLLM(ctx context.Context, prompt string) (string, error) {
	payload := map[string]interface{}{
		"model": e.modelName,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
		"temperature": 0.1,
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/chat/completions", bytes.NewReader(payloadBytes))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &httpclient.StatusError{Code: resp.StatusCode, Body: truncate(string(body), 200)}
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("decoding completion: %w", err)
	}
	if len(result.Choices) == 0 {
		return "", errNoChoices
	}
	return result.Choices[0].Message.Content, nil
}

var fencePattern = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

// ParseCompletion reads the model's JSON answer, unwrapping a ```json fence
// when present. Unrecognised intents come back as unknown.
func ParseCompletion(content string) (Raw, error) {
	content = strings.TrimSpace(content)
	if m := fencePattern.FindStringSubmatch(content); m != nil {
		content = m[1]
	}

	var raw Raw
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return UnknownRaw(), err
	}
	raw.Intent = string(ParseKind(strings.TrimSpace(raw.Intent)))
	if raw.Data == nil {
		raw.Data = map[string]interface{}{}
	}
	return raw, nil
}

func buildPrompt(message string) string {
	return fmt.Sprintf(`You are a healthcare assistant AI. Analyze this nurse's message and extract structured information.

Message: %q

Return a JSON object with:
- intent: one of ["register_patient", "record_vitals", "add_diagnosis", "prescribe_medication", "schedule_appointment", "query_patient", "list_reminders", "unknown"]
- data: extracted relevant information based on intent

Examples:
1. "New patient John Doe, 45 years old, male" -> {"intent": "register_patient", "data": {"name": "John Doe", "age": 45, "gender": "male"}}
2. "Record vitals for PT001: BP 120/80, temp 37.2, pulse 75" -> {"intent": "record_vitals", "data": {"patient_id": "PT001", "blood_pressure": "120/80", "temperature": 37.2, "pulse": 75}}
3. "Dr Smith diagnosed PT001 with hypertension" -> {"intent": "add_diagnosis", "data": {"patient_id": "PT001", "doctor_name": "Dr Smith", "diagnosis": "hypertension"}}
4. "Prescribe amoxicillin 500mg three times daily for PT001" -> {"intent": "prescribe_medication", "data": {"patient_id": "PT001", "medication_name": "amoxicillin", "dosage": "500mg", "frequency": "three times daily"}}
5. "Schedule follow-up for PT001 tomorrow at 2pm" -> {"intent": "schedule_appointment", "data": {"patient_id": "PT001", "appointment_type": "follow-up", "time": "tomorrow at 2pm"}}
6. "Show me PT001's records" -> {"intent": "query_patient", "data": {"patient_id": "PT001"}}

Return ONLY valid JSON, no explanation.`, message)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
