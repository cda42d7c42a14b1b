package dlp

import (
	"os"
	"path/filepath"
	"testing"
)

func TestRedactorMasksDefaults(t *testing.T) {
	r, err := NewRedactor(DefaultRules())
	if err != nil {
		t.Fatalf("failed to create redactor: %v", err)
	}

	got := r.Text("Register Jane, phone 555-123-4567, email jane@example.com, ssn 123-45-6789")
	want := "Register Jane, phone [phone], email ***@***, ssn ***-**-****"
	if got != want {
		t.Fatalf("got %q\nwant %q", got, want)
	}

	if types := r.Types("call +2348012345678"); len(types) != 1 || types[0] != "phone" {
		t.Fatalf("expected phone match, got %v", types)
	}
}

func TestRedactorLeavesClinicalValuesAlone(t *testing.T) {
	r, _ := NewRedactor(DefaultRules())
	msg := "Patient PT1234 BP 120/80, temp 37.5, pulse 72, SpO2 98%"
	if got := r.Text(msg); got != msg {
		t.Fatalf("clinical text should pass through, got %q", got)
	}
}

func TestRedactorMapIsACopy(t *testing.T) {
	r, _ := NewRedactor(DefaultRules())
	data := map[string]interface{}{
		"phone":  "555-123-4567",
		"nested": map[string]interface{}{"email": "a@b.io"},
		"age":    30,
	}

	out := r.Map(data)
	if out["phone"] != "[phone]" || out["nested"].(map[string]interface{})["email"] != "***@***" || out["age"] != 30 {
		t.Fatalf("unexpected redaction %v", out)
	}
	if data["phone"] != "555-123-4567" {
		t.Fatal("input map must not be modified")
	}
}

func TestNilRedactorIsNoop(t *testing.T) {
	var r *Redactor
	if r.Text("555-123-4567") != "555-123-4567" {
		t.Fatal("nil redactor changed text")
	}
}

func TestLoadRules(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	content := "rules:\n  - name: MRN\n    type: mrn\n    pattern: 'MRN\\d+'\n    mask: MRN#\n    enabled: true\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadRules(path)
	if err != nil {
		t.Fatalf("LoadRules: %v", err)
	}
	r, err := NewRedactor(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if got := r.Text("see MRN0042"); got != "see MRN#" {
		t.Fatalf("got %q", got)
	}

	if _, err := LoadRules(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
