package records

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/nurse-etr/assistant/pkg/common/models"
)

func seedPatient(t *testing.T, store *MemoryStore, id, name string) models.Patient {
	t.Helper()
	p, err := store.CreatePatient(context.Background(), NewPatient{PatientID: id, Name: name})
	if err != nil {
		t.Fatalf("create patient: %v", err)
	}
	return p
}

func TestRegisterPatientSkipsTakenIDs(t *testing.T) {
	store := NewMemoryStore()
	seedPatient(t, store, "PT1001", "Existing")

	candidates := []string{"PT1001", "PT1001", "PT2002"}
	calls := 0
	gen := func() string {
		c := candidates[calls]
		calls++
		return c
	}

	p, err := RegisterPatient(context.Background(), store, gen, NewPatient{Name: "Jane Doe"}, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.PatientID != "PT2002" {
		t.Fatalf("expected PT2002, got %s", p.PatientID)
	}
	if calls != 3 {
		t.Fatalf("expected 3 generator calls, got %d", calls)
	}
}

func TestRegisterPatientGivesUp(t *testing.T) {
	store := NewMemoryStore()
	seedPatient(t, store, "PT1001", "Existing")

	_, err := RegisterPatient(context.Background(), store, func() string { return "PT1001" }, NewPatient{Name: "X"}, 5)
	if !errors.Is(err, ErrIDSpaceExhausted) {
		t.Fatalf("expected ErrIDSpaceExhausted, got %v", err)
	}
}

func TestRandomPatientIDFormat(t *testing.T) {
	for i := 0; i < 200; i++ {
		id := RandomPatientID()
		if !strings.HasPrefix(id, "PT") || len(id) != 6 {
			t.Fatalf("unexpected id %q", id)
		}
		if id < "PT1000" || id > "PT9999" {
			t.Fatalf("id out of range: %q", id)
		}
	}
}
