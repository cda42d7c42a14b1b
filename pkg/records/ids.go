package records

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"github.com/nurse-etr/assistant/pkg/common/models"
)

const DefaultIDAttempts = 1000

var ErrIDSpaceExhausted = errors.New("could not allocate a free patient id")

// IDGenerator proposes a candidate external patient id.
type IDGenerator func() string

func RandomPatientID() string {
	return fmt.Sprintf("PT%d", 1000+rand.Intn(9000))
}

// RegisterPatient allocates a fresh external id and creates the patient. A
// candidate is discarded when it already exists or when a concurrent insert
// wins the unique index.
func RegisterPatient(ctx context.Context, store Store, gen IDGenerator, in NewPatient, maxAttempts int) (models.Patient, error) {
	if gen == nil {
		gen = RandomPatientID
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultIDAttempts
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		candidate := gen()
		exists, err := store.PatientIDExists(ctx, candidate)
		if err != nil {
			return models.Patient{}, fmt.Errorf("checking patient id %s: %w", candidate, err)
		}
		if exists {
			continue
		}

		in.PatientID = candidate
		patient, err := store.CreatePatient(ctx, in)
		if errors.Is(err, ErrDuplicatePatientID) {
			continue
		}
		if err != nil {
			return models.Patient{}, err
		}
		return patient, nil
	}
	return models.Patient{}, ErrIDSpaceExhausted
}
