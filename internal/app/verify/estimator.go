package verify

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/tapstand/kiosk/internal/domain"
)

// fakeEstimator is a deterministic stand-in for the real age-estimation
// model, so the flow can be exercised without camera hardware. Simple rule:
// an ID form with a parseable birth date yields the real age; a webcam
// payload maps its bytes onto a stable pseudo-age.
type fakeEstimator struct{}

func NewFakeEstimator() Estimator { return &fakeEstimator{} }

type idFormFields struct {
	FullName  string `json:"full_name"`
	BirthDate string `json:"birth_date"`
}

func (e *fakeEstimator) Estimate(ctx context.Context, method domain.VerificationMethod, payload []byte) (int, error) {
	switch method {
	case domain.VerifyByID:
		var form idFormFields
		if err := json.Unmarshal(payload, &form); err != nil {
			return 0, fmt.Errorf("invalid id form: %w", err)
		}
		birth, err := time.Parse("2006-01-02", form.BirthDate)
		if err != nil {
			return 0, fmt.Errorf("invalid birth date: %w", err)
		}
		age := int(time.Since(birth).Hours() / 24 / 365.25)
		if age < 0 || age > 130 {
			return 0, fmt.Errorf("implausible birth date %q", form.BirthDate)
		}
		return age, nil

	case domain.VerifyByWebcam:
		h := fnv.New32a()
		h.Write(payload)
		return 16 + int(h.Sum32()%50), nil

	default:
		return 0, fmt.Errorf("unknown verification method %q", method)
	}
}
