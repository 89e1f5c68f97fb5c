package tracker

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidDetection is wrapped by every error returned from Validate.
var ErrInvalidDetection = errors.New("invalid detection")

// validate is shared; validator caches struct metadata and is safe for concurrent use.
var validate = validator.New()

// ValidationError describes why a detection was rejected.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%v: %s %s", ErrInvalidDetection, e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidDetection
}

// Validate checks a detection against the detection source contract:
// a non-empty label, a score in [0, 1], finite coordinates and x1 < x2, y1 < y2.
// Update never calls it.
func Validate(d Detection) error {
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"bbox.x1", d.BBox.X1},
		{"bbox.y1", d.BBox.Y1},
		{"bbox.x2", d.BBox.X2},
		{"bbox.y2", d.BBox.Y2},
		{"score", d.Score},
	} {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return &ValidationError{Field: f.name, Reason: "must be a finite number"}
		}
	}

	err := validate.Struct(d)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("%w: %v", ErrInvalidDetection, err)
	}

	fe := verrs[0]
	field := strings.ToLower(strings.TrimPrefix(fe.Namespace(), "Detection."))
	switch fe.Tag() {
	case "required":
		return &ValidationError{Field: field, Reason: "must not be empty"}
	case "gte", "lte":
		return &ValidationError{Field: field, Reason: "must be within [0, 1]"}
	case "gtfield":
		return &ValidationError{Field: field, Reason: "must be greater than " + strings.ToLower(fe.Param())}
	default:
		return &ValidationError{Field: field, Reason: "failed " + fe.Tag()}
	}
}
