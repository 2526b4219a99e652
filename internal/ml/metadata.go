package ml

import (
	"fmt"
	"time"

	"forest-cover/internal/features"
)

// ModelMetadata contains information about the loaded model
type ModelMetadata struct {
	Version   string    `json:"version"`
	Format    string    `json:"format"`
	Features  []string  `json:"features,omitempty"`
	Classes   []int     `json:"classes,omitempty"`
	TrainedAt time.Time `json:"trained_at,omitempty"`
	Source    string    `json:"source,omitempty"`
	Trees     int       `json:"trees,omitempty"`
}

// ColumnsDeclared reports whether the artifact names its input columns.
func (m ModelMetadata) ColumnsDeclared() bool { return len(m.Features) > 0 }

// VerifyColumns checks the declared input columns against the encoder
// layout. An artifact that declares nothing passes.
func (m ModelMetadata) VerifyColumns() error {
	if !m.ColumnsDeclared() {
		return nil
	}
	if len(m.Features) != features.VectorLen {
		return fmt.Errorf("%w: artifact declares %d columns, encoder produces %d",
			ErrColumnMismatch, len(m.Features), features.VectorLen)
	}
	for i, name := range m.Features {
		if name != features.Columns[i] {
			return fmt.Errorf("%w: column %d is %q, encoder produces %q",
				ErrColumnMismatch, i, name, features.Columns[i])
		}
	}
	return nil
}
