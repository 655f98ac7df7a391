// Package entity holds contracts shared by catalog source rows.
package entity

import (
	"context"
)

// Validatable is implemented by source rows that support self-validation.
// Validation checks internal invariants (without remote access).
type Validatable interface {
	// Validate checks row invariants.
	// Returns nil if valid, AppError with details otherwise.
	Validate(ctx context.Context) error
}

// Keyed is implemented by source rows that expose their natural key parts.
type Keyed interface {
	KeyParts() []string
}
