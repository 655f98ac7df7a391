// Package id provides identifiers for sync runs.
package id

import (
	"github.com/google/uuid"
)

// New returns a UUIDv7 run identifier, so run ids sort by start time.
func New() string {
	v, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return v.String()
}

// Valid reports whether s parses as a UUID.
func Valid(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
