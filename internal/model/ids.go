package model

import "github.com/google/uuid"

// NewID returns a fresh identifier for instances, results and runs.
func NewID() string {
	return uuid.NewString()
}
