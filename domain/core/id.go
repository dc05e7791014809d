package core

import (
	"github.com/google/uuid"
)

// ID represents a domain identifier
type ID string

// NewID creates a new unique identifier using UUID v7 for time-ordered generation
func NewID() ID {
	id, err := uuid.NewV7()
	if err != nil {
		// Fallback to v4 if v7 fails
		id = uuid.New()
	}
	return ID(id.String())
}

// String returns the string representation
func (id ID) String() string {
	return string(id)
}

// IsEmpty checks if the ID is empty
func (id ID) IsEmpty() bool {
	return id == ""
}

// Domain-specific ID types
type (
	// ModelID identifies one fitted model handle. A fresh ID is minted on
	// every fit; re-fitting never reuses a handle.
	ModelID ID

	// RunID identifies one backtest or search run.
	RunID ID

	// DatasetID identifies a stored panel.
	DatasetID ID
)

// NewModelID creates a new model handle identifier
func NewModelID() ModelID {
	return ModelID(NewID())
}

// NewRunID creates a new run identifier
func NewRunID() RunID {
	return RunID(NewID())
}
