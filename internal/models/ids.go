package models

import (
	"strings"

	"github.com/google/uuid"

	"github.com/julianstephens/habitsync/internal/constants"
)

// NewID returns a fresh client-generated identifier.
func NewID() string {
	return uuid.New().String()
}

// NewProvisionalID returns an identifier for a record created while offline.
func NewProvisionalID() string {
	return constants.ProvisionalIDPrefix + NewID()
}

// IsProvisional reports whether id was generated while offline.
func IsProvisional(id string) bool {
	return strings.HasPrefix(id, constants.ProvisionalIDPrefix)
}

// CanonicalID returns the id a record has on the remote backend.
func CanonicalID(id string) string {
	return strings.TrimPrefix(id, constants.ProvisionalIDPrefix)
}
