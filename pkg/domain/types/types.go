package types

import (
	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
)

// RunID represents an analysis run identifier (UUID v7)
type RunID string

// String returns the string representation
func (id RunID) String() string {
	return string(id)
}

// NewRunID creates a new time-ordered RunID
func NewRunID() RunID {
	id, err := uuid.NewV7()
	if err != nil {
		return RunID(uuid.New().String())
	}
	return RunID(id.String())
}

// Validate checks that the RunID is a UUID
func (id RunID) Validate() error {
	if id == "" {
		return goerr.New("run ID is empty")
	}
	if _, err := uuid.Parse(string(id)); err != nil {
		return goerr.Wrap(err, "run ID is not a UUID", goerr.V("id", id))
	}
	return nil
}

// Sex represents the registry sex code after normalization
type Sex byte

const (
	SexMale    Sex = 'M'
	SexFemale  Sex = 'F'
	SexOther   Sex = 'O'
	SexPooled  Sex = 'A' // all sexes pooled into one stratum
	sexUnknown Sex = 0
)

// String returns the single-letter code
func (s Sex) String() string {
	if s == sexUnknown {
		return ""
	}
	return string(rune(s))
}

// IsValid checks if the sex code is one of the known codes
func (s Sex) IsValid() bool {
	switch s {
	case SexMale, SexFemale, SexOther, SexPooled:
		return true
	default:
		return false
	}
}

// ParseSex normalizes registry sex codes. The Czech registry uses 1 for male
// and 2 for female; anything unrecognized maps to SexOther.
func ParseSex(v string) Sex {
	switch v {
	case "1", "M", "m":
		return SexMale
	case "2", "F", "f", "Z", "z":
		return SexFemale
	default:
		return SexOther
	}
}
