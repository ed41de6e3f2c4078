// Package session persists conversation history for the caregiver
// assistant in PostgreSQL.
package session

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Audience selects which system-prompt variant the assistant uses for
// a session.
type Audience string

const (
	// AudienceCaregiver is the default: warm, simple language for
	// family caregivers.
	AudienceCaregiver Audience = "caregiver"
	// AudienceFirstResponder: brief, action-oriented, safety-first.
	AudienceFirstResponder Audience = "first_responder"
	// AudienceHealthcareProvider: clinical language, evidence-based.
	AudienceHealthcareProvider Audience = "healthcare_provider"
)

// Valid reports whether a is a known audience.
func (a Audience) Valid() bool {
	switch a {
	case AudienceCaregiver, AudienceFirstResponder, AudienceHealthcareProvider:
		return true
	}
	return false
}

// Message role constants.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

const (
	// DefaultHistoryLimit is the default number of messages loaded
	// per session.
	DefaultHistoryLimit = 50

	// MaxHistoryLimit is the absolute maximum to prevent OOM.
	MaxHistoryLimit = 1000

	// MaxTitleLength caps session titles.
	MaxTitleLength = 200
)

// Sentinel errors checked with errors.Is().
var (
	// ErrNotFound indicates the requested session does not exist.
	ErrNotFound = errors.New("session not found")

	// ErrInvalidAudience indicates an unknown audience value.
	ErrInvalidAudience = errors.New("invalid audience")
)

// PatientContext holds optional details about the person being cared
// for, used to personalize answers. Stored as JSONB on the session.
type PatientContext struct {
	Name   string `json:"name,omitempty"`
	Age    int    `json:"age,omitempty"`
	Stage  string `json:"stage,omitempty"`
	Gender string `json:"gender,omitempty"`
}

// Session is one conversation with the assistant.
type Session struct {
	ID           uuid.UUID
	Title        string
	Audience     Audience
	Patient      *PatientContext
	CreatedAt    time.Time
	UpdatedAt    time.Time
	MessageCount int
}

// Message is a single conversation turn half.
type Message struct {
	ID             int64
	SessionID      uuid.UUID
	Role           string
	Content        string
	SequenceNumber int
	CreatedAt      time.Time
}
