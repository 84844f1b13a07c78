package models

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID             uuid.UUID
	Email          string
	EmailConfirmed bool
	CreatedAt      time.Time
}

// AccessCodeRequest is a single-use proof of email control. QuickAccessCode is
// the short numeric code the user types in; LoginCode is a high-entropy value
// correlating the request across channels.
type AccessCodeRequest struct {
	ID              uuid.UUID
	Email           string
	QuickAccessCode string
	LoginCode       uuid.UUID
	ExpiresAt       time.Time
	DeviceID        uuid.UUID
}

// RefreshToken binds a renewal grant to one device and the exact bearer token
// it was issued alongside. Only digests of the bearer token and the refresh
// secret are stored; the raw values never touch the database.
type RefreshToken struct {
	ID           uuid.UUID
	UserID       uuid.UUID
	DeviceID     uuid.UUID
	OriginalHash string
	SecretHash   string
}

type Message struct {
	Email       string            `json:"to"`
	Subject     string            `json:"subject"`
	Body        string            `json:"body"`
	MergeFields map[string]string `json:"merge_fields,omitempty"`
}
