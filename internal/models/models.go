// Package models defines the data structures used across the application.
// These map to the PostgreSQL schema.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle phase of a report.
type Status string

const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in_progress"
	StatusNeedsHelp  Status = "needs_help"
	StatusResolved   Status = "resolved"
)

// Valid reports whether s is one of the known status values.
func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusNeedsHelp, StatusResolved:
		return true
	}
	return false
}

// AnimalKind categorizes the sighted animal.
type AnimalKind string

const (
	AnimalDog   AnimalKind = "dog"
	AnimalCat   AnimalKind = "cat"
	AnimalOther AnimalKind = "other"
)

// Valid reports whether k is a known animal category.
func (k AnimalKind) Valid() bool {
	switch k {
	case AnimalDog, AnimalCat, AnimalOther:
		return true
	}
	return false
}

// CloseResult is the outcome a claimant chooses when closing a case.
type CloseResult string

const (
	ResultResolved CloseResult = "resolved"
	ResultReopen   CloseResult = "reopen"
	ResultFake     CloseResult = "fake"
)

// Report is a user-submitted sighting of an animal needing attention.
// ClaimerToken and ReporterToken never leave the server in API responses.
type Report struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	Title       string     `json:"title" db:"title"`
	Description string     `json:"description" db:"description"`
	AnimalKind  AnimalKind `json:"animal_kind" db:"animal_kind"`
	Lat         float64    `json:"lat" db:"lat"`
	Lng         float64    `json:"lng" db:"lng"`
	Status      Status     `json:"status" db:"status"`
	ImageURLs   []string   `json:"image_urls" db:"image_urls"`
	ClosureNote *string    `json:"closure_note,omitempty" db:"closure_note"`
	NeedsHelp   bool       `json:"needs_help" db:"needs_help"`
	HelpNote    *string    `json:"help_note,omitempty" db:"help_note"`

	ClaimerToken          *string    `json:"-" db:"claimer_token"`
	ClaimedAt             *time.Time `json:"-" db:"claimed_at"`
	LastClaimerActivityAt *time.Time `json:"-" db:"last_claimer_activity_at"`
	ReporterToken         string     `json:"-" db:"reporter_token"`

	ClosedAt  *time.Time `json:"closed_at,omitempty" db:"closed_at"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
}

// Claimed reports whether the row currently carries a claim.
func (r *Report) Claimed() bool {
	return r.ClaimerToken != nil && *r.ClaimerToken != ""
}

// NewReport is the request body for filing a new report.
type NewReport struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	AnimalKind  AnimalKind `json:"animal_kind"`
	Lat         float64    `json:"lat"`
	Lng         float64    `json:"lng"`
}

// UpdateTypeInfo is the only update type currently produced.
const UpdateTypeInfo = "info"

// Update is a timestamped note/photo addition to a report. Updates are
// immutable once created and are removed only by the parent's cascade delete.
type Update struct {
	ID        uuid.UUID `json:"id" db:"id"`
	ReportID  uuid.UUID `json:"report_id" db:"report_id"`
	Type      string    `json:"type" db:"type"`
	Text      string    `json:"text" db:"text"`
	ImageURLs []string  `json:"image_urls" db:"image_urls"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Closure describes the row mutation for a non-fake close, computed by the
// lifecycle engine and applied as a single conditional write.
type Closure struct {
	Status       Status
	Result       CloseResult
	Note         string
	NeedsHelp    bool
	HelpNote     string
	ClosedAt     *time.Time
	ClearClaimer bool
}

// Message is a contact-form or happy-story submission.
type Message struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Category  string    `json:"category" db:"category"`
	Name      string    `json:"name" db:"name"`
	Email     string    `json:"email" db:"email"`
	Subject   string    `json:"subject" db:"subject"`
	Body      string    `json:"message" db:"body"`
	ImageURLs []string  `json:"image_urls" db:"image_urls"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// NewMessage is the request body for a contact-form submission. Honeypot is a
// hidden form field; a non-empty value marks the sender as a bot.
type NewMessage struct {
	Category  string   `json:"category"`
	Name      string   `json:"name"`
	Email     string   `json:"email"`
	Subject   string   `json:"subject"`
	Message   string   `json:"message"`
	ImageURLs []string `json:"image_urls"`
	Honeypot  string   `json:"honeypot"`
}

// Notification is the payload for the best-effort notification endpoint.
type Notification struct {
	Category  string    `json:"category"`
	Subject   string    `json:"subject"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Message   string    `json:"message"`
	ImageURLs []string  `json:"image_urls"`
	CreatedAt time.Time `json:"created_at"`
}

// HealthStatus represents the server health check response.
type HealthStatus struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Uptime   string `json:"uptime"`
	Database string `json:"database,omitempty"`
}
