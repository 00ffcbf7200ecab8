package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ErrConstraintViolation is returned when a write references a record that
// does not exist (for example an interaction pointing at a missing contact).
var ErrConstraintViolation = errors.New("constraint violation")

// Event is a calendar-style record. A zero ID means the event has not been
// persisted yet.
type Event struct {
	ID          int64
	Title       string
	Description string
	Location    string
	StartTime   time.Time
	EndTime     *time.Time
	CreatedAt   time.Time
	Archived    bool
}

type Contact struct {
	ID        int64
	FirstName string
	LastName  string
	Phone     string
	Email     string
	Title     string
	CompanyID *int64
	Tags      string
}

// FullName joins first and last name with a single space.
func (c Contact) FullName() string {
	switch {
	case c.FirstName == "":
		return c.LastName
	case c.LastName == "":
		return c.FirstName
	}
	return c.FirstName + " " + c.LastName
}

type Company struct {
	ID    int64
	Name  string
	City  string
	State string
	Notes string
}

// Interaction is a logged prospecting touchpoint. ContactID owns the record:
// deleting the contact deletes the interaction. CompanyID is cleared when the
// company is deleted.
type Interaction struct {
	ID             int64
	ContactID      int64
	CompanyID      *int64
	WhatType       string
	WhatNotes      string
	WhenAt         time.Time
	WhereLat       *float64
	WhereLng       *float64
	WhereText      string
	WhySummary     string
	NextFollowUpAt *time.Time
	FollowUpNote   string
}

// Due reports whether the follow-up time is set and not after now.
func (i Interaction) Due(now time.Time) bool {
	return i.NextFollowUpAt != nil && !i.NextFollowUpAt.After(now)
}

// InteractionView is an Interaction joined with its contact and company names.
// Names are empty when the joined row is missing.
type InteractionView struct {
	Interaction
	FirstName   string
	LastName    string
	CompanyName string
}

// ContactName returns the joined contact's full name.
func (v InteractionView) ContactName() string {
	return Contact{FirstName: v.FirstName, LastName: v.LastName}.FullName()
}

type Job struct {
	ID          string
	Type        string
	RefKey      string
	PayloadJSON string
	Status      string // "pending", "running", "completed", "failed"
	Attempts    int
	MaxAttempts int
	RunAfter    time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastError   string
}

// EventOrder selects the sort order of AllEvents.
type EventOrder int

const (
	StartAscending EventOrder = iota
	StartDescending
)
