package storage

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

const tableInteractions = "interactions"

var interactions = table[Interaction]{
	name: tableInteractions,
	columns: []string{
		"contact_id", "company_id", "what_type", "what_notes", "when_at",
		"where_lat", "where_lng", "where_text", "why_summary",
		"next_follow_up_at", "follow_up_note",
	},
	values: func(i Interaction) []any {
		return []any{
			i.ContactID, nullInt64(i.CompanyID), i.WhatType, i.WhatNotes, i.WhenAt.UnixMilli(),
			nullFloat(i.WhereLat), nullFloat(i.WhereLng), nullString(i.WhereText), i.WhySummary,
			nullMillis(i.NextFollowUpAt), nullString(i.FollowUpNote),
		}
	},
	scan: scanInteraction,
}

func scanInteraction(r rowScanner) (Interaction, error) {
	var i Interaction
	if err := scanInteractionInto(r, &i); err != nil {
		return Interaction{}, err
	}
	return i, nil
}

func scanInteractionInto(r rowScanner, i *Interaction, extra ...any) error {
	var whenAt int64
	var companyID, nextFollowUp sql.NullInt64
	var lat, lng sql.NullFloat64
	var whereText, followUpNote sql.NullString

	dest := []any{
		&i.ID, &i.ContactID, &companyID, &i.WhatType, &i.WhatNotes, &whenAt,
		&lat, &lng, &whereText, &i.WhySummary, &nextFollowUp, &followUpNote,
	}
	if err := r.Scan(append(dest, extra...)...); err != nil {
		return err
	}
	i.CompanyID = int64Ptr(companyID)
	i.WhenAt = fromMillis(whenAt)
	i.WhereLat = floatPtr(lat)
	i.WhereLng = floatPtr(lng)
	i.WhereText = whereText.String
	i.NextFollowUpAt = timePtr(nextFollowUp)
	i.FollowUpNote = followUpNote.String
	return nil
}

func scanInteractionView(r rowScanner) (InteractionView, error) {
	var v InteractionView
	var first, last, company sql.NullString
	if err := scanInteractionInto(r, &v.Interaction, &first, &last, &company); err != nil {
		return InteractionView{}, err
	}
	v.FirstName = first.String
	v.LastName = last.String
	v.CompanyName = company.String
	return v, nil
}

const interactionViewQuery = `SELECT %s, c.first_name, c.last_name, co.name
	FROM interactions i
	LEFT JOIN contacts c ON c.id = i.contact_id
	LEFT JOIN companies co ON co.id = i.company_id`

func checkInteractionRefs(q querier, i Interaction) error {
	contactID := i.ContactID
	if err := requireRef(q, contacts, &contactID); err != nil {
		return err
	}
	return requireRef(q, companies, i.CompanyID)
}

// InsertInteraction persists i and returns its new id. Fails with
// ErrConstraintViolation if the contact or company does not exist.
func (s *Store) InsertInteraction(i Interaction) (int64, error) {
	var id int64
	err := s.mutate(func(tx *sql.Tx) ([]string, error) {
		if err := checkInteractionRefs(tx, i); err != nil {
			return nil, err
		}
		var err error
		id, err = interactions.insert(tx, i)
		return []string{tableInteractions}, err
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// UpdateInteraction replaces the stored interaction matching i.ID.
func (s *Store) UpdateInteraction(i Interaction) error {
	return s.mutate(func(tx *sql.Tx) ([]string, error) {
		if err := checkInteractionRefs(tx, i); err != nil {
			return nil, err
		}
		return []string{tableInteractions}, interactions.update(tx, i.ID, i)
	})
}

// DeleteInteraction removes the interaction. Deleting a missing id is a no-op.
func (s *Store) DeleteInteraction(id int64) error {
	return s.mutate(func(tx *sql.Tx) ([]string, error) {
		found, err := interactions.delete(tx, id)
		if err != nil || !found {
			return nil, err
		}
		return []string{tableInteractions}, nil
	})
}

func (s *Store) GetInteraction(id int64) (Interaction, bool, error) {
	var (
		i     Interaction
		found bool
	)
	err := s.read(func() error {
		var err error
		i, found, err = interactions.get(s.db, id)
		return err
	})
	return i, found, err
}

func (s *Store) allInteractions() ([]Interaction, error) {
	return interactions.list(s.db, "", "when_at DESC, id DESC")
}

func (s *Store) interactionsForContact(contactID int64) ([]Interaction, error) {
	return interactions.list(s.db, "contact_id = ?", "when_at DESC, id DESC", contactID)
}

func (s *Store) dueInteractions(by time.Time) ([]Interaction, error) {
	return interactions.list(s.db,
		"next_follow_up_at IS NOT NULL AND next_follow_up_at <= ?",
		"next_follow_up_at ASC, id ASC",
		by.UnixMilli(),
	)
}

func (s *Store) interactionViews(where string, args ...any) ([]InteractionView, error) {
	query := fmt.Sprintf(interactionViewQuery, interactions.selectList("i"))
	if where != "" {
		query += " WHERE " + where
	}
	query += " ORDER BY i.when_at DESC, i.id DESC"
	return collect(s.db, scanInteractionView, query, args...)
}

// searchInteractions matches needle case-insensitively against the contact's
// full name, the company name, the notes and the rationale. Missing joined
// rows contribute empty text.
func (s *Store) searchInteractions(needle string) ([]Interaction, error) {
	views, err := s.interactionViews("")
	if err != nil {
		return nil, err
	}
	needle = strings.ToLower(needle)
	result := []Interaction{}
	for _, v := range views {
		haystack := strings.Join([]string{v.FirstName, v.LastName, v.CompanyName, v.WhatNotes, v.WhySummary}, " ")
		if strings.Contains(strings.ToLower(haystack), needle) {
			result = append(result, v.Interaction)
		}
	}
	return result, nil
}

// AllInteractions returns every interaction, most recent first.
func (s *Store) AllInteractions() ([]Interaction, error) {
	var result []Interaction
	err := s.read(func() error {
		var err error
		result, err = s.allInteractions()
		return err
	})
	return result, err
}

// InteractionsForContact returns the contact's interactions, most recent first.
func (s *Store) InteractionsForContact(contactID int64) ([]Interaction, error) {
	var result []Interaction
	err := s.read(func() error {
		var err error
		result, err = s.interactionsForContact(contactID)
		return err
	})
	return result, err
}

// DueInteractions returns interactions whose follow-up time is set and not
// after by, earliest first.
func (s *Store) DueInteractions(by time.Time) ([]Interaction, error) {
	var result []Interaction
	err := s.read(func() error {
		var err error
		result, err = s.dueInteractions(by)
		return err
	})
	return result, err
}

// SearchInteractions returns interactions matching needle, most recent first.
func (s *Store) SearchInteractions(needle string) ([]Interaction, error) {
	var result []Interaction
	err := s.read(func() error {
		var err error
		result, err = s.searchInteractions(needle)
		return err
	})
	return result, err
}

// InteractionViews returns every interaction joined with contact and company
// names, most recent first.
func (s *Store) InteractionViews() ([]InteractionView, error) {
	var result []InteractionView
	err := s.read(func() error {
		var err error
		result, err = s.interactionViews("")
		return err
	})
	return result, err
}

// GetInteractionView returns one joined interaction.
func (s *Store) GetInteractionView(id int64) (InteractionView, bool, error) {
	var result []InteractionView
	err := s.read(func() error {
		var err error
		result, err = s.interactionViews("i.id = ?", id)
		return err
	})
	if err != nil || len(result) == 0 {
		return InteractionView{}, false, err
	}
	return result[0], true, nil
}

func (s *Store) WatchInteractions() (Subscription[Interaction], error) {
	return watch(s, []string{tableInteractions}, s.allInteractions)
}

func (s *Store) WatchInteractionsForContact(contactID int64) (Subscription[Interaction], error) {
	return watch(s, []string{tableInteractions}, func() ([]Interaction, error) {
		return s.interactionsForContact(contactID)
	})
}

// WatchDueInteractions streams the due list for a fixed cut-off time. The
// cut-off does not advance on its own.
func (s *Store) WatchDueInteractions(by time.Time) (Subscription[Interaction], error) {
	return watch(s, []string{tableInteractions}, func() ([]Interaction, error) {
		return s.dueInteractions(by)
	})
}

// WatchSearch streams search results; it depends on contact and company names
// as well as the interactions themselves.
func (s *Store) WatchSearch(needle string) (Subscription[Interaction], error) {
	return watch(s, []string{tableInteractions, tableContacts, tableCompanies}, func() ([]Interaction, error) {
		return s.searchInteractions(needle)
	})
}
