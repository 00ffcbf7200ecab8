package repository

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/kalambet/prospect/internal/csvcodec"
	"github.com/kalambet/prospect/internal/storage"
)

// --- Companies ---

func (r *Repository) AddCompany(c storage.Company) (int64, error) {
	return r.store.InsertCompany(c)
}

// AddCompanyIfNeeded creates a company called name and returns its id, or
// nil when name is blank.
func (r *Repository) AddCompanyIfNeeded(name string) (*int64, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}
	id, err := r.store.InsertCompany(storage.Company{Name: name})
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func (r *Repository) UpdateCompany(c storage.Company) error {
	return r.store.UpdateCompany(c)
}

// DeleteCompany removes the company; contacts and interactions that
// referenced it lose the reference.
func (r *Repository) DeleteCompany(id int64) error {
	return r.store.DeleteCompany(id)
}

func (r *Repository) Company(id int64) (storage.Company, bool, error) {
	return r.store.GetCompany(id)
}

func (r *Repository) Companies() ([]storage.Company, error) {
	return r.store.AllCompanies()
}

// --- Contacts ---

func (r *Repository) AddContact(c storage.Contact) (int64, error) {
	return r.store.InsertContact(c)
}

func (r *Repository) UpdateContact(c storage.Contact) error {
	return r.store.UpdateContact(c)
}

// DeleteContact removes the contact together with its interactions and
// cancels their pending reminders.
func (r *Repository) DeleteContact(ctx context.Context, id int64) error {
	owned, err := r.store.InteractionsForContact(id)
	if err != nil {
		return err
	}
	if err := r.store.DeleteContact(id); err != nil {
		return err
	}
	for _, i := range owned {
		if i.NextFollowUpAt == nil {
			continue
		}
		if err := r.scheduler.Cancel(ctx, i.ID); err != nil {
			return fmt.Errorf("cancelling reminder: %w", err)
		}
	}
	return nil
}

func (r *Repository) Contact(id int64) (storage.Contact, bool, error) {
	return r.store.GetContact(id)
}

func (r *Repository) Contacts() ([]storage.Contact, error) {
	return r.store.AllContacts()
}

// --- Interactions ---

// LogInteraction persists i and schedules its follow-up reminder if one is
// set. A scheduling failure is returned together with the new id.
func (r *Repository) LogInteraction(ctx context.Context, i storage.Interaction) (int64, error) {
	id, err := r.store.InsertInteraction(i)
	if err != nil {
		return 0, err
	}
	if i.NextFollowUpAt != nil {
		if err := r.scheduler.Schedule(ctx, id, *i.NextFollowUpAt); err != nil {
			return id, fmt.Errorf("scheduling reminder: %w", err)
		}
	}
	return id, nil
}

// QuickEntry is the one-screen capture of a new prospect touchpoint: who,
// at which company, and what happened.
type QuickEntry struct {
	FirstName   string
	LastName    string
	CompanyName string
	Interaction storage.Interaction
}

// QuickLog creates the company (when named), the contact and the
// interaction in one go, then schedules the follow-up.
func (r *Repository) QuickLog(ctx context.Context, q QuickEntry) (int64, error) {
	companyID, err := r.AddCompanyIfNeeded(q.CompanyName)
	if err != nil {
		return 0, fmt.Errorf("adding company: %w", err)
	}
	contactID, err := r.store.InsertContact(storage.Contact{
		FirstName: strings.TrimSpace(q.FirstName),
		LastName:  strings.TrimSpace(q.LastName),
		CompanyID: companyID,
	})
	if err != nil {
		return 0, fmt.Errorf("adding contact: %w", err)
	}

	i := q.Interaction
	i.ContactID = contactID
	i.CompanyID = companyID
	return r.LogInteraction(ctx, i)
}

// UpdateInteraction replaces the stored interaction and re-issues or cancels
// its reminder to match the new follow-up time.
func (r *Repository) UpdateInteraction(ctx context.Context, i storage.Interaction) error {
	if err := r.store.UpdateInteraction(i); err != nil {
		return err
	}
	return r.syncReminder(ctx, i)
}

// SetFollowUp changes the follow-up time and note of an interaction. A nil at
// clears the follow-up. Returns storage.ErrNotFound for a missing id.
func (r *Repository) SetFollowUp(ctx context.Context, id int64, at *time.Time, note string) error {
	i, found, err := r.store.GetInteraction(id)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("interaction %d: %w", id, storage.ErrNotFound)
	}
	i.NextFollowUpAt = at
	i.FollowUpNote = note
	return r.UpdateInteraction(ctx, i)
}

func (r *Repository) syncReminder(ctx context.Context, i storage.Interaction) error {
	var err error
	if i.NextFollowUpAt != nil {
		err = r.scheduler.Schedule(ctx, i.ID, *i.NextFollowUpAt)
	} else {
		err = r.scheduler.Cancel(ctx, i.ID)
	}
	if err != nil {
		return fmt.Errorf("updating reminder: %w", err)
	}
	return nil
}

// DeleteInteraction removes the interaction and cancels its reminder.
// Deleting a missing id is a no-op.
func (r *Repository) DeleteInteraction(ctx context.Context, id int64) error {
	if err := r.store.DeleteInteraction(id); err != nil {
		return err
	}
	if err := r.scheduler.Cancel(ctx, id); err != nil {
		return fmt.Errorf("cancelling reminder: %w", err)
	}
	return nil
}

func (r *Repository) Interaction(id int64) (storage.InteractionView, bool, error) {
	return r.store.GetInteractionView(id)
}

// Interactions returns every interaction with contact and company names,
// most recent first.
func (r *Repository) Interactions() ([]storage.InteractionView, error) {
	return r.store.InteractionViews()
}

func (r *Repository) InteractionsForContact(contactID int64) ([]storage.Interaction, error) {
	return r.store.InteractionsForContact(contactID)
}

// Due returns interactions whose follow-up is at or before the clock's now.
func (r *Repository) Due() ([]storage.Interaction, error) {
	return r.store.DueInteractions(r.clock.Now())
}

func (r *Repository) Search(needle string) ([]storage.Interaction, error) {
	return r.store.SearchInteractions(needle)
}

func (r *Repository) ObserveInteractions() (storage.Subscription[storage.Interaction], error) {
	return r.store.WatchInteractions()
}

// ObserveDue streams the due list with the cut-off fixed at the clock's
// current time.
func (r *Repository) ObserveDue() (storage.Subscription[storage.Interaction], error) {
	return r.store.WatchDueInteractions(r.clock.Now())
}

func (r *Repository) ObserveSearch(needle string) (storage.Subscription[storage.Interaction], error) {
	return r.store.WatchSearch(needle)
}

// ExportInteractions writes the interaction log CSV to w.
func (r *Repository) ExportInteractions(w io.Writer, list []storage.Interaction) error {
	return csvcodec.InteractionsToCSV(w, list)
}
