package storage

import (
	"database/sql"
	"fmt"
)

const (
	tableContacts  = "contacts"
	tableCompanies = "companies"
)

var contacts = table[Contact]{
	name:    tableContacts,
	columns: []string{"first_name", "last_name", "phone", "email", "title", "company_id", "tags"},
	values: func(c Contact) []any {
		return []any{c.FirstName, c.LastName, nullString(c.Phone), nullString(c.Email), nullString(c.Title), nullInt64(c.CompanyID), c.Tags}
	},
	scan: scanContact,
}

func scanContact(r rowScanner) (Contact, error) {
	var c Contact
	var phone, email, title sql.NullString
	var companyID sql.NullInt64
	if err := r.Scan(&c.ID, &c.FirstName, &c.LastName, &phone, &email, &title, &companyID, &c.Tags); err != nil {
		return Contact{}, err
	}
	c.Phone = phone.String
	c.Email = email.String
	c.Title = title.String
	c.CompanyID = int64Ptr(companyID)
	return c, nil
}

var companies = table[Company]{
	name:    tableCompanies,
	columns: []string{"name", "city", "state", "notes"},
	values: func(c Company) []any {
		return []any{c.Name, nullString(c.City), nullString(c.State), nullString(c.Notes)}
	},
	scan: scanCompany,
}

func scanCompany(r rowScanner) (Company, error) {
	var c Company
	var city, state, notes sql.NullString
	if err := r.Scan(&c.ID, &c.Name, &city, &state, &notes); err != nil {
		return Company{}, err
	}
	c.City = city.String
	c.State = state.String
	c.Notes = notes.String
	return c, nil
}

// --- Contacts ---

// InsertContact persists c and returns its new id. Fails with
// ErrConstraintViolation if c.CompanyID references a missing company.
func (s *Store) InsertContact(c Contact) (int64, error) {
	var id int64
	err := s.mutate(func(tx *sql.Tx) ([]string, error) {
		if err := requireRef(tx, companies, c.CompanyID); err != nil {
			return nil, err
		}
		var err error
		id, err = contacts.insert(tx, c)
		return []string{tableContacts}, err
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// UpdateContact replaces the stored contact matching c.ID.
func (s *Store) UpdateContact(c Contact) error {
	return s.mutate(func(tx *sql.Tx) ([]string, error) {
		if err := requireRef(tx, companies, c.CompanyID); err != nil {
			return nil, err
		}
		return []string{tableContacts}, contacts.update(tx, c.ID, c)
	})
}

// DeleteContact removes the contact and, through the foreign key, every
// interaction that references it. Deleting a missing id is a no-op.
func (s *Store) DeleteContact(id int64) error {
	return s.mutate(func(tx *sql.Tx) ([]string, error) {
		found, err := contacts.delete(tx, id)
		if err != nil || !found {
			return nil, err
		}
		return []string{tableContacts, tableInteractions}, nil
	})
}

func (s *Store) GetContact(id int64) (Contact, bool, error) {
	var (
		c     Contact
		found bool
	)
	err := s.read(func() error {
		var err error
		c, found, err = contacts.get(s.db, id)
		return err
	})
	return c, found, err
}

func (s *Store) allContacts() ([]Contact, error) {
	return contacts.list(s.db, "", "last_name ASC, first_name ASC, id ASC")
}

// AllContacts returns every contact ordered by last name, then first name.
func (s *Store) AllContacts() ([]Contact, error) {
	var result []Contact
	err := s.read(func() error {
		var err error
		result, err = s.allContacts()
		return err
	})
	return result, err
}

func (s *Store) WatchContacts() (Subscription[Contact], error) {
	return watch(s, []string{tableContacts}, s.allContacts)
}

// --- Companies ---

func (s *Store) InsertCompany(c Company) (int64, error) {
	var id int64
	err := s.mutate(func(tx *sql.Tx) ([]string, error) {
		var err error
		id, err = companies.insert(tx, c)
		return []string{tableCompanies}, err
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (s *Store) UpdateCompany(c Company) error {
	return s.mutate(func(tx *sql.Tx) ([]string, error) {
		return []string{tableCompanies}, companies.update(tx, c.ID, c)
	})
}

// DeleteCompany removes the company. Contacts and interactions that
// referenced it keep existing with their company id cleared.
func (s *Store) DeleteCompany(id int64) error {
	return s.mutate(func(tx *sql.Tx) ([]string, error) {
		found, err := companies.delete(tx, id)
		if err != nil || !found {
			return nil, err
		}
		return []string{tableCompanies, tableContacts, tableInteractions}, nil
	})
}

func (s *Store) GetCompany(id int64) (Company, bool, error) {
	var (
		c     Company
		found bool
	)
	err := s.read(func() error {
		var err error
		c, found, err = companies.get(s.db, id)
		return err
	})
	return c, found, err
}

func (s *Store) allCompanies() ([]Company, error) {
	return companies.list(s.db, "", "name ASC, id ASC")
}

// AllCompanies returns every company ordered by name.
func (s *Store) AllCompanies() ([]Company, error) {
	var result []Company
	err := s.read(func() error {
		var err error
		result, err = s.allCompanies()
		return err
	})
	return result, err
}

func (s *Store) WatchCompanies() (Subscription[Company], error) {
	return watch(s, []string{tableCompanies}, s.allCompanies)
}

// requireRef fails with ErrConstraintViolation when id is set and t has no
// such row.
func requireRef[T any](q querier, t table[T], id *int64) error {
	if id == nil {
		return nil
	}
	ok, err := t.exists(q, *id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s %d does not exist", ErrConstraintViolation, t.name, *id)
	}
	return nil
}
