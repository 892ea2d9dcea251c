// Package customer implements the de-duplicated contact registry. Lookup
// order is identification → email → phone; a match updates empty fields but
// never silently replaces a populated field.
package customer

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"strings"

	"github.com/taquilla/taquilla/internal/domain"
	"github.com/taquilla/taquilla/internal/model"
	"github.com/taquilla/taquilla/internal/repository"
)

// identificationRe matches the accepted document format: a type letter
// followed by digits (e.g. V12345678, E802331, J305959201).
var identificationRe = regexp.MustCompile(`^[A-Z][0-9]{5,12}$`)

// Registry resolves inbound contact details to a single customer row per
// person within a tenant.
type Registry struct {
	customers *repository.CustomerRepo
}

// NewRegistry wires the registry to its repository.
func NewRegistry(customers *repository.CustomerRepo) *Registry {
	return &Registry{customers: customers}
}

// Input is the contact detail set supplied at checkout or registration.
type Input struct {
	Name           string
	Surname        string
	Phone          string
	Email          string
	Identification string
}

// normalize trims and canonicalizes the input in place.
func (in *Input) normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.Surname = strings.TrimSpace(in.Surname)
	in.Phone = strings.TrimSpace(in.Phone)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Identification = strings.ToUpper(strings.TrimSpace(in.Identification))
}

// Validate enforces the registry invariants: at least one of phone/email,
// and a well-formed identification when present.
func (in *Input) Validate() error {
	if in.Phone == "" && in.Email == "" {
		return domain.Validationf("at least one of phone or email is required")
	}
	if in.Identification != "" && !identificationRe.MatchString(in.Identification) {
		return domain.Validationf("identification %q must be a letter followed by digits", in.Identification)
	}
	return nil
}

// FindOrCreate resolves the input to a customer, creating one when no key
// matches. The whole resolution runs in one transaction so two concurrent
// checkouts for the same person converge on one row.
func (r *Registry) FindOrCreate(ctx context.Context, in Input) (*model.Customer, error) {
	in.normalize()
	if err := in.Validate(); err != nil {
		return nil, err
	}

	tx, err := r.customers.DB().BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	existing, err := r.lookupTx(ctx, tx, in)
	if err != nil {
		return nil, err
	}
	var out *model.Customer
	if existing != nil {
		Merge(existing, in)
		if err := r.customers.UpdateTx(ctx, tx, existing); err != nil {
			return nil, err
		}
		out = existing
	} else {
		out = &model.Customer{
			Name:           in.Name,
			Surname:        in.Surname,
			Phone:          in.Phone,
			Email:          in.Email,
			Identification: in.Identification,
		}
		if err := r.customers.CreateTx(ctx, tx, out); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return out, nil
}

func (r *Registry) lookupTx(ctx context.Context, tx *sql.Tx, in Input) (*model.Customer, error) {
	type probe struct {
		key  string
		find func() (*model.Customer, error)
	}
	probes := []probe{
		{in.Identification, func() (*model.Customer, error) { return r.customers.FindByIdentificationTx(ctx, tx, in.Identification) }},
		{in.Email, func() (*model.Customer, error) { return r.customers.FindByEmailTx(ctx, tx, in.Email) }},
		{in.Phone, func() (*model.Customer, error) { return r.customers.FindByPhoneTx(ctx, tx, in.Phone) }},
	}
	for _, p := range probes {
		if p.key == "" {
			continue
		}
		c, err := p.find()
		if err == nil {
			return c, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
	}
	return nil, nil
}

// Merge copies populated input fields onto the customer without erasing
// anything already stored. Exported for direct testing.
func Merge(c *model.Customer, in Input) {
	if in.Name != "" {
		c.Name = in.Name
	}
	if in.Surname != "" {
		c.Surname = in.Surname
	}
	if in.Phone != "" {
		c.Phone = in.Phone
	}
	if in.Email != "" {
		c.Email = in.Email
	}
	if in.Identification != "" {
		c.Identification = in.Identification
	}
}
