package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/taquilla/taquilla/internal/domain"
	"github.com/taquilla/taquilla/internal/model"
)

// CustomerRepo provides data access to customers and their notification
// preferences. De-duplication logic lives in the customer registry service;
// this layer only offers the keyed lookups it needs.
type CustomerRepo struct {
	db *sql.DB
}

// NewCustomerRepo returns a CustomerRepo bound to the provided database.
func NewCustomerRepo(db *sql.DB) *CustomerRepo { return &CustomerRepo{db: db} }

// DB exposes the handle so the registry can run find-or-create in one
// transaction.
func (r *CustomerRepo) DB() *sql.DB { return r.db }

const customerCols = `id, tenant_id, name, surname, phone, email, identification, is_active, created_at, updated_at`

// CreateTx inserts a customer and its default notification preferences
// inside tx, so a customer can never exist without preferences.
func (r *CustomerRepo) CreateTx(ctx context.Context, tx *sql.Tx, c *model.Customer) error {
	tid, err := tenantID(ctx)
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO customers (tenant_id, name, surname, phone, email, identification, is_active)
		 VALUES (?, ?, ?, ?, ?, ?, 1)`,
		tid, c.Name, c.Surname, c.Phone, c.Email, c.Identification)
	if err != nil {
		return err
	}
	id, _ := res.LastInsertId()
	c.ID = uint64(id)
	c.TenantID = tid
	c.IsActive = true
	_, err = tx.ExecContext(ctx,
		`INSERT INTO notification_preferences
		 (tenant_id, customer_id, email_enabled, sms_enabled, whatsapp_enabled,
		  purchases, reminders, marketing, preferred_hours, language)
		 VALUES (?, ?, 1, 1, 1, 1, 1, 0, '09-21', 'es')`,
		tid, c.ID)
	return err
}

// UpdateTx writes the merged field set of an existing customer inside tx.
func (r *CustomerRepo) UpdateTx(ctx context.Context, tx *sql.Tx, c *model.Customer) error {
	tid, err := tenantID(ctx)
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE customers SET name = ?, surname = ?, phone = ?, email = ?, identification = ?
		 WHERE id = ? AND tenant_id = ?`,
		c.Name, c.Surname, c.Phone, c.Email, c.Identification, c.ID, tid)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NotFoundf("customer %d", c.ID)
	}
	return nil
}

// GetByID fetches a customer within the context tenant.
func (r *CustomerRepo) GetByID(ctx context.Context, id uint64) (*model.Customer, error) {
	tid, err := tenantID(ctx)
	if err != nil {
		return nil, err
	}
	row := r.db.QueryRowContext(ctx,
		`SELECT `+customerCols+` FROM customers WHERE id = ? AND tenant_id = ?`, id, tid)
	return scanCustomer(row.Scan)
}

// FindByIdentificationTx looks a customer up by identification inside tx.
func (r *CustomerRepo) FindByIdentificationTx(ctx context.Context, tx *sql.Tx, identification string) (*model.Customer, error) {
	return r.findByTx(ctx, tx, "identification", identification)
}

// FindByEmailTx looks a customer up by email inside tx.
func (r *CustomerRepo) FindByEmailTx(ctx context.Context, tx *sql.Tx, email string) (*model.Customer, error) {
	return r.findByTx(ctx, tx, "email", email)
}

// FindByPhoneTx looks a customer up by phone inside tx.
func (r *CustomerRepo) FindByPhoneTx(ctx context.Context, tx *sql.Tx, phone string) (*model.Customer, error) {
	return r.findByTx(ctx, tx, "phone", phone)
}

func (r *CustomerRepo) findByTx(ctx context.Context, tx *sql.Tx, column, value string) (*model.Customer, error) {
	tid, err := tenantID(ctx)
	if err != nil {
		return nil, err
	}
	row := tx.QueryRowContext(ctx,
		`SELECT `+customerCols+` FROM customers
		 WHERE `+column+` = ? AND tenant_id = ? AND `+column+` <> '' LIMIT 1`,
		value, tid)
	return scanCustomer(row.Scan)
}

// GetPreferences returns the notification preferences of one customer.
func (r *CustomerRepo) GetPreferences(ctx context.Context, customerID uint64) (*model.NotificationPreferences, error) {
	tid, err := tenantID(ctx)
	if err != nil {
		return nil, err
	}
	var p model.NotificationPreferences
	err = r.db.QueryRowContext(ctx,
		`SELECT id, tenant_id, customer_id, email_enabled, sms_enabled, whatsapp_enabled,
		        purchases, reminders, marketing, preferred_hours, language
		 FROM notification_preferences WHERE customer_id = ? AND tenant_id = ?`,
		customerID, tid).
		Scan(&p.ID, &p.TenantID, &p.CustomerID, &p.EmailEnabled, &p.SMSEnabled,
			&p.WhatsAppEnabled, &p.Purchases, &p.Reminders, &p.Marketing,
			&p.PreferredHours, &p.Language)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFoundf("preferences for customer %d", customerID)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdatePreferences replaces the preference flags of one customer.
func (r *CustomerRepo) UpdatePreferences(ctx context.Context, p *model.NotificationPreferences) error {
	tid, err := tenantID(ctx)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE notification_preferences
		 SET email_enabled = ?, sms_enabled = ?, whatsapp_enabled = ?,
		     purchases = ?, reminders = ?, marketing = ?, preferred_hours = ?, language = ?
		 WHERE customer_id = ? AND tenant_id = ?`,
		p.EmailEnabled, p.SMSEnabled, p.WhatsAppEnabled,
		p.Purchases, p.Reminders, p.Marketing, p.PreferredHours, p.Language,
		p.CustomerID, tid)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NotFoundf("preferences for customer %d", p.CustomerID)
	}
	return nil
}

func scanCustomer(scan func(dest ...any) error) (*model.Customer, error) {
	var c model.Customer
	err := scan(&c.ID, &c.TenantID, &c.Name, &c.Surname, &c.Phone, &c.Email,
		&c.Identification, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFoundf("customer")
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}
