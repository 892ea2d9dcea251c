package model

import "time"

// Tenant is an independent organization whose data is isolated from all
// others. Tenants are created administratively and never deleted while they
// own data; deactivation flips IsActive instead.
//
// Fields:
//  ID        – primary key identifier.
//  Slug      – URL-safe unique name, used for header/subdomain resolution.
//  Name      – display name.
//  IsActive  – whether the tenant may serve requests.
//  CreatedAt – creation timestamp.
type Tenant struct {
	ID        uint64    // tenants.id
	Slug      string    // tenants.slug
	Name      string    // tenants.name
	IsActive  bool      // tenants.is_active
	CreatedAt time.Time // tenants.created_at
}

// User is an operator account scoped to a single tenant. The Role claim
// drives route-level authorization.
type User struct {
	ID           uint64    // users.id
	TenantID     uint64    // users.tenant_id
	Email        string    // users.email
	PasswordHash string    // users.password_hash
	Role         string    // users.role (ADMIN, OPERATOR, VALIDATOR, CUSTOMER)
	IsActive     bool      // users.is_active
	CreatedAt    time.Time // users.created_at
}

// User roles accepted in JWT role claims.
const (
	RoleAdmin     = "ADMIN"
	RoleOperator  = "OPERATOR"
	RoleValidator = "VALIDATOR"
	RoleCustomer  = "CUSTOMER"
)
