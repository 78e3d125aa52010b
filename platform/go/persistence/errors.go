package persistence

import "errors"

// Sentinel errors shared by the persistence stores. Repos and services map
// these onto their own domain errors.
var (
	ErrTenantNotFound   = errors.New("tenant not found")
	ErrTenantConflict   = errors.New("tenant subdomain already exists")
	ErrUserNotFound     = errors.New("user not found")
	ErrUserConflict     = errors.New("user email already exists")
	ErrRoleNotFound     = errors.New("role not found")
	ErrRoleConflict     = errors.New("role name already exists for tenant")
	ErrAPIKeyNotFound   = errors.New("api key not found")
	ErrCustomerNotFound = errors.New("customer not found")
)

// uniqueViolation is the PostgreSQL SQLSTATE for unique constraint violations.
const uniqueViolation = "23505"
