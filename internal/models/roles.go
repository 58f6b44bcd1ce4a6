package models

const (
	RoleAdmin         = "ADMIN"
	RoleBusinessUser  = "BUSINESS_USER"
	RoleHiringManager = "HIRING_MANAGER"
	RoleVendorManager = "VENDOR_MANAGER"
	RoleITVendor      = "IT_VENDOR"
)

var validRoles = map[string]struct{}{
	RoleAdmin:         {},
	RoleBusinessUser:  {},
	RoleHiringManager: {},
	RoleVendorManager: {},
	RoleITVendor:      {},
}

// IsValidRole reports whether name is one of the system-defined roles (case-sensitive).
func IsValidRole(name string) bool {
	_, ok := validRoles[name]
	return ok
}
