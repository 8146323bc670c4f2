package models

// Role constants for user roles within a tenant.
const (
	RoleAdmin           = "admin"
	RoleFacilitator     = "facilitator"
	RoleAnalyst         = "analyst"
	RoleParticipant     = "participant"
	RoleSponsor         = "sponsor"
	RoleSecurityOfficer = "security_officer"
	RoleDataSteward     = "data_steward"
)

// ValidRoles contains all valid role values.
var ValidRoles = []string{
	RoleAdmin, RoleFacilitator, RoleAnalyst, RoleParticipant,
	RoleSponsor, RoleSecurityOfficer, RoleDataSteward,
}

// IsValidRole checks if the given role is valid.
func IsValidRole(role string) bool {
	for _, r := range ValidRoles {
		if r == role {
			return true
		}
	}
	return false
}

// Actor identifies the authenticated user performing an operation.
// Extracted from JWT claims by the auth middleware.
type Actor struct {
	ID       string `json:"id"`
	Role     string `json:"role"`
	TenantID string `json:"tenant_id"`
}
