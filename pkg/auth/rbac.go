package auth

import "github.com/digikawsay/kawsay-engine/pkg/models"

// Capability checks for the privacy core. Role checks are consolidated here
// so enforcement cannot drift between handlers; every gate on an operation
// goes through exactly one of these functions.

// CanRequestReidentification reports whether role may open a
// reidentification request.
func CanRequestReidentification(role string) bool {
	switch role {
	case models.RoleAdmin, models.RoleSecurityOfficer, models.RoleFacilitator:
		return true
	}
	return false
}

// CanReview reports whether role may review (approve/deny) a
// reidentification request.
func CanReview(role string) bool {
	switch role {
	case models.RoleAdmin, models.RoleDataSteward, models.RoleSecurityOfficer:
		return true
	}
	return false
}

// CanResolve reports whether role may resolve an approved request into an
// identity disclosure.
func CanResolve(role string) bool {
	switch role {
	case models.RoleAdmin, models.RoleSecurityOfficer:
		return true
	}
	return false
}

// CanViewSuppressed reports whether role may see suppressed insights at all.
// Every other role receives the filtered set as if those records do not exist.
func CanViewSuppressed(role string) bool {
	switch role {
	case models.RoleAdmin, models.RoleSecurityOfficer:
		return true
	}
	return false
}

// CanViewAudit reports whether role may read the audit log.
func CanViewAudit(role string) bool {
	switch role {
	case models.RoleAdmin, models.RoleSecurityOfficer, models.RoleDataSteward, models.RoleFacilitator:
		return true
	}
	return false
}

// CanErase reports whether role may perform compliance-driven vault erasure.
func CanErase(role string) bool {
	switch role {
	case models.RoleAdmin, models.RoleDataSteward:
		return true
	}
	return false
}

// CanRunSuppression reports whether role may trigger a suppression run.
func CanRunSuppression(role string) bool {
	switch role {
	case models.RoleAdmin, models.RoleSecurityOfficer, models.RoleDataSteward, models.RoleFacilitator:
		return true
	}
	return false
}
