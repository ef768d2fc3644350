package domain

// Role is a user's role. Every role except RoleSuperAdmin is bound to a clinic.
type Role string

const (
	RoleSuperAdmin   Role = "super_admin"
	RoleClinicOwner  Role = "clinic_owner"
	RoleDoctor       Role = "doctor"
	RoleReceptionist Role = "receptionist"
	RolePharmacist   Role = "pharmacist"
)

// IsStaff reports whether r can be granted through a staff invitation.
func (r Role) IsStaff() bool {
	switch r {
	case RoleDoctor, RoleReceptionist, RolePharmacist:
		return true
	}
	return false
}

func (r Role) IsValid() bool {
	return r == RoleSuperAdmin || r == RoleClinicOwner || r.IsStaff()
}
