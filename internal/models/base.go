package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BaseModel contains common columns for all tables
type BaseModel struct {
	ID        uuid.UUID `gorm:"primaryKey;type:char(36)" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// BeforeCreate will set a UUID rather than numeric ID
func (base *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if base.ID == uuid.Nil {
		base.ID = uuid.New()
	}
	return nil
}

// TenantOwned marks tables whose rows belong to a single clinic. Queries on
// them are filtered by clinic_id.
type TenantOwned interface {
	TenantOwned()
}

// TenantModel is embedded by clinic-owned tables.
type TenantModel struct {
	BaseModel
	ClinicID uuid.UUID `gorm:"type:char(36);not null;index" json:"clinicId"`
}

func (TenantModel) TenantOwned() {}

// All returns every table in migration order.
func All() []interface{} {
	return []interface{}{
		&Clinic{},
		&ClinicBranch{},
		&User{},
		&RefreshToken{},
		&StaffInvitation{},
		&ChronicDisease{},
		&Patient{},
		&PatientPhone{},
		&PatientChronicDisease{},
		&AppointmentType{},
		&MedicalService{},
		&MedicalSupply{},
		&Medicine{},
		&Appointment{},
		&MedicalVisit{},
		&MedicalVisitAttachment{},
		&Invoice{},
		&InvoiceItem{},
		&Payment{},
	}
}
