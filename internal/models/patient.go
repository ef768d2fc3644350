package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Patient belongs to exactly one clinic. PatientCode is unique per clinic.
type Patient struct {
	BaseModel
	ClinicID        uuid.UUID               `gorm:"type:char(36);not null;uniqueIndex:idx_patient_clinic_code" json:"clinicId"`
	PatientCode     string                  `gorm:"size:20;not null;uniqueIndex:idx_patient_clinic_code" json:"patientCode"`
	FirstName       string                  `gorm:"size:100;not null" json:"firstName"`
	LastName        string                  `gorm:"size:100;not null" json:"lastName"`
	DateOfBirth     *time.Time              `json:"dateOfBirth,omitempty"`
	Gender          string                  `gorm:"size:20" json:"gender,omitempty"`
	Email           string                  `gorm:"size:255" json:"email,omitempty"`
	Address         string                  `gorm:"size:255" json:"address,omitempty"`
	Notes           string                  `gorm:"type:text" json:"notes,omitempty"`
	PhotoPath       string                  `gorm:"size:255" json:"photoPath,omitempty"`
	Phones          []PatientPhone          `gorm:"foreignKey:PatientID" json:"phones"`
	ChronicDiseases []PatientChronicDisease `gorm:"foreignKey:PatientID" json:"chronicDiseases"`
	DeletedAt       gorm.DeletedAt          `gorm:"index" json:"deletedAt,omitempty"`
}

func (Patient) TenantOwned() {}

// PatientPhone is one of a patient's phone numbers. Exactly one is primary.
type PatientPhone struct {
	BaseModel
	PatientID uuid.UUID `gorm:"type:char(36);not null;index" json:"patientId"`
	Number    string    `gorm:"size:50;not null" json:"number"`
	Label     string    `gorm:"size:50" json:"label,omitempty"`
	IsPrimary bool      `gorm:"not null" json:"isPrimary"`
}

// ChronicDisease is a global catalogue entry shared by all clinics.
type ChronicDisease struct {
	BaseModel
	Name        string `gorm:"size:150;not null;uniqueIndex" json:"name"`
	Description string `gorm:"type:text" json:"description,omitempty"`
}

// PatientChronicDisease links a patient to a chronic disease. The pair is the
// primary key.
type PatientChronicDisease struct {
	PatientID        uuid.UUID  `gorm:"primaryKey;type:char(36)" json:"patientId"`
	ChronicDiseaseID uuid.UUID  `gorm:"primaryKey;type:char(36)" json:"chronicDiseaseId"`
	DiagnosedAt      *time.Time `json:"diagnosedAt,omitempty"`
	Notes            string     `gorm:"size:255" json:"notes,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
}
