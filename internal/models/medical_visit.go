package models

import (
	"time"

	"github.com/google/uuid"
)

// MedicalVisit is a doctor's record of seeing a patient.
type MedicalVisit struct {
	TenantModel
	PatientID      uuid.UUID  `gorm:"type:char(36);not null;index" json:"patientId"`
	DoctorID       uuid.UUID  `gorm:"type:char(36);not null;index" json:"doctorId"`
	AppointmentID  *uuid.UUID `gorm:"type:char(36);index" json:"appointmentId,omitempty"`
	VisitDate      time.Time  `gorm:"not null" json:"visitDate"`
	ChiefComplaint string     `gorm:"size:255" json:"chiefComplaint"`
	Diagnosis      string     `gorm:"type:text" json:"diagnosis"`
	Notes          string     `gorm:"type:text" json:"notes"`

	Attachments []MedicalVisitAttachment `gorm:"foreignKey:MedicalVisitID" json:"attachments,omitempty"`
}

// MedicalVisitAttachment represents a file attached to a medical visit. The
// content lives in file storage; only its path is stored here.
type MedicalVisitAttachment struct {
	BaseModel
	MedicalVisitID uuid.UUID `gorm:"type:char(36);not null;index" json:"medicalVisitId"`
	FileName       string    `gorm:"size:255;not null" json:"fileName"` // Original name of the file
	FileType       string    `gorm:"size:100;not null" json:"fileType"` // Sniffed MIME type
	FilePath       string    `gorm:"size:255;not null" json:"-"`
	SizeBytes      int64     `json:"sizeBytes"`
}
