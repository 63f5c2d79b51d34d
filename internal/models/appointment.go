package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Derived appointment states. Completed and Cancelled are terminal and
// mutually exclusive; scheduling fields are immutable once either is reached.
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

// PatientSnapshot is the patient's contact details as they were at booking
// time. Deliberately never re-synced with the users collection.
type PatientSnapshot struct {
	Name    string `bson:"name" json:"name"`
	Email   string `bson:"email" json:"email"`
	Phone   string `bson:"phone" json:"phone"`
	Address string `bson:"address,omitempty" json:"address,omitempty"`
}

// DoctorSnapshot is the doctor's credentials and fee at booking time.
type DoctorSnapshot struct {
	Name       string `bson:"name" json:"name"`
	Speciality string `bson:"speciality" json:"speciality"`
	Degree     string `bson:"degree" json:"degree"`
	Fees       int64  `bson:"fees" json:"fees"`
}

// Appointment is the authoritative record of one successful booking. Records
// are never deleted; cancellation and completion flip flags only.
type Appointment struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	PatientID primitive.ObjectID `bson:"patientId" json:"patientId"`
	DoctorID  primitive.ObjectID `bson:"doctorId" json:"doctorId"`

	SlotDate string `bson:"slotDate" json:"slotDate"` // "2006-01-02"
	SlotTime string `bson:"slotTime" json:"slotTime"` // "15:04", on the booking grid

	Patient PatientSnapshot `bson:"patientSnapshot" json:"patientSnapshot"`
	Doctor  DoctorSnapshot  `bson:"doctorSnapshot" json:"doctorSnapshot"`

	Amount    int64     `bson:"amount" json:"amount"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`

	Cancelled   bool `bson:"cancelled" json:"cancelled"`
	Payment     bool `bson:"payment" json:"payment"`
	IsCompleted bool `bson:"isCompleted" json:"isCompleted"`

	// Audit fields, set only when Cancelled is true.
	CancelledBy        string     `bson:"cancelledBy,omitempty" json:"cancelledBy,omitempty"`
	CancellationReason string     `bson:"cancellationReason,omitempty" json:"cancellationReason,omitempty"`
	CancelledAt        *time.Time `bson:"cancelledAt,omitempty" json:"cancelledAt,omitempty"`
}

// Status derives the appointment's lifecycle state from its flags.
func (a *Appointment) Status() string {
	switch {
	case a.Cancelled:
		return StatusCancelled
	case a.IsCompleted:
		return StatusCompleted
	default:
		return StatusPending
	}
}
