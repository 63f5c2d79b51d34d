// Package store persists patients, doctors and appointments. The booking and
// cancellation engines speak to the Store interface; Mongo is the production
// implementation, Memory backs tests and local development.
package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/docpoint/appointment-api/internal/models"
)

// ErrNotFound is returned by the Find* methods when no document matches.
var ErrNotFound = errors.New("store: not found")

// AppointmentFilter narrows ListAppointments. Zero values mean "any".
type AppointmentFilter struct {
	PatientID primitive.ObjectID
	DoctorID  primitive.ObjectID
	SlotDate  string
	// ActiveOnly keeps only appointments that are neither cancelled nor
	// completed.
	ActiveOnly bool
}

// Store is the persistence boundary of the booking core.
//
// The guarded mutators (ReserveSlot, MarkCancelled, MarkCompleted) re-check
// their precondition in the same write that applies the change and report
// false when the precondition no longer holds. Inside WithTransaction this is
// what turns two racing writers into exactly one winner.
type Store interface {
	// WithTransaction runs fn atomically: every write issued through the
	// ctx passed to fn commits entirely or not at all.
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	FindPatient(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	FindDoctor(ctx context.Context, id primitive.ObjectID) (*models.Doctor, error)
	FindAppointment(ctx context.Context, id primitive.ObjectID) (*models.Appointment, error)

	// ReserveSlot appends t to the doctor's ledger for date, creating the
	// date entry if absent. Returns false when the slot is already taken
	// or the doctor stopped accepting bookings.
	ReserveSlot(ctx context.Context, doctorID primitive.ObjectID, date, t string) (bool, error)

	// ReleaseSlot removes t from the doctor's ledger for date, pruning the
	// date key when its last time is removed.
	ReleaseSlot(ctx context.Context, doctorID primitive.ObjectID, date, t string) error

	InsertAppointment(ctx context.Context, appt *models.Appointment) error

	// HasActiveAppointment reports whether a non-cancelled appointment
	// already exists for (patient, doctor, date, t).
	HasActiveAppointment(ctx context.Context, patientID, doctorID primitive.ObjectID, date, t string) (bool, error)

	// MarkCancelled flips the appointment to cancelled with its audit
	// fields. Returns false when the appointment is no longer pending.
	MarkCancelled(ctx context.Context, id primitive.ObjectID, by, reason string, at time.Time) (bool, error)

	// MarkCompleted flips the appointment to completed. Returns false when
	// the appointment is no longer pending.
	MarkCompleted(ctx context.Context, id primitive.ObjectID) (bool, error)

	ListAppointments(ctx context.Context, filter AppointmentFilter) ([]models.Appointment, error)
}
