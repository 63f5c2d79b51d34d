// Package booking implements the slot-booking and cancellation core: a
// single engine that validates requests against the slot calendar, reserves
// or frees a doctor's time slot, and keeps the doctor's availability ledger
// consistent with the appointment store. Every mutation runs inside one
// store transaction so partial bookings and partial cancellations are
// unreachable.
package booking

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/docpoint/appointment-api/internal/calendar"
	"github.com/docpoint/appointment-api/internal/models"
	"github.com/docpoint/appointment-api/internal/store"
)

// Default cancellation reasons, per initiating role.
const (
	reasonPatient = "Cancelled by patient"
	reasonDoctor  = "Cancelled by doctor"
	reasonAdmin   = "Cancelled by admin"
)

// Engine orchestrates bookings, cancellations and completions over a Store.
type Engine struct {
	store store.Store
	log   zerolog.Logger
	now   func() time.Time
}

func NewEngine(st store.Store, log zerolog.Logger) *Engine {
	return &Engine{store: st, log: log, now: time.Now}
}

// logger prefers the request-scoped logger carried in ctx, so engine log
// lines share the request_id of the surrounding request log line.
func (e *Engine) logger(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &e.log
}

// BookRequest is one booking attempt as received from the API boundary.
type BookRequest struct {
	DoctorID  string
	PatientID string
	SlotDate  string
	SlotTime  string
}

// Confirmation is returned on a successful booking.
type Confirmation struct {
	AppointmentID string `json:"appointmentId"`
	DoctorName    string `json:"doctorName"`
	Speciality    string `json:"speciality"`
	SlotDate      string `json:"slotDate"`
	SlotTime      string `json:"slotTime"`
	Fees          int64  `json:"fees"`
	Status        string `json:"status"`
}

// CancelResult summarizes a cancellation; the admin surface returns it whole,
// the patient and doctor surfaces return only the message.
type CancelResult struct {
	Message       string `json:"message"`
	AppointmentID string `json:"appointmentId"`
	PatientName   string `json:"patientName"`
	DoctorID      string `json:"doctorId"`
	DoctorName    string `json:"doctorName"`
	SlotDate      string `json:"slotDate"`
	SlotTime      string `json:"slotTime"`
	CancelledBy   string `json:"cancelledBy"`
	Reason        string `json:"reason"`

	// PatientPhone lets the notification service reach the patient; it is
	// never serialized into API responses.
	PatientPhone string `json:"-"`
}

// Book validates and executes one booking attempt. requestingPatientID comes
// from the authenticated context; a patient may only book for themself.
// Existence checks, availability checks, the appointment insert and the
// ledger reservation all run in one transaction.
func (e *Engine) Book(ctx context.Context, requestingPatientID string, req BookRequest) (*Confirmation, error) {
	if requestingPatientID != req.PatientID {
		return nil, newErr(KindForbidden, "Patients can only book appointments for themselves")
	}
	if req.DoctorID == "" || req.PatientID == "" || req.SlotDate == "" || req.SlotTime == "" {
		return nil, newErr(KindInvalidInput, "doctorId, patientId, slotDate and slotTime are required")
	}
	doctorID, err := primitive.ObjectIDFromHex(req.DoctorID)
	if err != nil {
		return nil, newErr(KindInvalidInput, "Invalid doctor id")
	}
	patientID, err := primitive.ObjectIDFromHex(req.PatientID)
	if err != nil {
		return nil, newErr(KindInvalidInput, "Invalid patient id")
	}
	slotDate, ok := calendar.ParseDate(req.SlotDate)
	if !ok || !calendar.IsValidDate(slotDate) {
		return nil, newErr(KindInvalidInput, "Invalid appointment date, bookings are accepted from today up to 3 months ahead")
	}
	if !calendar.IsValidTime(req.SlotTime) {
		return nil, newErr(KindInvalidInput, "Invalid time slot, expected a 30-minute slot between 09:00 and 16:30")
	}

	var appt models.Appointment
	txErr := e.store.WithTransaction(ctx, func(ctx context.Context) error {
		patient, err := e.store.FindPatient(ctx, patientID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return newErr(KindNotFound, "Patient not found")
			}
			return err
		}
		doctor, err := e.store.FindDoctor(ctx, doctorID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return newErr(KindNotFound, "Doctor not found")
			}
			return err
		}
		if !doctor.Available {
			return newErr(KindUnavailable, "Doctor is not accepting new bookings")
		}
		if doctor.SlotTaken(slotDate, req.SlotTime) {
			return newErr(KindConflict, "Slot already booked")
		}
		// Defensive check against ledger/store divergence: the ledger says
		// the slot is free, but an active appointment must not exist either.
		dup, err := e.store.HasActiveAppointment(ctx, patientID, doctorID, slotDate, req.SlotTime)
		if err != nil {
			return err
		}
		if dup {
			return newErr(KindConflict, "Duplicate booking for this slot")
		}

		reserved, err := e.store.ReserveSlot(ctx, doctorID, slotDate, req.SlotTime)
		if err != nil {
			return err
		}
		if !reserved {
			return newErr(KindConflict, "Slot already booked")
		}

		appt = models.Appointment{
			ID:        primitive.NewObjectID(),
			PatientID: patientID,
			DoctorID:  doctorID,
			SlotDate:  slotDate,
			SlotTime:  req.SlotTime,
			Patient: models.PatientSnapshot{
				Name:    patient.FullName,
				Email:   patient.Email,
				Phone:   patient.Phone,
				Address: patient.Address,
			},
			Doctor: models.DoctorSnapshot{
				Name:       doctor.FullName,
				Speciality: doctor.Speciality,
				Degree:     doctor.Degree,
				Fees:       doctor.Fees,
			},
			Amount:    doctor.Fees,
			CreatedAt: e.now(),
		}
		return e.store.InsertAppointment(ctx, &appt)
	})
	if txErr != nil {
		return nil, e.classify(ctx, txErr, "booking failed")
	}

	e.logger(ctx).Info().
		Str("appointmentId", appt.ID.Hex()).
		Str("doctorId", req.DoctorID).
		Str("slotDate", appt.SlotDate).
		Str("slotTime", appt.SlotTime).
		Msg("appointment booked")

	return &Confirmation{
		AppointmentID: appt.ID.Hex(),
		DoctorName:    appt.Doctor.Name,
		Speciality:    appt.Doctor.Speciality,
		SlotDate:      appt.SlotDate,
		SlotTime:      appt.SlotTime,
		Fees:          appt.Amount,
		Status:        models.StatusConfirmed,
	}, nil
}

// Cancel reverses a booking on behalf of a patient, doctor or admin. The
// appointment flip and the ledger release run in one transaction. A doctor
// asking about another doctor's appointment gets NotFound, not Forbidden,
// so the appointment's existence is not disclosed.
func (e *Engine) Cancel(ctx context.Context, role, actorID, appointmentID, reason string) (*CancelResult, error) {
	apptID, err := primitive.ObjectIDFromHex(appointmentID)
	if err != nil {
		return nil, newErr(KindInvalidInput, "Invalid appointment id")
	}

	var appt *models.Appointment
	txErr := e.store.WithTransaction(ctx, func(ctx context.Context) error {
		appt, err = e.store.FindAppointment(ctx, apptID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return newErr(KindNotFound, "Appointment not found")
			}
			return err
		}

		switch role {
		case models.RolePatient:
			if appt.PatientID.Hex() != actorID {
				return newErr(KindForbidden, "You can only cancel your own appointments")
			}
		case models.RoleDoctor:
			if appt.DoctorID.Hex() != actorID {
				return newErr(KindNotFound, "Appointment not found")
			}
		case models.RoleAdmin:
			// No ownership check.
		default:
			return newErr(KindForbidden, "Unknown actor role")
		}

		if appt.Cancelled {
			return newErr(KindAlreadyCancelled, "Appointment is already cancelled")
		}
		if appt.IsCompleted {
			return newErr(KindConflict, "Cannot cancel a completed appointment")
		}

		if reason == "" {
			reason = defaultReason(role)
		}
		flipped, err := e.store.MarkCancelled(ctx, apptID, role, reason, e.now())
		if err != nil {
			return err
		}
		if !flipped {
			// A racing cancel or complete committed first.
			return newErr(KindConflict, "Appointment is no longer pending")
		}
		return e.store.ReleaseSlot(ctx, appt.DoctorID, appt.SlotDate, appt.SlotTime)
	})
	if txErr != nil {
		return nil, e.classify(ctx, txErr, "cancellation failed")
	}

	e.logger(ctx).Info().
		Str("appointmentId", appointmentID).
		Str("cancelledBy", role).
		Str("slotDate", appt.SlotDate).
		Str("slotTime", appt.SlotTime).
		Msg("appointment cancelled")

	return &CancelResult{
		Message:       "Appointment cancelled",
		AppointmentID: appointmentID,
		PatientName:   appt.Patient.Name,
		DoctorID:      appt.DoctorID.Hex(),
		DoctorName:    appt.Doctor.Name,
		SlotDate:      appt.SlotDate,
		SlotTime:      appt.SlotTime,
		CancelledBy:   role,
		Reason:        reason,
		PatientPhone:  appt.Patient.Phone,
	}, nil
}

// Complete marks an appointment completed. Doctor-only; the owning doctor is
// the only actor allowed to see the appointment at all.
func (e *Engine) Complete(ctx context.Context, doctorID, appointmentID string) error {
	apptID, err := primitive.ObjectIDFromHex(appointmentID)
	if err != nil {
		return newErr(KindInvalidInput, "Invalid appointment id")
	}

	txErr := e.store.WithTransaction(ctx, func(ctx context.Context) error {
		appt, err := e.store.FindAppointment(ctx, apptID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return newErr(KindNotFound, "Appointment not found")
			}
			return err
		}
		if appt.DoctorID.Hex() != doctorID {
			return newErr(KindNotFound, "Appointment not found")
		}
		if appt.Cancelled {
			return newErr(KindConflict, "Cannot complete a cancelled appointment")
		}
		if appt.IsCompleted {
			return newErr(KindConflict, "Appointment is already completed")
		}
		flipped, err := e.store.MarkCompleted(ctx, apptID)
		if err != nil {
			return err
		}
		if !flipped {
			return newErr(KindConflict, "Appointment is no longer pending")
		}
		return nil
	})
	if txErr != nil {
		return e.classify(ctx, txErr, "completion failed")
	}

	e.logger(ctx).Info().Str("appointmentId", appointmentID).Msg("appointment completed")
	return nil
}

// AvailableSlots returns the day's grid minus the doctor's booked times for
// the given date.
func (e *Engine) AvailableSlots(ctx context.Context, doctorID, date string) ([]string, error) {
	docID, err := primitive.ObjectIDFromHex(doctorID)
	if err != nil {
		return nil, newErr(KindInvalidInput, "Invalid doctor id")
	}
	slotDate, ok := calendar.ParseDate(date)
	if !ok || !calendar.IsValidDate(slotDate) {
		return nil, newErr(KindInvalidInput, "Invalid appointment date, bookings are accepted from today up to 3 months ahead")
	}

	doctor, err := e.store.FindDoctor(ctx, docID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, newErr(KindNotFound, "Doctor not found")
		}
		return nil, e.classify(ctx, err, "slot lookup failed")
	}

	free := make([]string, 0, 16)
	for _, t := range calendar.DaySlots() {
		if !doctor.SlotTaken(slotDate, t) {
			free = append(free, t)
		}
	}
	return free, nil
}

func defaultReason(role string) string {
	switch role {
	case models.RoleDoctor:
		return reasonDoctor
	case models.RoleAdmin:
		return reasonAdmin
	default:
		return reasonPatient
	}
}

// classify maps raw store failures onto the error taxonomy. Business-rule
// errors pass through untouched; transient transaction errors become
// TransactionFailure so callers know a retry is safe; a duplicate-key hit on
// the appointments index is the storage-level double-booking backstop.
func (e *Engine) classify(ctx context.Context, err error, msg string) error {
	var be *Error
	if errors.As(err, &be) {
		return be
	}
	if mongo.IsDuplicateKeyError(err) {
		return wrapErr(KindConflict, "Slot already booked", err)
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) &&
		(ce.HasErrorLabel("TransientTransactionError") || ce.HasErrorLabel("UnknownTransactionCommitResult")) {
		e.logger(ctx).Warn().Err(err).Msg(msg)
		return wrapErr(KindTransactionFailure, "Could not commit, please retry", err)
	}
	e.logger(ctx).Error().Err(err).Msg(msg)
	return wrapErr(KindInternal, "Something went wrong", err)
}
