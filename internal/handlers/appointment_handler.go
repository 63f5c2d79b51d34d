package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/docpoint/appointment-api/internal/booking"
	"github.com/docpoint/appointment-api/internal/calendar"
	"github.com/docpoint/appointment-api/internal/middleware"
	"github.com/docpoint/appointment-api/internal/models"
	"github.com/docpoint/appointment-api/internal/store"
)

type bookAppointmentRequest struct {
	DoctorID  string `json:"doctorId" binding:"required"`
	PatientID string `json:"patientId" binding:"required"`
	SlotDate  string `json:"slotDate" binding:"required"`
	SlotTime  string `json:"slotTime" binding:"required"`
}

// BookAppointment reserves a slot for the authenticated patient.
func (h *Handler) BookAppointment(c *gin.Context) {
	var req bookAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	conf, err := h.Engine.Book(c.Request.Context(), c.GetString(middleware.CtxUserID), booking.BookRequest{
		DoctorID:  req.DoctorID,
		PatientID: req.PatientID,
		SlotDate:  req.SlotDate,
		SlotTime:  req.SlotTime,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.SlotCache.Invalidate(c.Request.Context(), req.DoctorID, conf.SlotDate)
	h.notifyBooked(c.Request.Context(), conf.AppointmentID)

	c.JSON(http.StatusCreated, gin.H{"success": true, "appointment": conf})
}

// notifyBooked looks the fresh appointment up and fires the confirmation
// SMS. Lookup failures only cost the notification.
func (h *Handler) notifyBooked(ctx context.Context, appointmentID string) {
	id, err := primitive.ObjectIDFromHex(appointmentID)
	if err != nil {
		return
	}
	appt, err := h.Store.FindAppointment(ctx, id)
	if err != nil {
		h.Log.Warn().Err(err).Msg("could not load appointment for notification")
		return
	}
	h.Notifications.SendBookingConfirmation(appt)
}

type cancelAppointmentRequest struct {
	AppointmentID string `json:"appointmentId" binding:"required"`
	Reason        string `json:"reason"`
}

// CancelMyAppointment cancels one of the authenticated patient's bookings.
func (h *Handler) CancelMyAppointment(c *gin.Context) {
	var req cancelAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	res, err := h.Engine.Cancel(c.Request.Context(), models.RolePatient, c.GetString(middleware.CtxUserID), req.AppointmentID, req.Reason)
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.SlotCache.Invalidate(c.Request.Context(), res.DoctorID, res.SlotDate)
	h.Notifications.SendCancellationNotice(res.PatientPhone, res.DoctorName, res.SlotDate, res.SlotTime, res.Reason)

	c.JSON(http.StatusOK, gin.H{"success": true, "message": res.Message})
}

// ListMyAppointments returns the authenticated patient's appointment
// history, newest first.
func (h *Handler) ListMyAppointments(c *gin.Context) {
	patientID, err := primitive.ObjectIDFromHex(c.GetString(middleware.CtxUserID))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Invalid user id in token"})
		return
	}

	appts, err := h.Store.ListAppointments(c.Request.Context(), store.AppointmentFilter{PatientID: patientID})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "appointments": appts})
}

// GetAvailableSlots lists the free times for a doctor on a date: the day's
// grid minus the doctor's booked ledger, served from cache when possible.
// The date is canonicalized before the cache is touched, so a legacy-form
// query hits the same key that bookings and cancellations invalidate.
func (h *Handler) GetAvailableSlots(c *gin.Context) {
	doctorID := c.Param("id")

	slotDate, ok := calendar.ParseDate(c.Query("date"))
	if !ok {
		h.respondError(c, &booking.Error{
			Kind:    booking.KindInvalidInput,
			Message: "Invalid appointment date, bookings are accepted from today up to 3 months ahead",
		})
		return
	}

	if slots, ok := h.SlotCache.Get(c.Request.Context(), doctorID, slotDate); ok {
		c.JSON(http.StatusOK, gin.H{"success": true, "date": slotDate, "slots": slots, "cached": true})
		return
	}

	slots, err := h.Engine.AvailableSlots(c.Request.Context(), doctorID, slotDate)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.SlotCache.Set(c.Request.Context(), doctorID, slotDate, slots)

	c.JSON(http.StatusOK, gin.H{"success": true, "date": slotDate, "slots": slots})
}
