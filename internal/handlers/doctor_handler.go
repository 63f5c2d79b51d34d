package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/docpoint/appointment-api/internal/middleware"
	"github.com/docpoint/appointment-api/internal/models"
	"github.com/docpoint/appointment-api/internal/store"
)

// ListDoctors is the public directory of doctors. Password hashes are
// stripped by the model's JSON tags; the ledger is included so clients can
// grey out taken slots without a second round trip.
func (h *Handler) ListDoctors(c *gin.Context) {
	filter := bson.M{}
	if spec := c.Query("speciality"); spec != "" {
		filter["speciality"] = spec
	}

	opts := options.Find().SetSort(bson.D{{Key: "fullName", Value: 1}})
	cursor, err := h.DB.Collection("doctors").Find(context.TODO(), filter, opts)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to retrieve doctors"})
		return
	}
	defer cursor.Close(context.TODO())

	var doctors []models.Doctor
	if err := cursor.All(context.TODO(), &doctors); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to decode doctors"})
		return
	}
	if doctors == nil {
		doctors = make([]models.Doctor, 0)
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "doctors": doctors})
}

// ListDoctorAppointments returns the authenticated doctor's appointments.
func (h *Handler) ListDoctorAppointments(c *gin.Context) {
	doctorID, err := primitive.ObjectIDFromHex(c.GetString(middleware.CtxUserID))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Invalid doctor id in token"})
		return
	}

	filter := store.AppointmentFilter{DoctorID: doctorID}
	if date := c.Query("date"); date != "" {
		filter.SlotDate = date
	}
	if c.Query("active") == "true" {
		filter.ActiveOnly = true
	}

	appts, err := h.Store.ListAppointments(c.Request.Context(), filter)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "appointments": appts})
}

// CompleteAppointment marks one of the doctor's own appointments completed.
func (h *Handler) CompleteAppointment(c *gin.Context) {
	var req struct {
		AppointmentID string `json:"appointmentId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	if err := h.Engine.Complete(c.Request.Context(), c.GetString(middleware.CtxUserID), req.AppointmentID); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Appointment completed"})
}

// CancelDoctorAppointment cancels one of the doctor's own appointments.
func (h *Handler) CancelDoctorAppointment(c *gin.Context) {
	var req cancelAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	res, err := h.Engine.Cancel(c.Request.Context(), models.RoleDoctor, c.GetString(middleware.CtxUserID), req.AppointmentID, req.Reason)
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.SlotCache.Invalidate(c.Request.Context(), res.DoctorID, res.SlotDate)
	h.Notifications.SendCancellationNotice(res.PatientPhone, res.DoctorName, res.SlotDate, res.SlotTime, res.Reason)

	c.JSON(http.StatusOK, gin.H{"success": true, "message": res.Message})
}

// SetAvailability toggles whether the authenticated doctor accepts new
// bookings. Existing appointments are untouched.
func (h *Handler) SetAvailability(c *gin.Context) {
	doctorID, err := primitive.ObjectIDFromHex(c.GetString(middleware.CtxUserID))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Invalid doctor id in token"})
		return
	}

	var req struct {
		Available *bool `json:"available" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "available is required"})
		return
	}

	res, err := h.DB.Collection("doctors").UpdateOne(context.TODO(),
		bson.M{"_id": doctorID},
		bson.M{"$set": bson.M{"available": *req.Available}},
	)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to update availability"})
		return
	}
	if res.MatchedCount == 0 {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Doctor not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "available": *req.Available})
}
