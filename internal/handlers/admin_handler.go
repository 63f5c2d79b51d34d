package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/docpoint/appointment-api/internal/models"
	"github.com/docpoint/appointment-api/internal/store"
	"github.com/docpoint/appointment-api/internal/utils"
)

type addDoctorRequest struct {
	FullName   string `json:"fullName" binding:"required"`
	Email      string `json:"email" binding:"required,email"`
	Password   string `json:"password" binding:"required,min=8"`
	Speciality string `json:"speciality" binding:"required"`
	Degree     string `json:"degree" binding:"required"`
	Experience int    `json:"experience"`
	Fees       int64  `json:"fees" binding:"required,gt=0"`
}

// AddDoctor onboards a doctor. New doctors start available with an empty
// ledger.
func (h *Handler) AddDoctor(c *gin.Context) {
	var req addDoctorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	hashed, err := utils.HashPassword(req.Password)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to hash password"})
		return
	}

	doctor := models.Doctor{
		ID:          primitive.NewObjectID(),
		FullName:    req.FullName,
		Email:       req.Email,
		Password:    hashed,
		Speciality:  req.Speciality,
		Degree:      req.Degree,
		Experience:  req.Experience,
		Fees:        req.Fees,
		Available:   true,
		SlotsBooked: make(map[string][]string),
	}

	if _, err := h.DB.Collection("doctors").InsertOne(context.TODO(), doctor); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			c.JSON(http.StatusConflict, gin.H{"success": false, "error": "A doctor with this email already exists"})
			return
		}
		h.Log.Error().Err(err).Msg("doctor onboarding failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to create doctor"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "doctor": doctor})
}

// SetDoctorAvailability lets the admin toggle any doctor's availability.
func (h *Handler) SetDoctorAvailability(c *gin.Context) {
	doctorID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid doctor id"})
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

// ListAllAppointments returns every appointment, newest first, optionally
// filtered by doctor or date.
func (h *Handler) ListAllAppointments(c *gin.Context) {
	filter := store.AppointmentFilter{}
	if id := c.Query("doctorId"); id != "" {
		doctorID, err := primitive.ObjectIDFromHex(id)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid doctor id"})
			return
		}
		filter.DoctorID = doctorID
	}
	if date := c.Query("date"); date != "" {
		filter.SlotDate = date
	}

	appts, err := h.Store.ListAppointments(c.Request.Context(), filter)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "appointments": appts})
}

// CancelAnyAppointment is the admin cancellation path. Unlike the patient
// and doctor paths it returns the full structured summary of what was freed.
func (h *Handler) CancelAnyAppointment(c *gin.Context) {
	var req cancelAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	res, err := h.Engine.Cancel(c.Request.Context(), models.RoleAdmin, "admin", req.AppointmentID, req.Reason)
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.SlotCache.Invalidate(c.Request.Context(), res.DoctorID, res.SlotDate)
	h.Notifications.SendCancellationNotice(res.PatientPhone, res.DoctorName, res.SlotDate, res.SlotTime, res.Reason)

	c.JSON(http.StatusOK, gin.H{"success": true, "message": res.Message, "cancellation": res})
}

// Dashboard aggregates headline counts and the latest bookings.
func (h *Handler) Dashboard(c *gin.Context) {
	ctx := context.TODO()

	patients, err := h.DB.Collection("users").CountDocuments(ctx, bson.M{})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to aggregate stats"})
		return
	}
	doctors, err := h.DB.Collection("doctors").CountDocuments(ctx, bson.M{})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to aggregate stats"})
		return
	}
	appointments, err := h.DB.Collection("appointments").CountDocuments(ctx, bson.M{})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to aggregate stats"})
		return
	}

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}).SetLimit(5)
	cursor, err := h.DB.Collection("appointments").Find(ctx, bson.M{}, opts)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to load latest bookings"})
		return
	}
	defer cursor.Close(ctx)

	var latest []models.Appointment
	if err := cursor.All(ctx, &latest); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to decode latest bookings"})
		return
	}
	if latest == nil {
		latest = make([]models.Appointment, 0)
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"stats": gin.H{
			"patients":     patients,
			"doctors":      doctors,
			"appointments": appointments,
		},
		"latestAppointments": latest,
	})
}
