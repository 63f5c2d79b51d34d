package main

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/docpoint/appointment-api/internal/booking"
	"github.com/docpoint/appointment-api/internal/handlers"
	"github.com/docpoint/appointment-api/internal/middleware"
	"github.com/docpoint/appointment-api/internal/models"
	"github.com/docpoint/appointment-api/internal/services"
	"github.com/docpoint/appointment-api/internal/store"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	if err := godotenv.Load(); err != nil {
		logger.Info().Msg("no .env file found, relying on environment variables")
	}
	if os.Getenv("JWT_SECRET") == "" {
		logger.Fatal().Msg("JWT_SECRET is not set")
	}

	// --- Database ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(os.Getenv("MONGO_URI")))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to MongoDB")
	}
	defer client.Disconnect(context.Background())

	st := store.NewMongo(client, os.Getenv("MONGO_DATABASE"))
	if err := st.EnsureIndexes(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to create indexes")
	}
	logger.Info().Msg("connected to MongoDB")

	// --- Services ---
	engine := booking.NewEngine(st, logger)
	notifications := services.NewNotificationService(logger)
	slotCache := services.NewSlotCache(os.Getenv("REDIS_ADDR"), logger)

	h := handlers.NewHandler(st.Database(), st, engine, notifications, slotCache, logger)

	// --- Router ---
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(logger))

	origins := []string{"http://localhost:5173"}
	if env := os.Getenv("CORS_ORIGINS"); env != "" {
		origins = strings.Split(env, ",")
	}
	r.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
	}))

	// --- Routes ---
	auth := r.Group("/auth")
	{
		auth.POST("/register", h.RegisterPatient)
		auth.POST("/login", h.LoginPatient)
		auth.POST("/doctor/login", h.LoginDoctor)
		auth.POST("/admin/login", h.LoginAdmin)
	}

	// Public directory.
	r.GET("/api/doctors", h.ListDoctors)

	patient := r.Group("/api/patient")
	patient.Use(middleware.Auth(), middleware.RequireRole(models.RolePatient))
	{
		patient.POST("/appointments", h.BookAppointment)
		patient.GET("/appointments", h.ListMyAppointments)
		patient.POST("/appointments/cancel", h.CancelMyAppointment)
		patient.GET("/doctors/:id/slots", h.GetAvailableSlots)
		patient.GET("/profile", h.GetProfile)
		patient.PUT("/profile", h.UpdateProfile)
	}

	doctor := r.Group("/api/doctor")
	doctor.Use(middleware.Auth(), middleware.RequireRole(models.RoleDoctor))
	{
		doctor.GET("/appointments", h.ListDoctorAppointments)
		doctor.POST("/appointments/complete", h.CompleteAppointment)
		doctor.POST("/appointments/cancel", h.CancelDoctorAppointment)
		doctor.PATCH("/availability", h.SetAvailability)
	}

	admin := r.Group("/api/admin")
	admin.Use(middleware.Auth(), middleware.RequireRole(models.RoleAdmin))
	{
		admin.POST("/doctors", h.AddDoctor)
		admin.PATCH("/doctors/:id/availability", h.SetDoctorAvailability)
		admin.GET("/appointments", h.ListAllAppointments)
		admin.POST("/appointments/cancel", h.CancelAnyAppointment)
		admin.GET("/dashboard", h.Dashboard)
	}

	port := os.Getenv("API_PORT")
	if port == "" {
		port = "8080"
	}
	logger.Info().Str("port", port).Msg("starting server")
	if err := r.Run(":" + port); err != nil {
		logger.Fatal().Err(err).Msg("server exited")
	}
}
