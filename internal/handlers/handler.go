package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/docpoint/appointment-api/internal/booking"
	"github.com/docpoint/appointment-api/internal/services"
	"github.com/docpoint/appointment-api/internal/store"
)

// Handler bundles everything the HTTP layer needs: the booking engine and
// store for the appointment core, direct database access for the plain CRUD
// endpoints, and the side-effect services. DB is nil when running on the
// in-memory store.
type Handler struct {
	DB            *mongo.Database
	Store         store.Store
	Engine        *booking.Engine
	Notifications *services.NotificationService
	SlotCache     *services.SlotCache
	Log           zerolog.Logger
}

func NewHandler(db *mongo.Database, st store.Store, engine *booking.Engine, notifications *services.NotificationService, cache *services.SlotCache, log zerolog.Logger) *Handler {
	return &Handler{
		DB:            db,
		Store:         st,
		Engine:        engine,
		Notifications: notifications,
		SlotCache:     cache,
		Log:           log,
	}
}

// statusForKind maps the booking error taxonomy onto HTTP status codes.
func statusForKind(k booking.Kind) int {
	switch k {
	case booking.KindInvalidInput, booking.KindUnavailable, booking.KindAlreadyCancelled:
		return http.StatusBadRequest
	case booking.KindForbidden:
		return http.StatusForbidden
	case booking.KindNotFound:
		return http.StatusNotFound
	case booking.KindConflict:
		return http.StatusConflict
	case booking.KindTransactionFailure:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondError renders a typed engine failure. Internal causes stay in the
// logs; the client only ever sees the stable kind and message.
func (h *Handler) respondError(c *gin.Context, err error) {
	kind := booking.KindOf(err)
	message := "Something went wrong"

	var be *booking.Error
	if errors.As(err, &be) {
		message = be.Message
	}
	if kind == booking.KindInternal {
		h.Log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("request failed")
	}

	c.JSON(statusForKind(kind), gin.H{
		"success": false,
		"error":   gin.H{"kind": kind, "message": message},
	})
}
