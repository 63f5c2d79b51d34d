package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/docpoint/appointment-api/internal/models"
)

// NotificationService sends appointment SMS notices through the Textbelt
// HTTP API. Delivery is fire-and-forget; a failed send never fails the
// request that triggered it.
type NotificationService struct {
	log zerolog.Logger
}

func NewNotificationService(log zerolog.Logger) *NotificationService {
	return &NotificationService{log: log}
}

// SendBookingConfirmation notifies the patient that the booking went through.
func (s *NotificationService) SendBookingConfirmation(appt *models.Appointment) {
	if appt.Patient.Phone == "" {
		s.log.Debug().Msg("confirmation SMS skipped, patient has no phone number")
		return
	}
	body := fmt.Sprintf(
		"Appointment confirmed with %s (%s) on %s at %s.",
		appt.Doctor.Name, appt.Doctor.Speciality, appt.SlotDate, appt.SlotTime,
	)
	go s.sendSMS(appt.Patient.Phone, body)
}

// SendCancellationNotice notifies the patient that the appointment was
// cancelled, by whom, and why.
func (s *NotificationService) SendCancellationNotice(phone, doctorName, slotDate, slotTime, reason string) {
	if phone == "" {
		s.log.Debug().Msg("cancellation SMS skipped, patient has no phone number")
		return
	}
	body := fmt.Sprintf(
		"Your appointment with %s on %s at %s was cancelled. Reason: %s",
		doctorName, slotDate, slotTime, reason,
	)
	go s.sendSMS(phone, body)
}

func (s *NotificationService) sendSMS(phone, message string) {
	postBody, _ := json.Marshal(map[string]string{
		"phone":   phone,
		"message": message,
		"key":     os.Getenv("TEXTBELT_API_KEY"),
	})

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Post("https://textbelt.com/text", "application/json", bytes.NewBuffer(postBody))
	if err != nil {
		s.log.Warn().Err(err).Str("phone", phone).Msg("textbelt request failed")
		return
	}
	defer resp.Body.Close()

	var result struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		s.log.Warn().Err(err).Msg("textbelt response unreadable")
		return
	}
	if !result.Success {
		s.log.Warn().Str("phone", phone).Str("reason", result.Error).Msg("SMS not delivered")
		return
	}
	s.log.Info().Str("phone", phone).Msg("SMS delivered")
}
