package booking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/docpoint/appointment-api/internal/calendar"
	"github.com/docpoint/appointment-api/internal/models"
	"github.com/docpoint/appointment-api/internal/store"
)

func dateFromNow(days int) string {
	return time.Now().AddDate(0, 0, days).Format(calendar.DateLayout)
}

func seedPatient(mem *store.Memory) models.User {
	p := models.User{
		ID:       primitive.NewObjectID(),
		FullName: "Jordan Rivers",
		Email:    "jordan@example.com",
		Phone:    "+15550001111",
		Address:  "12 Elm Street",
	}
	mem.AddUser(p)
	return p
}

func seedDoctor(mem *store.Memory) models.Doctor {
	d := models.Doctor{
		ID:         primitive.NewObjectID(),
		FullName:   "Dr. Asha Rao",
		Email:      "asha.rao@example.com",
		Speciality: "Dermatology",
		Degree:     "MD",
		Experience: 8,
		Fees:       5000,
		Available:  true,
	}
	mem.AddDoctor(d)
	return d
}

func newTestEngine(t *testing.T) (*Engine, *store.Memory, models.User, models.Doctor) {
	t.Helper()
	mem := store.NewMemory()
	e := NewEngine(mem, zerolog.Nop())
	return e, mem, seedPatient(mem), seedDoctor(mem)
}

func bookReq(patient models.User, doctor models.Doctor, date, slot string) BookRequest {
	return BookRequest{
		DoctorID:  doctor.ID.Hex(),
		PatientID: patient.ID.Hex(),
		SlotDate:  date,
		SlotTime:  slot,
	}
}

// requireConsistent asserts the core invariant: the doctor's ledger equals
// the set of slot times of all non-cancelled appointments for that doctor.
func requireConsistent(t *testing.T, mem *store.Memory, doctorID primitive.ObjectID) {
	t.Helper()
	ctx := context.Background()

	doctor, err := mem.FindDoctor(ctx, doctorID)
	require.NoError(t, err)
	appts, err := mem.ListAppointments(ctx, store.AppointmentFilter{DoctorID: doctorID})
	require.NoError(t, err)

	want := make(map[string]map[string]int)
	for _, a := range appts {
		if a.Cancelled {
			continue
		}
		if want[a.SlotDate] == nil {
			want[a.SlotDate] = make(map[string]int)
		}
		want[a.SlotDate][a.SlotTime]++
	}

	got := make(map[string]map[string]int)
	for date, times := range doctor.SlotsBooked {
		require.NotEmpty(t, times, "ledger must not keep empty date keys")
		got[date] = make(map[string]int)
		for _, s := range times {
			got[date][s]++
		}
	}

	assert.Equal(t, want, got, "ledger diverged from appointment store")
	for _, times := range want {
		for slot, n := range times {
			assert.Equal(t, 1, n, "more than one active appointment for slot %s", slot)
		}
	}
}

func TestBook_Success(t *testing.T) {
	e, mem, patient, doctor := newTestEngine(t)
	tomorrow := dateFromNow(1)

	conf, err := e.Book(context.Background(), patient.ID.Hex(), bookReq(patient, doctor, tomorrow, "09:00"))
	require.NoError(t, err)

	assert.Equal(t, "confirmed", conf.Status)
	assert.Equal(t, doctor.FullName, conf.DoctorName)
	assert.Equal(t, "Dermatology", conf.Speciality)
	assert.Equal(t, int64(5000), conf.Fees)
	assert.Equal(t, tomorrow, conf.SlotDate)
	assert.Equal(t, "09:00", conf.SlotTime)
	assert.NotEmpty(t, conf.AppointmentID)

	d, err := mem.FindDoctor(context.Background(), doctor.ID)
	require.NoError(t, err)
	assert.Contains(t, d.SlotsBooked[tomorrow], "09:00")

	apptID, err := primitive.ObjectIDFromHex(conf.AppointmentID)
	require.NoError(t, err)
	appt, err := mem.FindAppointment(context.Background(), apptID)
	require.NoError(t, err)
	assert.Equal(t, patient.FullName, appt.Patient.Name)
	assert.Equal(t, patient.Address, appt.Patient.Address)
	assert.Equal(t, doctor.FullName, appt.Doctor.Name)
	assert.Equal(t, int64(5000), appt.Amount)
	assert.False(t, appt.Cancelled)
	assert.False(t, appt.Payment)
	assert.False(t, appt.IsCompleted)
	assert.False(t, appt.CreatedAt.IsZero())
	assert.Equal(t, models.StatusPending, appt.Status())

	requireConsistent(t, mem, doctor.ID)
}

func TestBook_SnapshotIsImmutable(t *testing.T) {
	e, mem, patient, doctor := newTestEngine(t)

	conf, err := e.Book(context.Background(), patient.ID.Hex(), bookReq(patient, doctor, dateFromNow(1), "10:00"))
	require.NoError(t, err)

	// The source records change after booking; the snapshot must not.
	patient.FullName = "Renamed Patient"
	mem.AddUser(patient)
	doctor.Fees = 9999
	mem.AddDoctor(doctor)

	apptID, _ := primitive.ObjectIDFromHex(conf.AppointmentID)
	appt, err := mem.FindAppointment(context.Background(), apptID)
	require.NoError(t, err)
	assert.Equal(t, "Jordan Rivers", appt.Patient.Name)
	assert.Equal(t, int64(5000), appt.Doctor.Fees)
	assert.Equal(t, int64(5000), appt.Amount)
}

func TestBook_ForbiddenForOtherPatient(t *testing.T) {
	e, _, patient, doctor := newTestEngine(t)

	_, err := e.Book(context.Background(), primitive.NewObjectID().Hex(), bookReq(patient, doctor, dateFromNow(1), "09:00"))
	require.Error(t, err)
	assert.Equal(t, KindForbidden, KindOf(err))
}

func TestBook_MissingFields(t *testing.T) {
	e, _, patient, doctor := newTestEngine(t)

	req := bookReq(patient, doctor, dateFromNow(1), "09:00")
	req.SlotTime = ""
	_, err := e.Book(context.Background(), patient.ID.Hex(), req)
	assert.Equal(t, KindInvalidInput, KindOf(err))
}

func TestBook_MalformedIDs(t *testing.T) {
	e, _, patient, doctor := newTestEngine(t)

	req := bookReq(patient, doctor, dateFromNow(1), "09:00")
	req.DoctorID = "not-an-object-id"
	_, err := e.Book(context.Background(), patient.ID.Hex(), req)
	assert.Equal(t, KindInvalidInput, KindOf(err))
}

func TestBook_StaleDate(t *testing.T) {
	e, _, patient, doctor := newTestEngine(t)

	_, err := e.Book(context.Background(), patient.ID.Hex(), bookReq(patient, doctor, dateFromNow(-1), "09:00"))
	require.Error(t, err)
	assert.Equal(t, KindInvalidInput, KindOf(err))
	assert.Contains(t, err.Error(), "Invalid appointment date")
}

func TestBook_OffGridTime(t *testing.T) {
	e, _, patient, doctor := newTestEngine(t)

	_, err := e.Book(context.Background(), patient.ID.Hex(), bookReq(patient, doctor, dateFromNow(1), "09:15"))
	require.Error(t, err)
	assert.Equal(t, KindInvalidInput, KindOf(err))
	assert.Contains(t, err.Error(), "Invalid time slot")
}

func TestBook_LegacyDateForm(t *testing.T) {
	e, mem, patient, doctor := newTestEngine(t)

	tomorrow := time.Now().AddDate(0, 0, 1)
	conf, err := e.Book(context.Background(), patient.ID.Hex(),
		bookReq(patient, doctor, tomorrow.Format("02_01_2006"), "11:30"))
	require.NoError(t, err)
	assert.Equal(t, tomorrow.Format(calendar.DateLayout), conf.SlotDate, "stored in canonical form")

	requireConsistent(t, mem, doctor.ID)
}

func TestBook_UnknownEntities(t *testing.T) {
	e, _, patient, doctor := newTestEngine(t)

	req := bookReq(patient, doctor, dateFromNow(1), "09:00")
	req.PatientID = primitive.NewObjectID().Hex()
	_, err := e.Book(context.Background(), req.PatientID, req)
	assert.Equal(t, KindNotFound, KindOf(err))

	req = bookReq(patient, doctor, dateFromNow(1), "09:00")
	req.DoctorID = primitive.NewObjectID().Hex()
	_, err = e.Book(context.Background(), patient.ID.Hex(), req)
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestBook_UnavailableDoctor(t *testing.T) {
	e, mem, patient, doctor := newTestEngine(t)
	doctor.Available = false
	mem.AddDoctor(doctor)

	_, err := e.Book(context.Background(), patient.ID.Hex(), bookReq(patient, doctor, dateFromNow(1), "09:00"))
	require.Error(t, err)
	assert.Equal(t, KindUnavailable, KindOf(err))

	// No partial state.
	d, _ := mem.FindDoctor(context.Background(), doctor.ID)
	assert.Empty(t, d.SlotsBooked)
	appts, _ := mem.ListAppointments(context.Background(), store.AppointmentFilter{DoctorID: doctor.ID})
	assert.Empty(t, appts)
}

func TestBook_SlotTaken(t *testing.T) {
	e, mem, patient, doctor := newTestEngine(t)
	other := models.User{ID: primitive.NewObjectID(), FullName: "Sam Okoro", Email: "sam@example.com"}
	mem.AddUser(other)
	tomorrow := dateFromNow(1)

	_, err := e.Book(context.Background(), patient.ID.Hex(), bookReq(patient, doctor, tomorrow, "14:00"))
	require.NoError(t, err)

	_, err = e.Book(context.Background(), other.ID.Hex(), bookReq(other, doctor, tomorrow, "14:00"))
	require.Error(t, err)
	assert.Equal(t, KindConflict, KindOf(err))

	requireConsistent(t, mem, doctor.ID)
}

func TestBook_DuplicateBookingGuard(t *testing.T) {
	e, mem, patient, doctor := newTestEngine(t)
	tomorrow := dateFromNow(1)

	// Simulate ledger/store divergence: an active appointment exists while
	// the ledger lost its entry. The defensive duplicate check must still
	// refuse the booking.
	require.NoError(t, mem.InsertAppointment(context.Background(), &models.Appointment{
		ID:        primitive.NewObjectID(),
		PatientID: patient.ID,
		DoctorID:  doctor.ID,
		SlotDate:  tomorrow,
		SlotTime:  "15:30",
		CreatedAt: time.Now(),
	}))

	_, err := e.Book(context.Background(), patient.ID.Hex(), bookReq(patient, doctor, tomorrow, "15:30"))
	require.Error(t, err)
	assert.Equal(t, KindConflict, KindOf(err))
}

func TestBook_ConcurrentSameSlot(t *testing.T) {
	e, mem, _, doctor := newTestEngine(t)
	tomorrow := dateFromNow(1)

	const n = 16
	patients := make([]models.User, n)
	for i := range patients {
		patients[i] = models.User{ID: primitive.NewObjectID(), FullName: "Patient", Email: "p@example.com"}
		mem.AddUser(patients[i])
	}

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = e.Book(context.Background(), patients[i].ID.Hex(),
				bookReq(patients[i], doctor, tomorrow, "09:30"))
		}(i)
	}
	wg.Wait()

	var successes, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			successes++
		case KindOf(err) == KindConflict:
			conflicts++
		default:
			t.Fatalf("unexpected error kind: %v", err)
		}
	}
	assert.Equal(t, 1, successes, "exactly one booking must win")
	assert.Equal(t, n-1, conflicts)

	d, _ := mem.FindDoctor(context.Background(), doctor.ID)
	assert.Equal(t, []string{"09:30"}, d.SlotsBooked[tomorrow])
	requireConsistent(t, mem, doctor.ID)
}

func TestCancel_RoundTrip(t *testing.T) {
	e, mem, patient, doctor := newTestEngine(t)
	tomorrow := dateFromNow(1)
	ctx := context.Background()

	conf, err := e.Book(ctx, patient.ID.Hex(), bookReq(patient, doctor, tomorrow, "09:00"))
	require.NoError(t, err)

	res, err := e.Cancel(ctx, models.RolePatient, patient.ID.Hex(), conf.AppointmentID, "")
	require.NoError(t, err)
	assert.Equal(t, models.RolePatient, res.CancelledBy)
	assert.Equal(t, "Cancelled by patient", res.Reason)

	apptID, _ := primitive.ObjectIDFromHex(conf.AppointmentID)
	appt, err := mem.FindAppointment(ctx, apptID)
	require.NoError(t, err)
	assert.True(t, appt.Cancelled)
	assert.Equal(t, models.RolePatient, appt.CancelledBy)
	assert.Equal(t, "Cancelled by patient", appt.CancellationReason)
	require.NotNil(t, appt.CancelledAt)
	assert.Equal(t, models.StatusCancelled, appt.Status())

	// Slot is free again, the date key is pruned, and rebooking succeeds.
	d, _ := mem.FindDoctor(ctx, doctor.ID)
	_, hasDate := d.SlotsBooked[tomorrow]
	assert.False(t, hasDate, "empty date entry must be pruned")

	free, err := e.AvailableSlots(ctx, doctor.ID.Hex(), tomorrow)
	require.NoError(t, err)
	assert.Contains(t, free, "09:00")

	_, err = e.Book(ctx, patient.ID.Hex(), bookReq(patient, doctor, tomorrow, "09:00"))
	require.NoError(t, err)
	requireConsistent(t, mem, doctor.ID)
}

func TestCancel_WrongPatient(t *testing.T) {
	e, mem, patient, doctor := newTestEngine(t)
	ctx := context.Background()

	conf, err := e.Book(ctx, patient.ID.Hex(), bookReq(patient, doctor, dateFromNow(1), "09:00"))
	require.NoError(t, err)

	_, err = e.Cancel(ctx, models.RolePatient, primitive.NewObjectID().Hex(), conf.AppointmentID, "")
	require.Error(t, err)
	assert.Equal(t, KindForbidden, KindOf(err))

	apptID, _ := primitive.ObjectIDFromHex(conf.AppointmentID)
	appt, _ := mem.FindAppointment(ctx, apptID)
	assert.False(t, appt.Cancelled, "appointment must be unchanged")
	requireConsistent(t, mem, doctor.ID)
}

func TestCancel_DoctorCannotSeeOthersAppointments(t *testing.T) {
	e, _, patient, doctor := newTestEngine(t)
	ctx := context.Background()

	conf, err := e.Book(ctx, patient.ID.Hex(), bookReq(patient, doctor, dateFromNow(1), "09:00"))
	require.NoError(t, err)

	// Another doctor must get NotFound, not Forbidden.
	_, err = e.Cancel(ctx, models.RoleDoctor, primitive.NewObjectID().Hex(), conf.AppointmentID, "")
	require.Error(t, err)
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestCancel_DoctorWithReason(t *testing.T) {
	e, mem, patient, doctor := newTestEngine(t)
	ctx := context.Background()

	conf, err := e.Book(ctx, patient.ID.Hex(), bookReq(patient, doctor, dateFromNow(1), "13:00"))
	require.NoError(t, err)

	res, err := e.Cancel(ctx, models.RoleDoctor, doctor.ID.Hex(), conf.AppointmentID, "Emergency surgery")
	require.NoError(t, err)
	assert.Equal(t, "Emergency surgery", res.Reason)

	apptID, _ := primitive.ObjectIDFromHex(conf.AppointmentID)
	appt, _ := mem.FindAppointment(ctx, apptID)
	assert.Equal(t, models.RoleDoctor, appt.CancelledBy)
	assert.Equal(t, "Emergency surgery", appt.CancellationReason)
}

func TestCancel_AdminSummary(t *testing.T) {
	e, mem, patient, doctor := newTestEngine(t)
	tomorrow := dateFromNow(1)
	ctx := context.Background()

	conf, err := e.Book(ctx, patient.ID.Hex(), bookReq(patient, doctor, tomorrow, "16:30"))
	require.NoError(t, err)

	res, err := e.Cancel(ctx, models.RoleAdmin, "admin", conf.AppointmentID, "")
	require.NoError(t, err)
	assert.Equal(t, conf.AppointmentID, res.AppointmentID)
	assert.Equal(t, patient.FullName, res.PatientName)
	assert.Equal(t, doctor.FullName, res.DoctorName)
	assert.Equal(t, tomorrow, res.SlotDate)
	assert.Equal(t, "16:30", res.SlotTime)
	assert.Equal(t, models.RoleAdmin, res.CancelledBy)
	assert.Equal(t, "Cancelled by admin", res.Reason)

	requireConsistent(t, mem, doctor.ID)
}

func TestCancel_AlreadyCancelled(t *testing.T) {
	e, mem, patient, doctor := newTestEngine(t)
	ctx := context.Background()

	conf, err := e.Book(ctx, patient.ID.Hex(), bookReq(patient, doctor, dateFromNow(1), "09:00"))
	require.NoError(t, err)

	_, err = e.Cancel(ctx, models.RolePatient, patient.ID.Hex(), conf.AppointmentID, "")
	require.NoError(t, err)

	// Second cancel reports AlreadyCancelled and must not touch the ledger
	// again (a new booking could hold the freed slot by now).
	_, err = e.Book(ctx, patient.ID.Hex(), bookReq(patient, doctor, dateFromNow(1), "09:00"))
	require.NoError(t, err)

	_, err = e.Cancel(ctx, models.RoleAdmin, "admin", conf.AppointmentID, "")
	require.Error(t, err)
	assert.Equal(t, KindAlreadyCancelled, KindOf(err))

	d, _ := mem.FindDoctor(ctx, doctor.ID)
	assert.Contains(t, d.SlotsBooked[dateFromNow(1)], "09:00", "rebooked slot must survive the repeat cancel")
	requireConsistent(t, mem, doctor.ID)
}

func TestCancel_CompletedAppointment(t *testing.T) {
	e, _, patient, doctor := newTestEngine(t)
	ctx := context.Background()

	conf, err := e.Book(ctx, patient.ID.Hex(), bookReq(patient, doctor, dateFromNow(1), "09:00"))
	require.NoError(t, err)
	require.NoError(t, e.Complete(ctx, doctor.ID.Hex(), conf.AppointmentID))

	for _, role := range []string{models.RolePatient, models.RoleDoctor, models.RoleAdmin} {
		actor := "admin"
		switch role {
		case models.RolePatient:
			actor = patient.ID.Hex()
		case models.RoleDoctor:
			actor = doctor.ID.Hex()
		}
		_, err = e.Cancel(ctx, role, actor, conf.AppointmentID, "")
		require.Error(t, err, "role %s", role)
		assert.Equal(t, KindConflict, KindOf(err), "role %s", role)
	}
}

func TestCancel_NotFound(t *testing.T) {
	e, _, patient, _ := newTestEngine(t)

	_, err := e.Cancel(context.Background(), models.RolePatient, patient.ID.Hex(), primitive.NewObjectID().Hex(), "")
	assert.Equal(t, KindNotFound, KindOf(err))

	_, err = e.Cancel(context.Background(), models.RolePatient, patient.ID.Hex(), "junk", "")
	assert.Equal(t, KindInvalidInput, KindOf(err))
}

func TestComplete_Guards(t *testing.T) {
	e, mem, patient, doctor := newTestEngine(t)
	ctx := context.Background()

	conf, err := e.Book(ctx, patient.ID.Hex(), bookReq(patient, doctor, dateFromNow(1), "12:00"))
	require.NoError(t, err)

	// Only the owning doctor may complete.
	err = e.Complete(ctx, primitive.NewObjectID().Hex(), conf.AppointmentID)
	assert.Equal(t, KindNotFound, KindOf(err))

	require.NoError(t, e.Complete(ctx, doctor.ID.Hex(), conf.AppointmentID))

	apptID, _ := primitive.ObjectIDFromHex(conf.AppointmentID)
	appt, _ := mem.FindAppointment(ctx, apptID)
	assert.True(t, appt.IsCompleted)
	assert.Equal(t, models.StatusCompleted, appt.Status())

	// Terminal: completing twice fails.
	err = e.Complete(ctx, doctor.ID.Hex(), conf.AppointmentID)
	assert.Equal(t, KindConflict, KindOf(err))

	// Completed appointments keep their ledger entry (slot stays consumed).
	d, _ := mem.FindDoctor(ctx, doctor.ID)
	assert.Contains(t, d.SlotsBooked[dateFromNow(1)], "12:00")
}

func TestComplete_CancelledAppointment(t *testing.T) {
	e, _, patient, doctor := newTestEngine(t)
	ctx := context.Background()

	conf, err := e.Book(ctx, patient.ID.Hex(), bookReq(patient, doctor, dateFromNow(1), "09:00"))
	require.NoError(t, err)
	_, err = e.Cancel(ctx, models.RolePatient, patient.ID.Hex(), conf.AppointmentID, "")
	require.NoError(t, err)

	err = e.Complete(ctx, doctor.ID.Hex(), conf.AppointmentID)
	require.Error(t, err)
	assert.Equal(t, KindConflict, KindOf(err))
}

func TestAvailableSlots(t *testing.T) {
	e, _, patient, doctor := newTestEngine(t)
	tomorrow := dateFromNow(1)
	ctx := context.Background()

	free, err := e.AvailableSlots(ctx, doctor.ID.Hex(), tomorrow)
	require.NoError(t, err)
	assert.Len(t, free, 16)

	_, err = e.Book(ctx, patient.ID.Hex(), bookReq(patient, doctor, tomorrow, "10:30"))
	require.NoError(t, err)

	free, err = e.AvailableSlots(ctx, doctor.ID.Hex(), tomorrow)
	require.NoError(t, err)
	assert.Len(t, free, 15)
	assert.NotContains(t, free, "10:30")

	_, err = e.AvailableSlots(ctx, doctor.ID.Hex(), dateFromNow(-2))
	assert.Equal(t, KindInvalidInput, KindOf(err))

	_, err = e.AvailableSlots(ctx, primitive.NewObjectID().Hex(), tomorrow)
	assert.Equal(t, KindNotFound, KindOf(err))
}

// Interleave bookings, cancellations and completions across two doctors and
// assert the ledger/store invariant at every step.
func TestLedgerStoreConsistency_Interleaved(t *testing.T) {
	e, mem, patient, docA := newTestEngine(t)
	docB := models.Doctor{
		ID: primitive.NewObjectID(), FullName: "Dr. Ben Ito", Email: "ben.ito@example.com",
		Speciality: "Cardiology", Degree: "MD", Experience: 12, Fees: 7000, Available: true,
	}
	mem.AddDoctor(docB)
	ctx := context.Background()

	check := func() {
		requireConsistent(t, mem, docA.ID)
		requireConsistent(t, mem, docB.ID)
	}

	a1, err := e.Book(ctx, patient.ID.Hex(), bookReq(patient, docA, dateFromNow(1), "09:00"))
	require.NoError(t, err)
	check()

	b1, err := e.Book(ctx, patient.ID.Hex(), bookReq(patient, docB, dateFromNow(1), "09:00"))
	require.NoError(t, err)
	check()

	a2, err := e.Book(ctx, patient.ID.Hex(), bookReq(patient, docA, dateFromNow(2), "16:00"))
	require.NoError(t, err)
	check()

	_, err = e.Cancel(ctx, models.RolePatient, patient.ID.Hex(), a1.AppointmentID, "")
	require.NoError(t, err)
	check()

	require.NoError(t, e.Complete(ctx, docB.ID.Hex(), b1.AppointmentID))
	check()

	_, err = e.Cancel(ctx, models.RoleAdmin, "admin", a2.AppointmentID, "Clinic closure")
	require.NoError(t, err)
	check()

	// Rebook the freed slots.
	_, err = e.Book(ctx, patient.ID.Hex(), bookReq(patient, docA, dateFromNow(1), "09:00"))
	require.NoError(t, err)
	check()
}

func TestClassify_StoreFailures(t *testing.T) {
	e, _, _, _ := newTestEngine(t)
	ctx := context.Background()

	t.Run("business errors pass through", func(t *testing.T) {
		in := newErr(KindForbidden, "You can only cancel your own appointments")
		out := e.classify(ctx, in, "cancellation failed")
		assert.Same(t, in, out.(*Error))
	})

	t.Run("transient transaction error is retryable", func(t *testing.T) {
		ce := mongo.CommandError{
			Code:    112,
			Message: "WriteConflict",
			Labels:  []string{"TransientTransactionError"},
		}
		out := e.classify(ctx, ce, "booking failed")
		assert.Equal(t, KindTransactionFailure, KindOf(out))
		assert.ErrorContains(t, out, "Could not commit, please retry")
	})

	t.Run("unknown commit result is retryable", func(t *testing.T) {
		ce := mongo.CommandError{
			Code:    91,
			Message: "ShutdownInProgress",
			Labels:  []string{"UnknownTransactionCommitResult"},
		}
		out := e.classify(ctx, ce, "booking failed")
		assert.Equal(t, KindTransactionFailure, KindOf(out))
	})

	t.Run("duplicate key is the double-booking backstop", func(t *testing.T) {
		we := mongo.WriteException{
			WriteErrors: mongo.WriteErrors{{
				Code:    11000,
				Message: "E11000 duplicate key error collection: appointments",
			}},
		}
		out := e.classify(ctx, we, "booking failed")
		assert.Equal(t, KindConflict, KindOf(out))
		assert.ErrorContains(t, out, "Slot already booked")
	})

	t.Run("anything else is internal", func(t *testing.T) {
		out := e.classify(ctx, errors.New("connection reset"), "booking failed")
		assert.Equal(t, KindInternal, KindOf(out))
	})
}
