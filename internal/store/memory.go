package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/docpoint/appointment-api/internal/models"
)

// Memory is a mutex-serialized, in-process Store. It backs the engine tests
// and local runs without a MongoDB instance. WithTransaction holds the lock
// for the whole callback and rolls the state back on error, which gives the
// same all-or-nothing, single-writer semantics the Mongo implementation gets
// from sessions.
type Memory struct {
	mu           sync.Mutex
	users        map[primitive.ObjectID]models.User
	doctors      map[primitive.ObjectID]models.Doctor
	appointments map[primitive.ObjectID]models.Appointment
}

func NewMemory() *Memory {
	return &Memory{
		users:        make(map[primitive.ObjectID]models.User),
		doctors:      make(map[primitive.ObjectID]models.Doctor),
		appointments: make(map[primitive.ObjectID]models.Appointment),
	}
}

type memTxnKey struct{}

func inTxn(ctx context.Context) bool {
	return ctx != nil && ctx.Value(memTxnKey{}) != nil
}

// lock acquires the store lock unless the context already runs inside
// WithTransaction, which holds it for the whole callback.
func (m *Memory) lock(ctx context.Context) func() {
	if inTxn(ctx) {
		return func() {}
	}
	m.mu.Lock()
	return m.mu.Unlock
}

func (m *Memory) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	users := cloneUsers(m.users)
	doctors := cloneDoctors(m.doctors)
	appointments := cloneAppointments(m.appointments)

	if err := fn(context.WithValue(ctx, memTxnKey{}, struct{}{})); err != nil {
		m.users = users
		m.doctors = doctors
		m.appointments = appointments
		return err
	}
	return nil
}

// AddUser seeds a patient. Test and local-run setup only.
func (m *Memory) AddUser(u models.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
}

// AddDoctor seeds a doctor. Test and local-run setup only.
func (m *Memory) AddDoctor(d models.Doctor) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.doctors[d.ID] = cloneDoctor(d)
}

func (m *Memory) FindPatient(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	defer m.lock(ctx)()
	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (m *Memory) FindDoctor(ctx context.Context, id primitive.ObjectID) (*models.Doctor, error) {
	defer m.lock(ctx)()
	d, ok := m.doctors[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := cloneDoctor(d)
	return &cp, nil
}

func (m *Memory) FindAppointment(ctx context.Context, id primitive.ObjectID) (*models.Appointment, error) {
	defer m.lock(ctx)()
	a, ok := m.appointments[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &a, nil
}

func (m *Memory) ReserveSlot(ctx context.Context, doctorID primitive.ObjectID, date, t string) (bool, error) {
	defer m.lock(ctx)()
	d, ok := m.doctors[doctorID]
	if !ok || !d.Available || d.SlotTaken(date, t) {
		return false, nil
	}
	if d.SlotsBooked == nil {
		d.SlotsBooked = make(map[string][]string)
	}
	d.SlotsBooked[date] = append(d.SlotsBooked[date], t)
	m.doctors[doctorID] = d
	return true, nil
}

func (m *Memory) ReleaseSlot(ctx context.Context, doctorID primitive.ObjectID, date, t string) error {
	defer m.lock(ctx)()
	d, ok := m.doctors[doctorID]
	if !ok {
		return nil
	}
	times := d.SlotsBooked[date]
	kept := times[:0]
	for _, v := range times {
		if v != t {
			kept = append(kept, v)
		}
	}
	if len(kept) == 0 {
		delete(d.SlotsBooked, date)
	} else {
		d.SlotsBooked[date] = kept
	}
	m.doctors[doctorID] = d
	return nil
}

func (m *Memory) InsertAppointment(ctx context.Context, appt *models.Appointment) error {
	defer m.lock(ctx)()
	if appt.ID.IsZero() {
		appt.ID = primitive.NewObjectID()
	}
	m.appointments[appt.ID] = *appt
	return nil
}

func (m *Memory) HasActiveAppointment(ctx context.Context, patientID, doctorID primitive.ObjectID, date, t string) (bool, error) {
	defer m.lock(ctx)()
	for _, a := range m.appointments {
		if a.PatientID == patientID && a.DoctorID == doctorID &&
			a.SlotDate == date && a.SlotTime == t && !a.Cancelled {
			return true, nil
		}
	}
	return false, nil
}

func (m *Memory) MarkCancelled(ctx context.Context, id primitive.ObjectID, by, reason string, at time.Time) (bool, error) {
	defer m.lock(ctx)()
	a, ok := m.appointments[id]
	if !ok || a.Cancelled || a.IsCompleted {
		return false, nil
	}
	when := at
	a.Cancelled = true
	a.CancelledBy = by
	a.CancellationReason = reason
	a.CancelledAt = &when
	m.appointments[id] = a
	return true, nil
}

func (m *Memory) MarkCompleted(ctx context.Context, id primitive.ObjectID) (bool, error) {
	defer m.lock(ctx)()
	a, ok := m.appointments[id]
	if !ok || a.Cancelled || a.IsCompleted {
		return false, nil
	}
	a.IsCompleted = true
	m.appointments[id] = a
	return true, nil
}

func (m *Memory) ListAppointments(ctx context.Context, filter AppointmentFilter) ([]models.Appointment, error) {
	defer m.lock(ctx)()
	appts := make([]models.Appointment, 0)
	for _, a := range m.appointments {
		if !filter.PatientID.IsZero() && a.PatientID != filter.PatientID {
			continue
		}
		if !filter.DoctorID.IsZero() && a.DoctorID != filter.DoctorID {
			continue
		}
		if filter.SlotDate != "" && a.SlotDate != filter.SlotDate {
			continue
		}
		if filter.ActiveOnly && (a.Cancelled || a.IsCompleted) {
			continue
		}
		appts = append(appts, a)
	}
	sort.Slice(appts, func(i, j int) bool {
		return appts[i].CreatedAt.After(appts[j].CreatedAt)
	})
	return appts, nil
}

func cloneUsers(in map[primitive.ObjectID]models.User) map[primitive.ObjectID]models.User {
	out := make(map[primitive.ObjectID]models.User, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func cloneDoctor(d models.Doctor) models.Doctor {
	cp := d
	cp.SlotsBooked = make(map[string][]string, len(d.SlotsBooked))
	for date, times := range d.SlotsBooked {
		cp.SlotsBooked[date] = append([]string(nil), times...)
	}
	return cp
}

func cloneDoctors(in map[primitive.ObjectID]models.Doctor) map[primitive.ObjectID]models.Doctor {
	out := make(map[primitive.ObjectID]models.Doctor, len(in))
	for k, v := range in {
		out[k] = cloneDoctor(v)
	}
	return out
}

func cloneAppointments(in map[primitive.ObjectID]models.Appointment) map[primitive.ObjectID]models.Appointment {
	out := make(map[primitive.ObjectID]models.Appointment, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
