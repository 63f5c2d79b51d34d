package store

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/docpoint/appointment-api/internal/models"
)

// Mongo implements Store on a MongoDB database. Atomicity of booking and
// cancellation comes from multi-document transactions plus guarded updates:
// every slot/flag mutation re-states its precondition in the update filter,
// so a racing writer either hits a write conflict (and the driver retries the
// transaction) or sees a zero-match result.
type Mongo struct {
	client *mongo.Client
	db     *mongo.Database
}

func NewMongo(client *mongo.Client, database string) *Mongo {
	return &Mongo{client: client, db: client.Database(database)}
}

func (m *Mongo) users() *mongo.Collection        { return m.db.Collection("users") }
func (m *Mongo) doctors() *mongo.Collection      { return m.db.Collection("doctors") }
func (m *Mongo) appointments() *mongo.Collection { return m.db.Collection("appointments") }

// Database exposes the underlying database for the thin CRUD handlers that
// sit outside the booking core.
func (m *Mongo) Database() *mongo.Database { return m.db }

// EnsureIndexes creates the indexes the core relies on: unique emails, and a
// partial unique index over (doctorId, slotDate, slotTime) restricted to
// non-cancelled appointments. The latter is a storage-level backstop for the
// no-double-booking invariant.
func (m *Mongo) EnsureIndexes(ctx context.Context) error {
	unique := options.Index().SetUnique(true)

	if _, err := m.users().Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "email", Value: 1}}, Options: unique,
	}); err != nil {
		return err
	}
	if _, err := m.doctors().Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "email", Value: 1}}, Options: unique,
	}); err != nil {
		return err
	}
	_, err := m.appointments().Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "doctorId", Value: 1},
			{Key: "slotDate", Value: 1},
			{Key: "slotTime", Value: 1},
		},
		Options: options.Index().
			SetUnique(true).
			SetPartialFilterExpression(bson.M{"cancelled": false}),
	})
	return err
}

// WithTransaction runs fn inside a session transaction. The driver retries
// transient transaction errors, so a commit-time write conflict replays fn
// rather than surfacing to the caller.
func (m *Mongo) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	session, err := m.client.StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}

func (m *Mongo) FindPatient(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var u models.User
	err := m.users().FindOne(ctx, bson.M{"_id": id}).Decode(&u)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (m *Mongo) FindDoctor(ctx context.Context, id primitive.ObjectID) (*models.Doctor, error) {
	var d models.Doctor
	err := m.doctors().FindOne(ctx, bson.M{"_id": id}).Decode(&d)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (m *Mongo) FindAppointment(ctx context.Context, id primitive.ObjectID) (*models.Appointment, error) {
	var a models.Appointment
	err := m.appointments().FindOne(ctx, bson.M{"_id": id}).Decode(&a)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (m *Mongo) ReserveSlot(ctx context.Context, doctorID primitive.ObjectID, date, t string) (bool, error) {
	field := "slotsBooked." + date
	res, err := m.doctors().UpdateOne(ctx,
		bson.M{"_id": doctorID, "available": true, field: bson.M{"$ne": t}},
		bson.M{"$addToSet": bson.M{field: t}},
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}

func (m *Mongo) ReleaseSlot(ctx context.Context, doctorID primitive.ObjectID, date, t string) error {
	field := "slotsBooked." + date
	if _, err := m.doctors().UpdateOne(ctx,
		bson.M{"_id": doctorID},
		bson.M{"$pull": bson.M{field: t}},
	); err != nil {
		return err
	}
	// Keep the ledger sparse: drop the date key once its last time is gone.
	_, err := m.doctors().UpdateOne(ctx,
		bson.M{"_id": doctorID, field: bson.M{"$size": 0}},
		bson.M{"$unset": bson.M{field: ""}},
	)
	return err
}

func (m *Mongo) InsertAppointment(ctx context.Context, appt *models.Appointment) error {
	_, err := m.appointments().InsertOne(ctx, appt)
	return err
}

func (m *Mongo) HasActiveAppointment(ctx context.Context, patientID, doctorID primitive.ObjectID, date, t string) (bool, error) {
	n, err := m.appointments().CountDocuments(ctx, bson.M{
		"patientId": patientID,
		"doctorId":  doctorID,
		"slotDate":  date,
		"slotTime":  t,
		"cancelled": false,
	})
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (m *Mongo) MarkCancelled(ctx context.Context, id primitive.ObjectID, by, reason string, at time.Time) (bool, error) {
	res, err := m.appointments().UpdateOne(ctx,
		bson.M{"_id": id, "cancelled": false, "isCompleted": false},
		bson.M{"$set": bson.M{
			"cancelled":          true,
			"cancelledBy":        by,
			"cancellationReason": reason,
			"cancelledAt":        at,
		}},
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}

func (m *Mongo) MarkCompleted(ctx context.Context, id primitive.ObjectID) (bool, error) {
	res, err := m.appointments().UpdateOne(ctx,
		bson.M{"_id": id, "cancelled": false, "isCompleted": false},
		bson.M{"$set": bson.M{"isCompleted": true}},
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}

func (m *Mongo) ListAppointments(ctx context.Context, filter AppointmentFilter) ([]models.Appointment, error) {
	q := bson.M{}
	if !filter.PatientID.IsZero() {
		q["patientId"] = filter.PatientID
	}
	if !filter.DoctorID.IsZero() {
		q["doctorId"] = filter.DoctorID
	}
	if filter.SlotDate != "" {
		q["slotDate"] = filter.SlotDate
	}
	if filter.ActiveOnly {
		q["cancelled"] = false
		q["isCompleted"] = false
	}

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := m.appointments().Find(ctx, q, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var appts []models.Appointment
	if err := cursor.All(ctx, &appts); err != nil {
		return nil, err
	}
	if appts == nil {
		appts = make([]models.Appointment, 0)
	}
	return appts, nil
}
