package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// Actor roles carried in JWT claims and stored on cancellation audit fields.
const (
	RolePatient = "patient"
	RoleDoctor  = "doctor"
	RoleAdmin   = "admin"
)

// User is a patient account. Doctors live in their own collection.
type User struct {
	ID       primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	FullName string             `bson:"fullName" json:"fullName"`
	Email    string             `bson:"email" json:"email"`
	Password string             `bson:"password" json:"-"` // Hide from JSON responses
	Phone    string             `bson:"phone" json:"phone"`
	Address  string             `bson:"address,omitempty" json:"address,omitempty"`
}
