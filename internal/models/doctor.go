package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// Doctor is a practitioner account, including the denormalized availability
// ledger. SlotsBooked maps a slot date ("2006-01-02") to the times already
// reserved on that date. Every entry must correspond to exactly one
// non-cancelled appointment; the booking and cancellation engines are the
// only writers.
type Doctor struct {
	ID          primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	FullName    string              `bson:"fullName" json:"fullName"`
	Email       string              `bson:"email" json:"email"`
	Password    string              `bson:"password" json:"-"`
	Speciality  string              `bson:"speciality" json:"speciality"`
	Degree      string              `bson:"degree" json:"degree"`
	Experience  int                 `bson:"experience" json:"experience"` // years of practice
	Fees        int64               `bson:"fees" json:"fees"`
	Available   bool                `bson:"available" json:"available"`
	SlotsBooked map[string][]string `bson:"slotsBooked" json:"slotsBooked"`
}

// SlotTaken reports whether the ledger already holds time on date.
func (d *Doctor) SlotTaken(date, time string) bool {
	for _, t := range d.SlotsBooked[date] {
		if t == time {
			return true
		}
	}
	return false
}
