// internal/model/trip.go
package model

import "time"

type Trip struct {
	ID              int        `db:"id" json:"id"`
	Name            string     `db:"name" json:"name"`
	Status          string     `db:"status" json:"status"` // available, promoted, full, closed
	DepartureDate   *time.Time `db:"departure_date" json:"departure_date,omitempty"`
	MaxCapacity     int        `db:"max_capacity" json:"max_capacity"`
	SpotsAvailable  int        `db:"spots_available" json:"spots_available"`
	Price           string     `db:"price" json:"price"`
	Discount        string     `db:"discount" json:"discount"`
	BookingDeadline string     `db:"booking_deadline" json:"booking_deadline"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
}

// Occupancy is the fraction of capacity already booked.
func (t *Trip) Occupancy() float64 {
	if t.MaxCapacity <= 0 {
		return 0
	}
	return float64(t.MaxCapacity-t.SpotsAvailable) / float64(t.MaxCapacity)
}
