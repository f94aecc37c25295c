package repository

import (
	"database/sql"
	"time"

	"github.com/lib/pq"

	"github.com/peakseason/trekbot-backend/internal/model"
)

type TripRepositoryInterface interface {
	GetByID(id int) (*model.Trip, error)
	ListCampaignEligible(horizon time.Time) ([]*model.Trip, error)
}

type TripRepository struct {
	DB *sql.DB
}

const tripColumns = `id, name, status, departure_date, max_capacity, spots_available, price, discount, booking_deadline, created_at`

func (r *TripRepository) GetByID(id int) (*model.Trip, error) {
	query := `SELECT ` + tripColumns + ` FROM trips WHERE id=$1`
	var t model.Trip
	err := r.DB.QueryRow(query, id).Scan(&t.ID, &t.Name, &t.Status,
		&t.DepartureDate, &t.MaxCapacity, &t.SpotsAvailable,
		&t.Price, &t.Discount, &t.BookingDeadline, &t.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

// ListCampaignEligible returns trips worth promoting: available or promoted,
// departing before the horizon or with no departure set yet.
func (r *TripRepository) ListCampaignEligible(horizon time.Time) ([]*model.Trip, error) {
	query := `
        SELECT ` + tripColumns + ` FROM trips
        WHERE status = ANY($1)
          AND (departure_date IS NULL OR departure_date <= $2)
        ORDER BY id
    `
	rows, err := r.DB.Query(query, pq.Array([]string{"available", "promoted"}), horizon)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	trips := []*model.Trip{}
	for rows.Next() {
		var t model.Trip
		if err := rows.Scan(&t.ID, &t.Name, &t.Status, &t.DepartureDate,
			&t.MaxCapacity, &t.SpotsAvailable, &t.Price, &t.Discount,
			&t.BookingDeadline, &t.CreatedAt); err != nil {
			return nil, err
		}
		trips = append(trips, &t)
	}
	return trips, rows.Err()
}

var _ TripRepositoryInterface = (*TripRepository)(nil)
