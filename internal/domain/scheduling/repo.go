package scheduling

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrNotFound = errors.New("appointment not found")
	ErrSlotFull = errors.New("slot full")
)

type Repository interface {
	// CreateChecked inserts a unless its slot already holds capacity
	// appointments, in which case it returns ErrSlotFull.
	CreateChecked(ctx context.Context, a *Appointment, capacity int) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	Update(ctx context.Context, a *Appointment) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, f ListFilter) ([]*Appointment, error)
}
