package agenda

import (
	"context"

	"github.com/ambulatorio/ambulatorio/internal/domain/clinic"
)

// AppointmentRepository is the remote store of appointments.
type AppointmentRepository interface {
	ListAppointments(ctx context.Context, site clinic.Site, date string) ([]Appointment, error)
	CreateAppointment(ctx context.Context, req NewAppointment) (*Appointment, error)
	DeleteAppointment(ctx context.Context, id string) error
}

// PatientDirectory is the remote patient registry.
type PatientDirectory interface {
	ListPatients(ctx context.Context, site clinic.Site, status clinic.PatientStatus) ([]Patient, error)
	CreatePatient(ctx context.Context, req NewPatient) (*Patient, error)
}

type HolidaySource interface {
	Holidays(ctx context.Context, year int) ([]string, error)
}

// Backend groups everything the controller needs from the server.
type Backend interface {
	AppointmentRepository
	PatientDirectory
	HolidaySource
}
