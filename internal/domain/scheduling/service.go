package scheduling

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/ambulatorio/ambulatorio/internal/domain/calendar"
	"github.com/ambulatorio/ambulatorio/internal/domain/clinic"
	"github.com/ambulatorio/ambulatorio/internal/domain/patient"
)

var (
	ErrPatientNotFound   = errors.New("Paziente non trovato")
	ErrInvalidDate       = errors.New("data non valida")
	ErrNonWorkingDay     = errors.New("Giorno non lavorativo")
	ErrPatientNotInCare  = errors.New("Il paziente non è in cura")
	ErrPatientIneligible = errors.New("Il paziente non è idoneo per questo servizio")
	ErrPatientOtherSite  = errors.New("Il paziente appartiene a un altro ambulatorio")
)

// PatientLookup is the part of the patient registry the booking flow reads.
type PatientLookup interface {
	Get(ctx context.Context, id uuid.UUID) (*patient.Patient, error)
}

type Service struct {
	appointments Repository
	patients     PatientLookup
	policy       *clinic.Policy
}

func NewService(appt Repository, patients PatientLookup, policy *clinic.Policy) *Service {
	if policy == nil {
		policy = clinic.DefaultPolicy()
	}
	return &Service{appointments: appt, patients: patients, policy: policy}
}

func (s *Service) Policy() *clinic.Policy { return s.policy }

// Create books a. The static rules are checked first, then the patient, and
// the slot capacity last inside the repository transaction.
func (s *Service) Create(ctx context.Context, a *Appointment) error {
	if err := s.policy.ValidateBooking(a.Ambulatorio, a.Tipo, a.Ora, a.Prestazioni); err != nil {
		return err
	}
	day, err := calendar.ParseISO(a.Data)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidDate, a.Data)
	}
	if !calendar.IsWorkingDay(day, calendar.NewHolidaySet(calendar.HolidaysFor(day.Year())...)) {
		return ErrNonWorkingDay
	}

	p, err := s.patients.Get(ctx, a.PatientID)
	if errors.Is(err, patient.ErrNotFound) {
		return ErrPatientNotFound
	}
	if err != nil {
		return err
	}
	if p.Ambulatorio != a.Ambulatorio {
		return ErrPatientOtherSite
	}
	if p.Status != clinic.StatusInCura {
		return ErrPatientNotInCare
	}
	if !clinic.IsEligible(p.Tipo, a.Tipo) {
		return ErrPatientIneligible
	}

	a.PatientNome = p.Nome
	a.PatientCognome = p.Cognome
	return s.appointments.CreateChecked(ctx, a, s.policy.SlotCapacity)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.appointments.GetByID(ctx, id)
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, req *UpdateRequest) (*Appointment, error) {
	a, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Completed != nil {
		a.Completed = *req.Completed
	}
	if req.Note != nil {
		a.Note = req.Note
	}
	if err := s.appointments.Update(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.appointments.Delete(ctx, id)
}

func (s *Service) List(ctx context.Context, f ListFilter) ([]*Appointment, error) {
	return s.appointments.List(ctx, f)
}
