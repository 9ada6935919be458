package patient

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/ambulatorio/ambulatorio/internal/domain/clinic"
)

var (
	// ErrSiteRestriction is returned when a site cannot take patients of a type.
	ErrSiteRestriction = errors.New("Villa delle Ginestre gestisce solo pazienti PICC")
	ErrInvalid         = errors.New("dati paziente non validi")
)

type Service struct {
	patients Repository
}

func NewService(repo Repository) *Service {
	return &Service{patients: repo}
}

// acceptsType reports whether site takes patients of type t. Villa delle
// Ginestre has no MED service, so it only registers PICC patients.
func acceptsType(site clinic.Site, t clinic.PatientType) bool {
	if site == clinic.SiteVillaGinestre {
		return t == clinic.PatientPICC
	}
	return true
}

func (s *Service) Create(ctx context.Context, p *Patient) error {
	if p.Nome == "" || p.Cognome == "" {
		return fmt.Errorf("%w: nome e cognome obbligatori", ErrInvalid)
	}
	if !p.Tipo.Valid() {
		return fmt.Errorf("%w: tipo %q", ErrInvalid, p.Tipo)
	}
	if !p.Ambulatorio.Valid() {
		return fmt.Errorf("%w: ambulatorio %q", ErrInvalid, p.Ambulatorio)
	}
	if !acceptsType(p.Ambulatorio, p.Tipo) {
		return ErrSiteRestriction
	}
	if p.Status == "" {
		p.Status = clinic.StatusInCura
	}
	return s.patients.Create(ctx, p)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.patients.GetByID(ctx, id)
}

// Update applies a partial update. Status changes clear the notes that no
// longer apply.
func (s *Service) Update(ctx context.Context, id uuid.UUID, req *UpdateRequest) (*Patient, error) {
	p, err := s.patients.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	req.Apply(p)
	if !acceptsType(p.Ambulatorio, p.Tipo) {
		return nil, ErrSiteRestriction
	}
	switch p.Status {
	case clinic.StatusInCura:
		p.DischargeReason, p.DischargeNotes, p.SuspendNotes = nil, nil, nil
	case clinic.StatusSospeso:
		p.DischargeReason, p.DischargeNotes = nil, nil
	case clinic.StatusDimesso:
		p.SuspendNotes = nil
	}
	if err := s.patients.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.patients.Delete(ctx, id)
}

func (s *Service) List(ctx context.Context, f ListFilter) ([]*Patient, error) {
	return s.patients.List(ctx, f)
}
