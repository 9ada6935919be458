package patient

import (
	"time"

	"github.com/google/uuid"

	"github.com/ambulatorio/ambulatorio/internal/domain/clinic"
)

// Patient maps to the patients table.
type Patient struct {
	ID              uuid.UUID            `db:"id" json:"id"`
	Nome            string               `db:"nome" json:"nome"`
	Cognome         string               `db:"cognome" json:"cognome"`
	Tipo            clinic.PatientType   `db:"tipo" json:"tipo"`
	Ambulatorio     clinic.Site          `db:"ambulatorio" json:"ambulatorio"`
	Status          clinic.PatientStatus `db:"status" json:"status"`
	DataNascita     *string              `db:"data_nascita" json:"data_nascita,omitempty"`
	CodiceFiscale   *string              `db:"codice_fiscale" json:"codice_fiscale,omitempty"`
	Telefono        *string              `db:"telefono" json:"telefono,omitempty"`
	Email           *string              `db:"email" json:"email,omitempty"`
	MedicoBase      *string              `db:"medico_base" json:"medico_base,omitempty"`
	Anamnesi        *string              `db:"anamnesi" json:"anamnesi,omitempty"`
	TerapiaInAtto   *string              `db:"terapia_in_atto" json:"terapia_in_atto,omitempty"`
	Allergie        *string              `db:"allergie" json:"allergie,omitempty"`
	DischargeReason *string              `db:"discharge_reason" json:"discharge_reason,omitempty"`
	DischargeNotes  *string              `db:"discharge_notes" json:"discharge_notes,omitempty"`
	SuspendNotes    *string              `db:"suspend_notes" json:"suspend_notes,omitempty"`
	CreatedAt       time.Time            `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time            `db:"updated_at" json:"updated_at"`
}

// DisplayName is the surname-first label used by the agenda.
func (p *Patient) DisplayName() string {
	return p.Cognome + " " + p.Nome
}

// CreateRequest is the body of POST /patients. Only the first four fields are
// required so that a patient can be created from the booking dialog.
type CreateRequest struct {
	Nome          string  `json:"nome" validate:"required,max=100"`
	Cognome       string  `json:"cognome" validate:"required,max=100"`
	Tipo          string  `json:"tipo" validate:"required,oneof=PICC MED PICC_MED"`
	Ambulatorio   string  `json:"ambulatorio" validate:"required,oneof=pta_centro villa_ginestre"`
	DataNascita   *string `json:"data_nascita" validate:"omitempty,isodate"`
	CodiceFiscale *string `json:"codice_fiscale" validate:"omitempty,len=16"`
	Telefono      *string `json:"telefono" validate:"omitempty,max=30"`
	Email         *string `json:"email" validate:"omitempty,email"`
	MedicoBase    *string `json:"medico_base"`
	Anamnesi      *string `json:"anamnesi"`
	TerapiaInAtto *string `json:"terapia_in_atto"`
	Allergie      *string `json:"allergie"`
}

// ToPatient builds an in-care patient from the request.
func (r *CreateRequest) ToPatient() *Patient {
	return &Patient{
		Nome:          r.Nome,
		Cognome:       r.Cognome,
		Tipo:          clinic.PatientType(r.Tipo),
		Ambulatorio:   clinic.Site(r.Ambulatorio),
		Status:        clinic.StatusInCura,
		DataNascita:   r.DataNascita,
		CodiceFiscale: r.CodiceFiscale,
		Telefono:      r.Telefono,
		Email:         r.Email,
		MedicoBase:    r.MedicoBase,
		Anamnesi:      r.Anamnesi,
		TerapiaInAtto: r.TerapiaInAtto,
		Allergie:      r.Allergie,
	}
}

// UpdateRequest is the body of PUT /patients/:id. Nil fields are left untouched.
type UpdateRequest struct {
	Nome            *string `json:"nome" validate:"omitempty,min=1,max=100"`
	Cognome         *string `json:"cognome" validate:"omitempty,min=1,max=100"`
	Tipo            *string `json:"tipo" validate:"omitempty,oneof=PICC MED PICC_MED"`
	Status          *string `json:"status" validate:"omitempty,oneof=in_cura dimesso sospeso"`
	DataNascita     *string `json:"data_nascita" validate:"omitempty,isodate"`
	CodiceFiscale   *string `json:"codice_fiscale" validate:"omitempty,len=16"`
	Telefono        *string `json:"telefono" validate:"omitempty,max=30"`
	Email           *string `json:"email" validate:"omitempty,email"`
	MedicoBase      *string `json:"medico_base"`
	Anamnesi        *string `json:"anamnesi"`
	TerapiaInAtto   *string `json:"terapia_in_atto"`
	Allergie        *string `json:"allergie"`
	DischargeReason *string `json:"discharge_reason" validate:"omitempty,oneof=guarito adi altro"`
	DischargeNotes  *string `json:"discharge_notes"`
	SuspendNotes    *string `json:"suspend_notes"`
}

// Apply copies the non-nil fields of the request onto p.
func (r *UpdateRequest) Apply(p *Patient) {
	if r.Nome != nil {
		p.Nome = *r.Nome
	}
	if r.Cognome != nil {
		p.Cognome = *r.Cognome
	}
	if r.Tipo != nil {
		p.Tipo = clinic.PatientType(*r.Tipo)
	}
	if r.Status != nil {
		p.Status = clinic.PatientStatus(*r.Status)
	}
	setIfPresent(&p.DataNascita, r.DataNascita)
	setIfPresent(&p.CodiceFiscale, r.CodiceFiscale)
	setIfPresent(&p.Telefono, r.Telefono)
	setIfPresent(&p.Email, r.Email)
	setIfPresent(&p.MedicoBase, r.MedicoBase)
	setIfPresent(&p.Anamnesi, r.Anamnesi)
	setIfPresent(&p.TerapiaInAtto, r.TerapiaInAtto)
	setIfPresent(&p.Allergie, r.Allergie)
	setIfPresent(&p.DischargeReason, r.DischargeReason)
	setIfPresent(&p.DischargeNotes, r.DischargeNotes)
	setIfPresent(&p.SuspendNotes, r.SuspendNotes)
}

func setIfPresent(dst **string, v *string) {
	if v != nil {
		*dst = v
	}
}

// ListFilter narrows GET /patients. Empty fields match everything.
type ListFilter struct {
	Site   clinic.Site
	Status clinic.PatientStatus
	Type   clinic.PatientType
	Search string
}
