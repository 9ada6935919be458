package scheduling

import (
	"time"

	"github.com/google/uuid"

	"github.com/ambulatorio/ambulatorio/internal/domain/clinic"
)

// Appointment maps to the appointments table. Patient names are copied at
// booking time so the agenda can render a day with a single query.
type Appointment struct {
	ID             uuid.UUID              `db:"id" json:"id"`
	PatientID      uuid.UUID              `db:"patient_id" json:"patient_id"`
	PatientNome    string                 `db:"patient_nome" json:"patient_nome"`
	PatientCognome string                 `db:"patient_cognome" json:"patient_cognome"`
	Ambulatorio    clinic.Site            `db:"ambulatorio" json:"ambulatorio"`
	Data           string                 `db:"data" json:"data"`
	Ora            string                 `db:"ora" json:"ora"`
	Tipo           clinic.ServiceType     `db:"tipo" json:"tipo"`
	Prestazioni    []clinic.ProcedureCode `db:"prestazioni" json:"prestazioni"`
	Note           *string                `db:"note" json:"note,omitempty"`
	Completed      bool                   `db:"completed" json:"completed"`
	CreatedAt      time.Time              `db:"created_at" json:"created_at"`
}

// SlotKey identifies the capacity bucket of the appointment.
func (a *Appointment) SlotKey() string {
	return string(a.Ambulatorio) + "|" + a.Data + "|" + a.Ora + "|" + string(a.Tipo)
}

// CreateRequest is the body of POST /appointments.
type CreateRequest struct {
	PatientID   string   `json:"patient_id" validate:"required,uuid"`
	Ambulatorio string   `json:"ambulatorio" validate:"required,oneof=pta_centro villa_ginestre"`
	Data        string   `json:"data" validate:"required,isodate"`
	Ora         string   `json:"ora" validate:"required,clock"`
	Tipo        string   `json:"tipo" validate:"required,oneof=PICC MED"`
	Prestazioni []string `json:"prestazioni" validate:"required,min=1,dive,required"`
	Note        *string  `json:"note" validate:"omitempty,max=500"`
}

// ToAppointment converts a validated request.
func (r *CreateRequest) ToAppointment() (*Appointment, error) {
	patientID, err := uuid.Parse(r.PatientID)
	if err != nil {
		return nil, err
	}
	a := &Appointment{
		PatientID:   patientID,
		Ambulatorio: clinic.Site(r.Ambulatorio),
		Data:        r.Data,
		Ora:         r.Ora,
		Tipo:        clinic.ServiceType(r.Tipo),
		Note:        r.Note,
	}
	for _, p := range r.Prestazioni {
		a.Prestazioni = append(a.Prestazioni, clinic.ProcedureCode(p))
	}
	return a, nil
}

// UpdateRequest is the body of PATCH /appointments/:id. The slot itself is
// never moved: rebooking means cancelling and creating a new appointment.
type UpdateRequest struct {
	Completed *bool   `json:"completed"`
	Note      *string `json:"note" validate:"omitempty,max=500"`
}

// ListFilter narrows GET /appointments. Date takes precedence over the
// From/To range, both bounds inclusive.
type ListFilter struct {
	Site clinic.Site
	Date string
	From string
	To   string
	Type clinic.ServiceType
}
