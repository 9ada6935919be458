package agenda

import (
	"time"

	"github.com/ambulatorio/ambulatorio/internal/domain/clinic"
)

// SessionContext is the identity the agenda acts under: the site being
// viewed and the bearer token sent to the backend.
type SessionContext struct {
	Site  clinic.Site
	Token string
}

// Appointment is the agenda's view of a booked slot.
type Appointment struct {
	ID             string                 `json:"id"`
	PatientID      string                 `json:"patient_id"`
	PatientNome    string                 `json:"patient_nome"`
	PatientCognome string                 `json:"patient_cognome"`
	Ambulatorio    clinic.Site            `json:"ambulatorio"`
	Data           string                 `json:"data"`
	Ora            string                 `json:"ora"`
	Tipo           clinic.ServiceType     `json:"tipo"`
	Prestazioni    []clinic.ProcedureCode `json:"prestazioni"`
}

// Patient is the directory projection used for booking.
type Patient struct {
	ID          string               `json:"id"`
	Nome        string               `json:"nome"`
	Cognome     string               `json:"cognome"`
	Tipo        clinic.PatientType   `json:"tipo"`
	Ambulatorio clinic.Site          `json:"ambulatorio"`
	Status      clinic.PatientStatus `json:"status"`
}

// DisplayName is surname first, as shown in the booking dialog.
func (p Patient) DisplayName() string {
	return p.Cognome + " " + p.Nome
}

// NewAppointment is the body sent to create an appointment.
type NewAppointment struct {
	PatientID   string                 `json:"patient_id"`
	Ambulatorio clinic.Site            `json:"ambulatorio"`
	Data        string                 `json:"data"`
	Ora         string                 `json:"ora"`
	Tipo        clinic.ServiceType     `json:"tipo"`
	Prestazioni []clinic.ProcedureCode `json:"prestazioni"`
}

// NewPatient is the body sent by quick create.
type NewPatient struct {
	Nome        string             `json:"nome"`
	Cognome     string             `json:"cognome"`
	Tipo        clinic.PatientType `json:"tipo"`
	Ambulatorio clinic.Site        `json:"ambulatorio"`
}

// Slot is a (time, service) cell of the day grid.
type Slot struct {
	Time    string
	Service clinic.ServiceType
}

// BookingState is the content of the open booking dialog.
type BookingState struct {
	Slot               Slot
	SearchQuery        string
	Filtered           []Patient
	SelectedPatient    *Patient
	SelectedProcedures []clinic.ProcedureCode
	Submitting         bool
}

// State is a snapshot of the controller. Booking is non-nil only while the
// booking dialog is open.
type State struct {
	Site            clinic.Site
	Date            time.Time
	Loading         bool
	Loaded          bool
	NonWorking      bool
	Appointments    []Appointment
	Patients        []Patient
	Booking         *BookingState
	QuickCreateOpen bool
	Deleting        map[string]bool
}

// DateISO returns the visible date as yyyy-MM-dd.
func (s State) DateISO() string {
	return s.Date.Format("2006-01-02")
}

// AppointmentsAt returns the appointments of one slot in booking order.
func (s State) AppointmentsAt(slot Slot) []Appointment {
	var out []Appointment
	for _, a := range s.Appointments {
		if a.Ora == slot.Time && a.Tipo == slot.Service {
			out = append(out, a)
		}
	}
	return out
}
