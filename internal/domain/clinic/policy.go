package clinic

import (
	"errors"
	"fmt"
)

// DefaultSlotCapacity is the number of patients a (time, service) slot can hold.
const DefaultSlotCapacity = 2

// DefaultTimeSlots is the fixed daily slot list: a morning block and an
// afternoon block with a lunch gap in between.
var DefaultTimeSlots = []string{
	"08:30", "09:00", "09:30", "10:00", "10:30", "11:00", "11:30", "12:00", "12:30",
	"15:00", "15:30", "16:00", "16:30",
}

var (
	ErrNoProcedures       = errors.New("seleziona almeno una prestazione")
	ErrUnknownProcedure   = errors.New("prestazione non valida per il tipo")
	ErrServiceNotOffered  = errors.New("servizio non disponibile in questo ambulatorio")
	ErrUnknownTimeSlot    = errors.New("orario non valido")
	ErrInvalidServiceType = errors.New("tipo non valido")
)

// Policy holds the fixed scheduling rules of the service.
type Policy struct {
	TimeSlots    []string
	SlotCapacity int
	catalogue    map[ServiceType][]ProcedureCode
	restricted   map[Site]map[ServiceType]bool
}

// DefaultPolicy returns the rules in force at both sites.
func DefaultPolicy() *Policy {
	return NewPolicy(DefaultTimeSlots)
}

// NewPolicy returns the default rules with a custom time slot list.
// An empty list falls back to DefaultTimeSlots.
func NewPolicy(timeSlots []string) *Policy {
	if len(timeSlots) == 0 {
		timeSlots = DefaultTimeSlots
	}
	slots := make([]string, len(timeSlots))
	copy(slots, timeSlots)
	return &Policy{
		TimeSlots:    slots,
		SlotCapacity: DefaultSlotCapacity,
		catalogue: map[ServiceType][]ProcedureCode{
			ServicePICC: {ProcMedicazioneSemplice, ProcIrrigazioneCatetere},
			ServiceMED: {
				ProcMedicazioneSemplice, ProcFasciaturaSemplice,
				ProcIniezioneTerapeutica, ProcCatetereVescicale,
			},
		},
		restricted: map[Site]map[ServiceType]bool{
			SiteVillaGinestre: {ServiceMED: true},
		},
	}
}

// ProceduresFor returns the procedure catalogue of a service type.
func (p *Policy) ProceduresFor(t ServiceType) []Procedure {
	codes := p.catalogue[t]
	out := make([]Procedure, 0, len(codes))
	for _, c := range codes {
		out = append(out, Procedure{Code: c, Label: c.Label()})
	}
	return out
}

func (p *Policy) IsProcedureAllowed(t ServiceType, code ProcedureCode) bool {
	for _, c := range p.catalogue[t] {
		if c == code {
			return true
		}
	}
	return false
}

// IsServiceOfferedAtSite reports whether a site has a column for the service.
func (p *Policy) IsServiceOfferedAtSite(t ServiceType, s Site) bool {
	if !t.Valid() {
		return false
	}
	return !p.restricted[s][t]
}

// ServicesForSite lists the grid columns of a site in display order.
func (p *Policy) ServicesForSite(s Site) []ServiceType {
	var out []ServiceType
	for _, t := range []ServiceType{ServicePICC, ServiceMED} {
		if p.IsServiceOfferedAtSite(t, s) {
			out = append(out, t)
		}
	}
	return out
}

// CapacityRemaining returns how many more bookings a slot accepts.
func (p *Policy) CapacityRemaining(existing int) int {
	if r := p.SlotCapacity - existing; r > 0 {
		return r
	}
	return 0
}

func (p *Policy) IsTimeSlot(label string) bool {
	for _, s := range p.TimeSlots {
		if s == label {
			return true
		}
	}
	return false
}

// IsEligible reports whether a patient of type pt can be booked into a slot of service st.
func IsEligible(pt PatientType, st ServiceType) bool {
	return pt == PatientType(st) || pt == PatientPICCMED
}

// ValidateBooking checks the static rules of an appointment. Capacity is not
// checked here since it depends on the current occupancy.
func (p *Policy) ValidateBooking(s Site, t ServiceType, timeSlot string, procedures []ProcedureCode) error {
	if !t.Valid() {
		return ErrInvalidServiceType
	}
	if !p.IsServiceOfferedAtSite(t, s) {
		return fmt.Errorf("%w: %s @ %s", ErrServiceNotOffered, t, s)
	}
	if !p.IsTimeSlot(timeSlot) {
		return fmt.Errorf("%w: %s", ErrUnknownTimeSlot, timeSlot)
	}
	if len(procedures) == 0 {
		return ErrNoProcedures
	}
	for _, code := range procedures {
		if !p.IsProcedureAllowed(t, code) {
			return fmt.Errorf("%w: %s (%s)", ErrUnknownProcedure, code, t)
		}
	}
	return nil
}

// MorningAfternoon splits the slot list at the lunch gap, the first jump
// longer than the step between the first two slots.
func (p *Policy) MorningAfternoon() (morning, afternoon []string) {
	split := len(p.TimeSlots)
	if len(p.TimeSlots) < 2 {
		return append(morning, p.TimeSlots...), afternoon
	}
	step := minutesOf(p.TimeSlots[1]) - minutesOf(p.TimeSlots[0])
	for i := 1; i < len(p.TimeSlots); i++ {
		if minutesOf(p.TimeSlots[i])-minutesOf(p.TimeSlots[i-1]) > step {
			split = i
			break
		}
	}
	morning = append(morning, p.TimeSlots[:split]...)
	afternoon = append(afternoon, p.TimeSlots[split:]...)
	return morning, afternoon
}

func minutesOf(label string) int {
	var h, m int
	if _, err := fmt.Sscanf(label, "%d:%d", &h, &m); err != nil {
		return 0
	}
	return h*60 + m
}
