package clinic

import "fmt"

// Site is one of the two physical clinic locations ("ambulatorio").
type Site string

const (
	SitePTACentro     Site = "pta_centro"
	SiteVillaGinestre Site = "villa_ginestre"
)

var knownSites = map[Site]bool{SitePTACentro: true, SiteVillaGinestre: true}

// Sites returns the known sites in display order.
func Sites() []Site { return []Site{SitePTACentro, SiteVillaGinestre} }

func (s Site) Valid() bool { return knownSites[s] }

// ParseSite validates a raw site value.
func ParseSite(raw string) (Site, error) {
	s := Site(raw)
	if !s.Valid() {
		return "", fmt.Errorf("invalid ambulatorio: %q", raw)
	}
	return s, nil
}

// ServiceType identifies a grid column: catheter care or wound care.
type ServiceType string

const (
	ServicePICC ServiceType = "PICC"
	ServiceMED  ServiceType = "MED"
)

func (t ServiceType) Valid() bool { return t == ServicePICC || t == ServiceMED }

// ParseServiceType validates a raw service type value.
func ParseServiceType(raw string) (ServiceType, error) {
	t := ServiceType(raw)
	if !t.Valid() {
		return "", fmt.Errorf("invalid tipo: %q", raw)
	}
	return t, nil
}

// PatientType is the kind of care a patient is enrolled for.
type PatientType string

const (
	PatientPICC    PatientType = "PICC"
	PatientMED     PatientType = "MED"
	PatientPICCMED PatientType = "PICC_MED"
)

func (t PatientType) Valid() bool {
	return t == PatientPICC || t == PatientMED || t == PatientPICCMED
}

// PatientTypeFor returns the patient type matching a single service.
func PatientTypeFor(s ServiceType) PatientType { return PatientType(s) }

// PatientStatus is the care status of a patient. Only in-care patients can be booked.
type PatientStatus string

const (
	StatusInCura  PatientStatus = "in_cura"
	StatusDimesso PatientStatus = "dimesso"
	StatusSospeso PatientStatus = "sospeso"
)

func (s PatientStatus) Valid() bool {
	return s == StatusInCura || s == StatusDimesso || s == StatusSospeso
}

// ProcedureCode is a clinical action ("prestazione") attached to an appointment.
type ProcedureCode string

const (
	ProcMedicazioneSemplice  ProcedureCode = "medicazione_semplice"
	ProcIrrigazioneCatetere  ProcedureCode = "irrigazione_catetere"
	ProcFasciaturaSemplice   ProcedureCode = "fasciatura_semplice"
	ProcIniezioneTerapeutica ProcedureCode = "iniezione_terapeutica"
	ProcCatetereVescicale    ProcedureCode = "catetere_vescicale"
)

// Procedure is a catalogue entry with its display label.
type Procedure struct {
	Code  ProcedureCode `json:"id"`
	Label string        `json:"label"`
}

var procedureLabels = map[ProcedureCode]string{
	ProcMedicazioneSemplice:  "Medicazione semplice",
	ProcIrrigazioneCatetere:  "Irrigazione catetere",
	ProcFasciaturaSemplice:   "Fasciatura semplice",
	ProcIniezioneTerapeutica: "Iniezione terapeutica",
	ProcCatetereVescicale:    "Catetere vescicale",
}

// Label returns the display label of a procedure code, or the code itself when unknown.
func (c ProcedureCode) Label() string {
	if l, ok := procedureLabels[c]; ok {
		return l
	}
	return string(c)
}
