package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ambulatorio/ambulatorio/internal/domain/calendar"
	"github.com/ambulatorio/ambulatorio/internal/domain/clinic"
)

var (
	ErrNoMEDStats    = errors.New("Villa delle Ginestre non ha statistiche MED")
	ErrInvalidPeriod = errors.New("periodo non valido")
)

// StatsQuery selects a year, or a single month when Month is set.
type StatsQuery struct {
	Site  clinic.Site
	Year  int
	Month int
	Type  clinic.ServiceType
}

func (q StatsQuery) bounds() (from, to string, err error) {
	if q.Year < 1900 || q.Year > 9999 {
		return "", "", fmt.Errorf("%w: anno %d", ErrInvalidPeriod, q.Year)
	}
	if q.Month < 0 || q.Month > 12 {
		return "", "", fmt.Errorf("%w: mese %d", ErrInvalidPeriod, q.Month)
	}
	start := calendar.Date(q.Year, time.January, 1)
	end := start.AddDate(1, 0, 0)
	if q.Month > 0 {
		start = calendar.Date(q.Year, time.Month(q.Month), 1)
		end = start.AddDate(0, 1, 0)
	}
	return calendar.FormatISO(start), calendar.FormatISO(end.AddDate(0, 0, -1)), nil
}

type MonthStats struct {
	Accessi       int            `json:"accessi"`
	PazientiUnici int            `json:"pazienti_unici"`
	Prestazioni   map[string]int `json:"prestazioni"`
}

type Stats struct {
	Anno             int                    `json:"anno"`
	Mese             *int                   `json:"mese"`
	Ambulatorio      clinic.Site            `json:"ambulatorio"`
	Tipo             *string                `json:"tipo"`
	TotaleAccessi    int                    `json:"totale_accessi"`
	PazientiUnici    int                    `json:"pazienti_unici"`
	Prestazioni      map[string]int         `json:"prestazioni"`
	DettaglioMensile map[string]*MonthStats `json:"dettaglio_mensile"`
}

type StatsDiff struct {
	Accessi       int            `json:"accessi"`
	PazientiUnici int            `json:"pazienti_unici"`
	Prestazioni   map[string]int `json:"prestazioni"`
}

type Comparison struct {
	Periodo1   *Stats    `json:"periodo1"`
	Periodo2   *Stats    `json:"periodo2"`
	Differenze StatsDiff `json:"differenze"`
}

// Statistics counts visits, distinct patients and procedures over the
// period. Villa delle Ginestre only reports PICC activity.
func (s *Service) Statistics(ctx context.Context, q StatsQuery) (*Stats, error) {
	if q.Site == clinic.SiteVillaGinestre && q.Type == clinic.ServiceMED {
		return nil, ErrNoMEDStats
	}
	from, to, err := q.bounds()
	if err != nil {
		return nil, err
	}
	filter := ListFilter{Site: q.Site, From: from, To: to, Type: q.Type}
	if filter.Type == "" && !s.policy.IsServiceOfferedAtSite(clinic.ServiceMED, q.Site) {
		filter.Type = clinic.ServicePICC
	}
	items, err := s.appointments.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	st := &Stats{
		Anno:             q.Year,
		Ambulatorio:      q.Site,
		Prestazioni:      map[string]int{},
		DettaglioMensile: map[string]*MonthStats{},
	}
	if q.Month > 0 {
		m := q.Month
		st.Mese = &m
	}
	if q.Type != "" {
		t := string(q.Type)
		st.Tipo = &t
	}

	patients := map[string]bool{}
	monthPatients := map[string]map[string]bool{}
	for _, a := range items {
		pid := a.PatientID.String()
		month := a.Data[:7]
		ms, ok := st.DettaglioMensile[month]
		if !ok {
			ms = &MonthStats{Prestazioni: map[string]int{}}
			st.DettaglioMensile[month] = ms
			monthPatients[month] = map[string]bool{}
		}
		st.TotaleAccessi++
		ms.Accessi++
		patients[pid] = true
		monthPatients[month][pid] = true
		for _, p := range a.Prestazioni {
			st.Prestazioni[string(p)]++
			ms.Prestazioni[string(p)]++
		}
	}
	st.PazientiUnici = len(patients)
	for month, ms := range st.DettaglioMensile {
		ms.PazientiUnici = len(monthPatients[month])
	}
	return st, nil
}

// Compare computes the statistics of two periods and the change from the
// first to the second.
func (s *Service) Compare(ctx context.Context, first, second StatsQuery) (*Comparison, error) {
	s1, err := s.Statistics(ctx, first)
	if err != nil {
		return nil, err
	}
	s2, err := s.Statistics(ctx, second)
	if err != nil {
		return nil, err
	}
	diff := StatsDiff{
		Accessi:       s2.TotaleAccessi - s1.TotaleAccessi,
		PazientiUnici: s2.PazientiUnici - s1.PazientiUnici,
		Prestazioni:   map[string]int{},
	}
	for k, v := range s1.Prestazioni {
		diff.Prestazioni[k] = s2.Prestazioni[k] - v
	}
	for k, v := range s2.Prestazioni {
		if _, ok := s1.Prestazioni[k]; !ok {
			diff.Prestazioni[k] = v
		}
	}
	return &Comparison{Periodo1: s1, Periodo2: s2, Differenze: diff}, nil
}
