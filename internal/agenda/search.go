package agenda

import (
	"strings"

	"github.com/ambulatorio/ambulatorio/internal/domain/clinic"
)

// FilterPatients returns the patients whose nome or cognome contains query,
// case-insensitively, and who can be booked on service. A blank query
// returns nothing; otherwise the query is matched as typed, spaces included.
func FilterPatients(query string, directory []Patient, service clinic.ServiceType) []Patient {
	if strings.TrimSpace(query) == "" {
		return nil
	}
	q := strings.ToLower(query)
	var out []Patient
	for _, p := range directory {
		if p.Status != "" && p.Status != clinic.StatusInCura {
			continue
		}
		if !clinic.IsEligible(p.Tipo, service) {
			continue
		}
		if strings.Contains(strings.ToLower(p.Nome), q) || strings.Contains(strings.ToLower(p.Cognome), q) {
			out = append(out, p)
		}
	}
	return out
}
