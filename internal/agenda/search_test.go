package agenda

import (
	"testing"

	"github.com/ambulatorio/ambulatorio/internal/domain/clinic"
)

func TestFilterPatients(t *testing.T) {
	directory := []Patient{
		{ID: "1", Nome: "Mario", Cognome: "Rossi", Tipo: clinic.PatientPICC, Status: clinic.StatusInCura},
		{ID: "2", Nome: "Rosa", Cognome: "Bianchi", Tipo: clinic.PatientMED, Status: clinic.StatusInCura},
		{ID: "3", Nome: "Ugo", Cognome: "Rossetti", Tipo: clinic.PatientPICCMED, Status: clinic.StatusInCura},
		{ID: "4", Nome: "Ada", Cognome: "Rossini", Tipo: clinic.PatientPICC, Status: clinic.StatusDimesso},
		{ID: "5", Nome: "Pia", Cognome: "Rosselli", Tipo: clinic.PatientPICC},
	}

	tests := []struct {
		name    string
		query   string
		service clinic.ServiceType
		want    []string
	}{
		{"empty query", "", clinic.ServicePICC, nil},
		{"blank query", "   ", clinic.ServicePICC, nil},
		{"case insensitive surname", "ROSS", clinic.ServicePICC, []string{"1", "3", "5"}},
		{"matches nome", "ros", clinic.ServiceMED, []string{"2", "3"}},
		{"ineligible excluded", "rossi", clinic.ServiceMED, nil},
		{"no match", "zzz", clinic.ServicePICC, nil},
		{"trailing space kept", "ross ", clinic.ServicePICC, nil},
		{"full surname", "Rossi", clinic.ServicePICC, []string{"1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FilterPatients(tt.query, directory, tt.service)
			if len(got) != len(tt.want) {
				t.Fatalf("expected %v, got %+v", tt.want, got)
			}
			for i, p := range got {
				if p.ID != tt.want[i] {
					t.Errorf("position %d: expected %s, got %s", i, tt.want[i], p.ID)
				}
			}
		})
	}
}

func TestPatient_DisplayName(t *testing.T) {
	p := Patient{Nome: "Mario", Cognome: "Rossi"}
	if got := p.DisplayName(); got != "Rossi Mario" {
		t.Errorf("expected surname first, got %q", got)
	}
}
