package scheduling

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ambulatorio/ambulatorio/internal/domain/clinic"
	"github.com/ambulatorio/ambulatorio/internal/domain/patient"
)

// -- Mocks --

type mockApptRepo struct {
	appts map[uuid.UUID]*Appointment
}

func newMockApptRepo() *mockApptRepo {
	return &mockApptRepo{appts: make(map[uuid.UUID]*Appointment)}
}

func (m *mockApptRepo) CreateChecked(_ context.Context, a *Appointment, capacity int) error {
	n := 0
	for _, existing := range m.appts {
		if existing.SlotKey() == a.SlotKey() {
			n++
		}
	}
	if n >= capacity {
		return ErrSlotFull
	}
	a.ID = uuid.New()
	a.CreatedAt = time.Now()
	m.appts[a.ID] = a
	return nil
}

func (m *mockApptRepo) GetByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	a, ok := m.appts[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *mockApptRepo) Update(_ context.Context, a *Appointment) error {
	if _, ok := m.appts[a.ID]; !ok {
		return ErrNotFound
	}
	m.appts[a.ID] = a
	return nil
}

func (m *mockApptRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.appts[id]; !ok {
		return ErrNotFound
	}
	delete(m.appts, id)
	return nil
}

func (m *mockApptRepo) List(_ context.Context, f ListFilter) ([]*Appointment, error) {
	out := []*Appointment{}
	for _, a := range m.appts {
		if f.Site != "" && a.Ambulatorio != f.Site {
			continue
		}
		if f.Date != "" && a.Data != f.Date {
			continue
		}
		if f.Date == "" && f.From != "" && (a.Data < f.From || a.Data > f.To) {
			continue
		}
		if f.Type != "" && a.Tipo != f.Type {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Data != out[j].Data {
			return out[i].Data < out[j].Data
		}
		return out[i].Ora < out[j].Ora
	})
	return out, nil
}

type mockPatients struct {
	patients map[uuid.UUID]*patient.Patient
}

func (m *mockPatients) Get(_ context.Context, id uuid.UUID) (*patient.Patient, error) {
	p, ok := m.patients[id]
	if !ok {
		return nil, patient.ErrNotFound
	}
	return p, nil
}

func (m *mockPatients) add(nome, cognome string, tipo clinic.PatientType, site clinic.Site, status clinic.PatientStatus) *patient.Patient {
	p := &patient.Patient{ID: uuid.New(), Nome: nome, Cognome: cognome, Tipo: tipo, Ambulatorio: site, Status: status}
	m.patients[p.ID] = p
	return p
}

func newTestService() (*Service, *mockApptRepo, *mockPatients) {
	repo := newMockApptRepo()
	pts := &mockPatients{patients: make(map[uuid.UUID]*patient.Patient)}
	return NewService(repo, pts, clinic.DefaultPolicy()), repo, pts
}

// 2026-10-20 is a Tuesday.
const workingDay = "2026-10-20"

func booking(p *patient.Patient, site clinic.Site, tipo clinic.ServiceType, data, ora string, procs ...clinic.ProcedureCode) *Appointment {
	return &Appointment{PatientID: p.ID, Ambulatorio: site, Data: data, Ora: ora, Tipo: tipo, Prestazioni: procs}
}

// -- Tests --

func TestService_Create(t *testing.T) {
	svc, _, pts := newTestService()
	p := pts.add("Maria", "Rossi", clinic.PatientPICC, clinic.SitePTACentro, clinic.StatusInCura)

	a := booking(p, clinic.SitePTACentro, clinic.ServicePICC, workingDay, "09:00", clinic.ProcMedicazioneSemplice)
	if err := svc.Create(context.Background(), a); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.ID == uuid.Nil {
		t.Error("expected ID to be assigned")
	}
	if a.PatientCognome != "Rossi" || a.PatientNome != "Maria" {
		t.Errorf("expected denormalised patient names, got %q %q", a.PatientCognome, a.PatientNome)
	}
}

func TestService_Create_SlotCapacity(t *testing.T) {
	svc, repo, pts := newTestService()
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		p := pts.add("P", "Uno", clinic.PatientPICC, clinic.SitePTACentro, clinic.StatusInCura)
		if err := svc.Create(ctx, booking(p, clinic.SitePTACentro, clinic.ServicePICC, workingDay, "09:00", clinic.ProcIrrigazioneCatetere)); err != nil {
			t.Fatalf("booking %d: %v", i, err)
		}
	}
	p := pts.add("P", "Tre", clinic.PatientPICC, clinic.SitePTACentro, clinic.StatusInCura)
	err := svc.Create(ctx, booking(p, clinic.SitePTACentro, clinic.ServicePICC, workingDay, "09:00", clinic.ProcIrrigazioneCatetere))
	if !errors.Is(err, ErrSlotFull) {
		t.Fatalf("expected ErrSlotFull, got %v", err)
	}

	// Other slots on the same day are unaffected.
	if err := svc.Create(ctx, booking(p, clinic.SitePTACentro, clinic.ServicePICC, workingDay, "09:30", clinic.ProcIrrigazioneCatetere)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(repo.appts) != 3 {
		t.Errorf("expected 3 appointments stored, got %d", len(repo.appts))
	}
}

func TestService_Create_Rules(t *testing.T) {
	svc, _, pts := newTestService()
	picc := pts.add("A", "Picc", clinic.PatientPICC, clinic.SitePTACentro, clinic.StatusInCura)
	both := pts.add("B", "Both", clinic.PatientPICCMED, clinic.SitePTACentro, clinic.StatusInCura)
	villa := pts.add("C", "Villa", clinic.PatientPICC, clinic.SiteVillaGinestre, clinic.StatusInCura)
	discharged := pts.add("D", "Dimesso", clinic.PatientPICC, clinic.SitePTACentro, clinic.StatusDimesso)
	unknown := &patient.Patient{ID: uuid.New()}

	tests := []struct {
		name string
		a    *Appointment
		want error
	}{
		{"no procedures", booking(picc, clinic.SitePTACentro, clinic.ServicePICC, workingDay, "09:00"), clinic.ErrNoProcedures},
		{"procedure of other catalogue", booking(picc, clinic.SitePTACentro, clinic.ServicePICC, workingDay, "09:00", clinic.ProcCatetereVescicale), clinic.ErrUnknownProcedure},
		{"MED at villa", booking(villa, clinic.SiteVillaGinestre, clinic.ServiceMED, workingDay, "09:00", clinic.ProcMedicazioneSemplice), clinic.ErrServiceNotOffered},
		{"lunch gap", booking(picc, clinic.SitePTACentro, clinic.ServicePICC, workingDay, "13:00", clinic.ProcMedicazioneSemplice), clinic.ErrUnknownTimeSlot},
		{"saturday", booking(picc, clinic.SitePTACentro, clinic.ServicePICC, "2026-10-24", "09:00", clinic.ProcMedicazioneSemplice), ErrNonWorkingDay},
		{"immacolata", booking(picc, clinic.SitePTACentro, clinic.ServicePICC, "2026-12-08", "09:00", clinic.ProcMedicazioneSemplice), ErrNonWorkingDay},
		{"bad date", booking(picc, clinic.SitePTACentro, clinic.ServicePICC, "20/10/2026", "09:00", clinic.ProcMedicazioneSemplice), ErrInvalidDate},
		{"unknown patient", booking(unknown, clinic.SitePTACentro, clinic.ServicePICC, workingDay, "09:00", clinic.ProcMedicazioneSemplice), ErrPatientNotFound},
		{"ineligible", booking(picc, clinic.SitePTACentro, clinic.ServiceMED, workingDay, "09:00", clinic.ProcMedicazioneSemplice), ErrPatientIneligible},
		{"discharged", booking(discharged, clinic.SitePTACentro, clinic.ServicePICC, workingDay, "09:00", clinic.ProcMedicazioneSemplice), ErrPatientNotInCare},
		{"other site", booking(villa, clinic.SitePTACentro, clinic.ServicePICC, workingDay, "09:00", clinic.ProcMedicazioneSemplice), ErrPatientOtherSite},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := svc.Create(context.Background(), tt.a); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}

	if err := svc.Create(context.Background(), booking(both, clinic.SitePTACentro, clinic.ServiceMED, workingDay, "09:00", clinic.ProcFasciaturaSemplice)); err != nil {
		t.Errorf("PICC_MED patient must be bookable on MED: %v", err)
	}
}

func TestService_UpdateAndDelete(t *testing.T) {
	svc, _, pts := newTestService()
	ctx := context.Background()
	p := pts.add("Maria", "Rossi", clinic.PatientPICC, clinic.SitePTACentro, clinic.StatusInCura)
	a := booking(p, clinic.SitePTACentro, clinic.ServicePICC, workingDay, "09:00", clinic.ProcMedicazioneSemplice)
	if err := svc.Create(ctx, a); err != nil {
		t.Fatal(err)
	}

	done := true
	note := "eseguito"
	updated, err := svc.Update(ctx, a.ID, &UpdateRequest{Completed: &done, Note: &note})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !updated.Completed || updated.Note == nil || *updated.Note != "eseguito" {
		t.Errorf("unexpected update result: %+v", updated)
	}
	if updated.Ora != "09:00" || updated.Data != workingDay {
		t.Error("update must never move the slot")
	}

	if err := svc.Delete(ctx, a.ID); err != nil {
		t.Fatal(err)
	}
	if err := svc.Delete(ctx, a.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}

func seed(repo *mockApptRepo, site clinic.Site, tipo clinic.ServiceType, data string, patientID uuid.UUID, procs ...clinic.ProcedureCode) {
	a := &Appointment{ID: uuid.New(), PatientID: patientID, Ambulatorio: site, Data: data, Ora: "09:00", Tipo: tipo, Prestazioni: procs}
	repo.appts[a.ID] = a
}

func TestService_Statistics(t *testing.T) {
	svc, repo, _ := newTestService()
	p1, p2 := uuid.New(), uuid.New()
	seed(repo, clinic.SitePTACentro, clinic.ServicePICC, "2026-03-02", p1, clinic.ProcMedicazioneSemplice, clinic.ProcIrrigazioneCatetere)
	seed(repo, clinic.SitePTACentro, clinic.ServicePICC, "2026-03-09", p1, clinic.ProcMedicazioneSemplice)
	seed(repo, clinic.SitePTACentro, clinic.ServiceMED, "2026-04-01", p2, clinic.ProcFasciaturaSemplice)
	seed(repo, clinic.SitePTACentro, clinic.ServiceMED, "2025-12-31", p2, clinic.ProcFasciaturaSemplice)
	seed(repo, clinic.SiteVillaGinestre, clinic.ServicePICC, "2026-03-02", p1, clinic.ProcMedicazioneSemplice)

	st, err := svc.Statistics(context.Background(), StatsQuery{Site: clinic.SitePTACentro, Year: 2026})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.TotaleAccessi != 3 || st.PazientiUnici != 2 {
		t.Errorf("expected 3 visits by 2 patients, got %d/%d", st.TotaleAccessi, st.PazientiUnici)
	}
	if st.Prestazioni["medicazione_semplice"] != 2 || st.Prestazioni["fasciatura_semplice"] != 1 {
		t.Errorf("unexpected procedure counts: %v", st.Prestazioni)
	}
	march := st.DettaglioMensile["2026-03"]
	if march == nil || march.Accessi != 2 || march.PazientiUnici != 1 {
		t.Errorf("unexpected March breakdown: %+v", march)
	}
	if st.Mese != nil || st.Tipo != nil {
		t.Error("expected nil mese and tipo for a yearly query")
	}

	st, err = svc.Statistics(context.Background(), StatsQuery{Site: clinic.SitePTACentro, Year: 2026, Month: 3, Type: clinic.ServicePICC})
	if err != nil {
		t.Fatal(err)
	}
	if st.TotaleAccessi != 2 || st.Mese == nil || *st.Mese != 3 {
		t.Errorf("unexpected monthly stats: %+v", st)
	}
}

func TestService_Statistics_Villa(t *testing.T) {
	svc, repo, _ := newTestService()
	seed(repo, clinic.SiteVillaGinestre, clinic.ServicePICC, "2026-03-02", uuid.New(), clinic.ProcMedicazioneSemplice)
	seed(repo, clinic.SiteVillaGinestre, clinic.ServiceMED, "2026-03-02", uuid.New(), clinic.ProcMedicazioneSemplice)

	if _, err := svc.Statistics(context.Background(), StatsQuery{Site: clinic.SiteVillaGinestre, Year: 2026, Type: clinic.ServiceMED}); !errors.Is(err, ErrNoMEDStats) {
		t.Fatalf("expected ErrNoMEDStats, got %v", err)
	}
	st, err := svc.Statistics(context.Background(), StatsQuery{Site: clinic.SiteVillaGinestre, Year: 2026})
	if err != nil {
		t.Fatal(err)
	}
	if st.TotaleAccessi != 1 {
		t.Errorf("villa statistics must count PICC only, got %d", st.TotaleAccessi)
	}
}

func TestService_Statistics_InvalidPeriod(t *testing.T) {
	svc, _, _ := newTestService()
	for _, q := range []StatsQuery{{Year: 0}, {Year: 2026, Month: 13}} {
		if _, err := svc.Statistics(context.Background(), q); !errors.Is(err, ErrInvalidPeriod) {
			t.Errorf("%+v: expected ErrInvalidPeriod, got %v", q, err)
		}
	}
}

func TestService_Compare(t *testing.T) {
	svc, repo, _ := newTestService()
	p := uuid.New()
	seed(repo, clinic.SitePTACentro, clinic.ServicePICC, "2026-03-02", p, clinic.ProcMedicazioneSemplice)
	seed(repo, clinic.SitePTACentro, clinic.ServicePICC, "2026-04-02", p, clinic.ProcIrrigazioneCatetere)
	seed(repo, clinic.SitePTACentro, clinic.ServicePICC, "2026-04-03", uuid.New(), clinic.ProcIrrigazioneCatetere)

	cmp, err := svc.Compare(context.Background(),
		StatsQuery{Site: clinic.SitePTACentro, Year: 2026, Month: 3},
		StatsQuery{Site: clinic.SitePTACentro, Year: 2026, Month: 4})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	d := cmp.Differenze
	if d.Accessi != 1 || d.PazientiUnici != 1 {
		t.Errorf("unexpected diff: %+v", d)
	}
	if d.Prestazioni["medicazione_semplice"] != -1 || d.Prestazioni["irrigazione_catetere"] != 2 {
		t.Errorf("unexpected procedure diff: %v", d.Prestazioni)
	}
}
