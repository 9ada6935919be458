package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ambulatorio/ambulatorio/internal/agenda"
	"github.com/ambulatorio/ambulatorio/internal/apiclient"
	"github.com/ambulatorio/ambulatorio/internal/config"
	"github.com/ambulatorio/ambulatorio/internal/domain/calendar"
	"github.com/ambulatorio/ambulatorio/internal/domain/clinic"
)

type agendaFlags struct {
	site  string
	date  string
	api   string
	token string
}

func agendaCmd() *cobra.Command {
	flags := &agendaFlags{}
	cmd := &cobra.Command{
		Use:   "agenda",
		Short: "Daily agenda of a site",
	}
	cmd.PersistentFlags().StringVar(&flags.site, "ambulatorio", string(clinic.SitePTACentro), "Site")
	cmd.PersistentFlags().StringVar(&flags.date, "data", "", "Date yyyy-MM-dd (default first working day from today)")
	cmd.PersistentFlags().StringVar(&flags.api, "api", "", "API base URL (default API_BASE_URL)")
	cmd.PersistentFlags().StringVar(&flags.token, "token", "", "Bearer token (default API_TOKEN)")

	cmd.AddCommand(agendaShowCmd(flags))
	cmd.AddCommand(agendaBookCmd(flags))
	cmd.AddCommand(agendaCancelCmd(flags))
	cmd.AddCommand(agendaQuickBookCmd(flags))
	return cmd
}

// openAgenda builds a controller against the configured backend and loads
// the requested day.
func openAgenda(ctx context.Context, flags *agendaFlags) (*agenda.Controller, error) {
	cfg, err := config.LoadClient()
	if err != nil {
		return nil, err
	}
	site, err := clinic.ParseSite(flags.site)
	if err != nil {
		return nil, err
	}
	baseURL := cfg.APIBaseURL
	if flags.api != "" {
		baseURL = flags.api
	}
	token := cfg.APIToken
	if flags.token != "" {
		token = flags.token
	}

	// Logs go to stderr so the grid on stdout can be piped.
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger().Level(zerolog.InfoLevel)
	session := agenda.SessionContext{Site: site, Token: token}
	client := apiclient.ForSession(baseURL, session, cfg.APITimeoutDuration(), apiclient.WithLogger(logger))
	ctrl := agenda.NewController(session, client,
		agenda.WithPolicy(clinic.NewPolicy(cfg.AgendaSlots)),
		agenda.WithNotifier(agenda.LogNotifier{Logger: logger}),
		agenda.WithLogger(logger),
		agenda.WithLocation(cfg.Location()),
	)
	return ctrl, loadDay(ctx, ctrl, flags.date)
}

func loadDay(ctx context.Context, ctrl *agenda.Controller, date string) error {
	if date == "" {
		return ctrl.Start(ctx)
	}
	d, err := calendar.ParseISO(date)
	if err != nil {
		return err
	}
	return ctrl.NavigateToDate(ctx, d)
}

func printGrid(w io.Writer, ctrl *agenda.Controller) error {
	return agenda.RenderText(w, agenda.BuildGrid(ctrl.State(), ctrl.Policy()))
}

func agendaShowCmd(flags *agendaFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the day grid",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl, err := openAgenda(cmd.Context(), flags)
			if err != nil {
				return err
			}
			return printGrid(cmd.OutOrStdout(), ctrl)
		},
	}
}

type bookFlags struct {
	time       string
	service    string
	patient    string
	procedures string
	nome       string
	cognome    string
}

func (f *bookFlags) slot() (agenda.Slot, error) {
	svc, err := clinic.ParseServiceType(strings.ToUpper(f.service))
	if err != nil {
		return agenda.Slot{}, err
	}
	return agenda.Slot{Time: f.time, Service: svc}, nil
}

func (f *bookFlags) procedureCodes() []clinic.ProcedureCode {
	var out []clinic.ProcedureCode
	for _, p := range strings.Split(f.procedures, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, clinic.ProcedureCode(p))
		}
	}
	return out
}

func addSlotFlags(cmd *cobra.Command, f *bookFlags) {
	cmd.Flags().StringVar(&f.time, "ora", "", "Time slot HH:MM")
	cmd.Flags().StringVar(&f.service, "tipo", string(clinic.ServicePICC), "Service PICC or MED")
	cmd.Flags().StringVar(&f.procedures, "prestazioni", "", "Comma separated procedure codes")
	_ = cmd.MarkFlagRequired("ora")
	_ = cmd.MarkFlagRequired("prestazioni")
}

func agendaBookCmd(flags *agendaFlags) *cobra.Command {
	bf := &bookFlags{}
	cmd := &cobra.Command{
		Use:   "book",
		Short: "Book a patient of the directory into a slot",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ctrl, err := openAgenda(ctx, flags)
			if err != nil {
				return err
			}
			slot, err := bf.slot()
			if err != nil {
				return err
			}
			if err := ctrl.ClickSlot(slot); err != nil {
				return userError(err)
			}
			if ctrl.State().Booking == nil {
				return errors.New("Giorno non lavorativo")
			}
			id, err := pickPatient(ctrl, bf.patient)
			if err != nil {
				return err
			}
			if err := ctrl.SelectPatient(id); err != nil {
				return userError(err)
			}
			return confirm(ctx, cmd.OutOrStdout(), ctrl, bf.procedureCodes())
		},
	}
	addSlotFlags(cmd, bf)
	cmd.Flags().StringVar(&bf.patient, "paziente", "", "Patient id or name search")
	_ = cmd.MarkFlagRequired("paziente")
	return cmd
}

// pickPatient resolves an id or a search text to exactly one patient.
func pickPatient(ctrl *agenda.Controller, query string) (string, error) {
	for _, p := range ctrl.State().Patients {
		if p.ID == query {
			return p.ID, nil
		}
	}
	found, err := ctrl.SearchPatients(query)
	if err != nil {
		return "", userError(err)
	}
	switch len(found) {
	case 0:
		return "", fmt.Errorf("nessun paziente trovato per %q", query)
	case 1:
		return found[0].ID, nil
	}
	names := make([]string, len(found))
	for i, p := range found {
		names[i] = fmt.Sprintf("%s (%s)", p.DisplayName(), p.ID)
	}
	return "", fmt.Errorf("ricerca ambigua, %d pazienti: %s", len(found), strings.Join(names, ", "))
}

func confirm(ctx context.Context, w io.Writer, ctrl *agenda.Controller, codes []clinic.ProcedureCode) error {
	for _, code := range codes {
		if err := ctrl.ToggleProcedure(code); err != nil {
			return userError(err)
		}
	}
	a, err := ctrl.ConfirmBooking(ctx)
	if err != nil && a == nil {
		return userError(err)
	}
	fmt.Fprintf(w, "Prenotato %s alle %s (%s)\n", a.ID, a.Ora, a.Tipo)
	return printGrid(w, ctrl)
}

func agendaCancelCmd(flags *agendaFlags) *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "cancel",
		Short: "Delete an appointment",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl, err := openAgenda(cmd.Context(), flags)
			if err != nil {
				return err
			}
			if err := ctrl.DeleteAppointment(cmd.Context(), id); err != nil {
				return userError(err)
			}
			return printGrid(cmd.OutOrStdout(), ctrl)
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "Appointment id")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func agendaQuickBookCmd(flags *agendaFlags) *cobra.Command {
	bf := &bookFlags{}
	cmd := &cobra.Command{
		Use:   "quick-book",
		Short: "Register a new patient and book it into a slot",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ctrl, err := openAgenda(ctx, flags)
			if err != nil {
				return err
			}
			slot, err := bf.slot()
			if err != nil {
				return err
			}
			if err := ctrl.ClickSlot(slot); err != nil {
				return userError(err)
			}
			if ctrl.State().Booking == nil {
				return errors.New("Giorno non lavorativo")
			}
			if err := ctrl.OpenQuickCreate(); err != nil {
				return userError(err)
			}
			p, err := ctrl.QuickCreatePatient(ctx, bf.nome, bf.cognome)
			if err != nil {
				return userError(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Creato paziente %s (%s)\n", p.DisplayName(), p.ID)
			return confirm(ctx, cmd.OutOrStdout(), ctrl, bf.procedureCodes())
		},
	}
	addSlotFlags(cmd, bf)
	cmd.Flags().StringVar(&bf.nome, "nome", "", "First name")
	cmd.Flags().StringVar(&bf.cognome, "cognome", "", "Surname")
	return cmd
}

// userError replaces err with the text the agenda shows for it.
func userError(err error) error {
	if err == nil {
		return nil
	}
	return errors.New(agenda.Message(err))
}
