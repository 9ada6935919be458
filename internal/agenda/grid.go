package agenda

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/ambulatorio/ambulatorio/internal/domain/clinic"
)

const bannerNonWorking = "Giorno non lavorativo: prenotazioni disabilitate"

// Chip is one booked patient inside a cell.
type Chip struct {
	AppointmentID string
	Surname       string
	Tooltip       string
	Deleting      bool
}

type Cell struct {
	Slot      Slot
	Chips     []Chip
	Remaining int
	CanAdd    bool
	Disabled  bool
}

type Row struct {
	Time      string
	Afternoon bool
	Cells     []Cell
}

// Grid is the time by service projection of a loaded day.
type Grid struct {
	Date       string
	Site       clinic.Site
	Columns    []clinic.ServiceType
	Rows       []Row
	NonWorking bool
	Banner     string
	Loading    bool
}

// BuildGrid projects a controller state onto the slot grid of its site.
func BuildGrid(s State, policy *clinic.Policy) Grid {
	g := Grid{
		Date:       s.DateISO(),
		Site:       s.Site,
		Columns:    policy.ServicesForSite(s.Site),
		NonWorking: s.NonWorking,
		Loading:    s.Loading && !s.Loaded,
	}
	if g.NonWorking {
		g.Banner = bannerNonWorking
	}

	_, afternoon := policy.MorningAfternoon()
	isAfternoon := make(map[string]bool, len(afternoon))
	for _, t := range afternoon {
		isAfternoon[t] = true
	}

	for _, t := range policy.TimeSlots {
		row := Row{Time: t, Afternoon: isAfternoon[t]}
		for _, svc := range g.Columns {
			slot := Slot{Time: t, Service: svc}
			booked := s.AppointmentsAt(slot)
			cell := Cell{
				Slot:      slot,
				Remaining: policy.CapacityRemaining(len(booked)),
				Disabled:  g.NonWorking || !s.Loaded,
			}
			for _, a := range booked {
				cell.Chips = append(cell.Chips, Chip{
					AppointmentID: a.ID,
					Surname:       a.PatientCognome,
					Tooltip:       procedureTooltip(a.Prestazioni),
					Deleting:      s.Deleting[a.ID],
				})
			}
			cell.CanAdd = !cell.Disabled && cell.Remaining > 0
			row.Cells = append(row.Cells, cell)
		}
		g.Rows = append(g.Rows, row)
	}
	return g
}

func procedureTooltip(codes []clinic.ProcedureCode) string {
	labels := make([]string, len(codes))
	for i, c := range codes {
		labels[i] = c.Label()
	}
	return strings.Join(labels, ", ")
}

// CellAt returns the cell at row and column, the coordinates a view
// dispatches clicks with.
func (g Grid) CellAt(row, col int) (Cell, bool) {
	if row < 0 || row >= len(g.Rows) || col < 0 || col >= len(g.Rows[row].Cells) {
		return Cell{}, false
	}
	return g.Rows[row].Cells[col], true
}

// Find returns the cell of a slot. A service the site does not offer has no
// cell.
func (g Grid) Find(slot Slot) (Cell, bool) {
	for _, r := range g.Rows {
		if r.Time != slot.Time {
			continue
		}
		for _, c := range r.Cells {
			if c.Slot.Service == slot.Service {
				return c, true
			}
		}
	}
	return Cell{}, false
}

// RenderText writes the grid as an aligned table. Free places are shown as
// "+" and disabled cells as "-".
func RenderText(w io.Writer, g Grid) error {
	if _, err := fmt.Fprintf(w, "%s  %s\n", g.Site, g.Date); err != nil {
		return err
	}
	if g.Banner != "" {
		if _, err := fmt.Fprintf(w, "!! %s\n", g.Banner); err != nil {
			return err
		}
	}
	if g.Loading {
		_, err := fmt.Fprintln(w, "caricamento...")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	header := []string{"Ora"}
	for _, c := range g.Columns {
		header = append(header, string(c))
	}
	fmt.Fprintln(tw, strings.Join(header, "\t"))

	afternoonSeen := false
	for _, r := range g.Rows {
		if r.Afternoon && !afternoonSeen {
			afternoonSeen = true
			fmt.Fprintln(tw, strings.Repeat("\t", len(g.Columns)))
		}
		fields := []string{r.Time}
		for _, c := range r.Cells {
			fields = append(fields, renderCell(c))
		}
		fmt.Fprintln(tw, strings.Join(fields, "\t"))
	}
	return tw.Flush()
}

func renderCell(c Cell) string {
	var parts []string
	for _, ch := range c.Chips {
		label := ch.Surname
		if ch.Tooltip != "" {
			label += " (" + ch.Tooltip + ")"
		}
		parts = append(parts, label)
	}
	switch {
	case c.Disabled:
		parts = append(parts, "-")
	case c.CanAdd:
		parts = append(parts, strings.Repeat("+", c.Remaining))
	}
	return strings.Join(parts, " | ")
}
