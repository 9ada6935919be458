package agenda

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/ambulatorio/ambulatorio/internal/domain/calendar"
)

var (
	// ErrSlotFull is the local pre-check failing when a slot has no room left.
	ErrSlotFull = errors.New("Slot pieno")
	// ErrInFlight rejects a second issuance of an action still in progress.
	ErrInFlight = errors.New("operazione già in corso")
	// ErrInvalidState rejects an action the current state does not allow.
	ErrInvalidState = errors.New("operazione non disponibile")
	// ErrCalendarExhausted is returned when no working day can be found.
	ErrCalendarExhausted = calendar.ErrCalendarExhausted
)

// ValidationError is a local check failing before any network call.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func validationError(field, msg string) *ValidationError {
	return &ValidationError{Field: field, Message: msg}
}

// RemoteKind classifies a backend failure.
type RemoteKind int

const (
	// Rejection is a 4xx answer, usually with a detail message.
	Rejection RemoteKind = iota + 1
	// Unavailable covers network errors, timeouts, 5xx and unreadable bodies.
	Unavailable
)

func (k RemoteKind) String() string {
	switch k {
	case Rejection:
		return "rejection"
	case Unavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// RemoteError is a failed backend call.
type RemoteError struct {
	Kind   RemoteKind
	Op     string
	Status int
	Detail string
	Err    error
}

func (e *RemoteError) Error() string {
	switch {
	case e.Detail != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Detail)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.Status != 0:
		return fmt.Sprintf("%s: HTTP %d", e.Op, e.Status)
	default:
		return e.Op + ": " + e.Kind.String()
	}
}

func (e *RemoteError) Unwrap() error { return e.Err }

// IsWrite reports whether the failed call was a mutation.
func (e *RemoteError) IsWrite() bool {
	switch e.Op {
	case OpCreateAppointment, OpDeleteAppointment, OpCreatePatient:
		return true
	}
	return false
}

// Backend operation names carried by RemoteError.Op.
const (
	OpListAppointments  = "list appointments"
	OpCreateAppointment = "create appointment"
	OpDeleteAppointment = "delete appointment"
	OpListPatients      = "list patients"
	OpCreatePatient     = "create patient"
	OpHolidays          = "holidays"
)

// RemoteFromStatus builds the error of a non-2xx answer.
func RemoteFromStatus(op string, status int, detail string) *RemoteError {
	kind := Rejection
	if status >= http.StatusInternalServerError {
		kind = Unavailable
	}
	return &RemoteError{Kind: kind, Op: op, Status: status, Detail: detail}
}

// asRemote wraps errors that did not come from the backend client, such as
// a cancelled context, as Unavailable.
func asRemote(op string, err error) error {
	var re *RemoteError
	if errors.As(err, &re) {
		return err
	}
	return &RemoteError{Kind: Unavailable, Op: op, Err: err}
}

const (
	msgLoadFailed  = "Impossibile caricare i dati, riprova"
	msgSaveFailed  = "Impossibile salvare, riprova"
	msgRejected    = "Operazione rifiutata dal server"
	msgSlotFull    = "Slot pieno"
	msgNoWorkday   = "Nessun giorno lavorativo disponibile"
	msgUnavailable = "Operazione non disponibile"
)

// Message turns any controller error into the text shown to the user.
func Message(err error) string {
	var (
		ve *ValidationError
		re *RemoteError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &ve):
		return ve.Message
	case errors.As(err, &re):
		if re.Kind == Rejection {
			if re.Detail != "" {
				return re.Detail
			}
			return msgRejected
		}
		if re.IsWrite() {
			return msgSaveFailed
		}
		return msgLoadFailed
	case errors.Is(err, ErrSlotFull):
		return msgSlotFull
	case errors.Is(err, ErrCalendarExhausted):
		return msgNoWorkday
	case errors.Is(err, ErrInFlight):
		return ErrInFlight.Error()
	case errors.Is(err, ErrInvalidState):
		return msgUnavailable
	default:
		return err.Error()
	}
}
