package workflow

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"ticketdesk/internal/events"
	"ticketdesk/internal/mailer"
	"ticketdesk/internal/models"
	"ticketdesk/internal/notify"
	"ticketdesk/internal/pdf"
	"ticketdesk/internal/utils"
)

type IssuanceState int

const (
	Editing IssuanceState = iota
	Submitting
	Succeeded
	Failed
)

func (s IssuanceState) String() string {
	switch s {
	case Editing:
		return "editing"
	case Submitting:
		return "submitting"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("IssuanceState(%d)", int(s))
	}
}

// Issuance owns the ticket form. A successful submission clears it; any
// failure leaves it exactly as the operator typed it.
type Issuance struct {
	deps Deps

	mu    sync.Mutex
	state IssuanceState
	draft models.TicketRequest
}

func NewIssuance(deps Deps) *Issuance {
	return &Issuance{deps: deps.withDefaults()}
}

// SetDraft replaces the form contents. Editing after a finished submission
// puts the form back in Editing.
func (w *Issuance) SetDraft(d models.TicketRequest) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state == Submitting {
		return ErrSubmitting
	}
	w.draft = d
	w.state = Editing
	return nil
}

func (w *Issuance) Draft() models.TicketRequest {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.draft
}

func (w *Issuance) State() IssuanceState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Submit issues the drafted ticket and saves its receipt, returning where
// the receipt went. Exactly one notification is emitted per call.
func (w *Issuance) Submit(ctx context.Context) (string, error) {
	w.mu.Lock()
	if w.state == Submitting {
		w.mu.Unlock()
		return "", ErrSubmitting
	}
	draft := w.draft
	if missing := draft.Missing(); len(missing) > 0 {
		w.mu.Unlock()
		err := utils.ValidationError(MsgMissingFields)
		w.deps.Log.WithField("missing", strings.Join(missing, ",")).Info("draft incomplete")
		notify.Error(w.deps.Notifier, utils.UserMessage(err))
		return "", err
	}
	w.state = Submitting
	w.mu.Unlock()

	log := w.deps.Log.WithFields(logrus.Fields{"holder": draft.Name, "event": draft.Event})
	path, doc, payload, err := w.issue(ctx, draft)

	w.mu.Lock()
	if err != nil {
		w.state = Failed
	} else {
		w.state = Succeeded
		w.draft = models.TicketRequest{}
	}
	w.mu.Unlock()

	if err != nil {
		log.WithError(err).WithField("kind", utils.KindOf(err).String()).Warn("issuance failed")
		notify.Error(w.deps.Notifier, utils.UserMessage(err))
		return "", err
	}
	log.WithField("file", path).Info("ticket issued")
	notify.Success(w.deps.Notifier, MsgTicketCreated)

	w.afterIssue(ctx, draft, payload, doc)
	return path, nil
}

func (w *Issuance) issue(ctx context.Context, draft models.TicketRequest) (path string, doc []byte, payload string, err error) {
	payload, err = w.deps.Backend.CreateTicket(ctx, draft)
	if err != nil {
		return "", nil, "", err
	}
	code, err := w.deps.Render(payload, w.deps.ReceiptQRSize)
	if err != nil {
		return "", nil, "", err
	}
	doc, err = w.deps.Assembler.Simple(pdf.Receipt{Name: draft.Name, Email: draft.Email, Event: draft.Event}, code)
	if err != nil {
		return "", nil, "", err
	}
	path, err = w.deps.Saver.Save(pdf.FileName(draft.Name), doc)
	if err != nil {
		return "", nil, "", fmt.Errorf("save receipt: %w", err)
	}
	return path, doc, payload, nil
}

// afterIssue runs the optional side channels. Their failures are logged and
// never turn a successful issuance into a failed one.
func (w *Issuance) afterIssue(ctx context.Context, draft models.TicketRequest, payload string, doc []byte) {
	name := pdf.FileName(draft.Name)
	err := w.deps.Publisher.Publish(ctx, events.TopicTicketIssued, events.TicketIssuedMessage{
		TicketCode:     payload,
		HolderName:     draft.Name,
		RecipientEmail: draft.Email,
		Event:          draft.Event,
		FileName:       name,
		Station:        w.deps.Station,
		IssuedAt:       time.Now().UTC(),
	})
	if err != nil {
		w.deps.Log.WithError(err).Warn("ticket.issued not published")
	}
	if w.deps.Mailer == nil {
		return
	}
	err = w.deps.Mailer.SendTicket(ctx, mailer.Ticket{
		To:       draft.Email,
		Name:     draft.Name,
		Event:    draft.Event,
		FileName: name,
		PDF:      doc,
	})
	if err != nil {
		w.deps.Log.WithError(err).WithField("to", draft.Email).Warn("ticket email not sent")
	}
}
