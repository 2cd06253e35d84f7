package workflow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ticketdesk/internal/events"
	"ticketdesk/internal/models"
	"ticketdesk/internal/notify"
	"ticketdesk/internal/pdf"
	"ticketdesk/internal/scanner"
	"ticketdesk/internal/utils"
)

type RedemptionState int

const (
	Listing RedemptionState = iota
	Scanning
)

func (s RedemptionState) String() string {
	switch s {
	case Listing:
		return "listing"
	case Scanning:
		return "scanning"
	default:
		return fmt.Sprintf("RedemptionState(%d)", int(s))
	}
}

// ScanResult is the outcome of a scan that decoded a payload.
type ScanResult struct {
	Payload  string
	Response models.ScanTicketResponse
	Err      error
}

// Redemption owns the ticket list and the single active scan session.
// The list only ever changes by refetching it from the backend.
type Redemption struct {
	deps Deps

	mu      sync.Mutex
	state   RedemptionState
	tickets []models.Ticket
	session *scanner.Session
	gen     uint64
}

func NewRedemption(deps Deps) *Redemption {
	return &Redemption{deps: deps.withDefaults()}
}

func (r *Redemption) State() RedemptionState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Tickets returns the last successfully fetched list.
func (r *Redemption) Tickets() []models.Ticket {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.Ticket(nil), r.tickets...)
}

// Ticket looks a ticket up in the last fetched list.
func (r *Redemption) Ticket(id int) (models.Ticket, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tickets {
		if t.ID == id {
			return t, true
		}
	}
	return models.Ticket{}, false
}

// Load fetches the ticket list. On failure the previous list is kept and
// returned along with the error.
func (r *Redemption) Load(ctx context.Context) ([]models.Ticket, error) {
	tickets, err := r.fetch(ctx)
	if err != nil {
		notify.Error(r.deps.Notifier, MsgListFailed+": "+utils.UserMessage(err))
		return r.Tickets(), err
	}
	return tickets, nil
}

func (r *Redemption) fetch(ctx context.Context) ([]models.Ticket, error) {
	tickets, err := r.deps.Backend.ListTickets(ctx)
	if err != nil {
		r.deps.Log.WithError(err).Warn("ticket list fetch failed")
		return nil, err
	}
	r.mu.Lock()
	r.tickets = append([]models.Ticket(nil), tickets...)
	r.mu.Unlock()
	return tickets, nil
}

// StartScan enters Scanning with sc as the only active scanner. The
// returned channel yields the result of redeeming the decoded payload, or
// is closed without a value when the scan ends without a decode. The
// camera is released before the payload is sent to the backend.
func (r *Redemption) StartScan(ctx context.Context, sc *scanner.Scanner) (<-chan ScanResult, error) {
	results := make(chan ScanResult, 1)
	decoded := make(chan string, 1)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == Scanning {
		return nil, ErrAlreadyScanning
	}
	r.gen++
	gen := r.gen
	r.state = Scanning

	sess := sc.Start(ctx, func(payload string) {
		if r.leaveScanning(gen) {
			decoded <- payload
		}
	})
	r.session = sess
	r.deps.Log.WithField("session", sess.ID).Info("scanning")

	go func() {
		defer close(results)
		<-sess.Done()
		select {
		case payload := <-decoded:
			res, err := r.Redeem(ctx, payload)
			results <- ScanResult{Payload: payload, Response: res, Err: err}
			return
		default:
		}
		if !sess.Delivered() && r.leaveScanning(gen) {
			if err := sess.Err(); err != nil {
				notify.Error(r.deps.Notifier, "Error de cámara: "+err.Error())
			}
		}
	}()
	return results, nil
}

// leaveScanning moves back to Listing if session gen is still the active one.
func (r *Redemption) leaveScanning(gen uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.gen != gen || r.state != Scanning {
		return false
	}
	r.state = Listing
	r.session = nil
	return true
}

// StopScan tears down the active session, releasing the camera, and
// returns to Listing. It is a no-op when not scanning.
func (r *Redemption) StopScan() {
	r.mu.Lock()
	sess := r.session
	r.session = nil
	r.state = Listing
	r.mu.Unlock()

	// Stop waits for the session goroutine, which may need r.mu.
	// A redeem already handed off keeps running and still reports on the
	// results channel.
	if sess != nil {
		sess.Stop()
	}
}

// Redeem validates payload with the backend, notifies the outcome, then
// refetches the list whatever happened.
func (r *Redemption) Redeem(ctx context.Context, payload string) (models.ScanTicketResponse, error) {
	log := r.deps.Log.WithField("payload_len", len(payload))
	res, err := r.deps.Backend.ScanTicket(ctx, payload)
	switch {
	case err == nil:
		log.WithField("message", res.Message).Info("ticket validated")
		notify.Success(r.deps.Notifier, MsgTicketValidated+res.Message)
		msg := events.TicketValidatedMessage{
			TicketCode:  payload,
			Message:     res.Message,
			Station:     r.deps.Station,
			ValidatedAt: time.Now().UTC(),
		}
		if res.Ticket != nil {
			msg.TicketID = res.Ticket.ID
		}
		if perr := r.deps.Publisher.Publish(ctx, events.TopicTicketValidated, msg); perr != nil {
			log.WithError(perr).Warn("ticket.validated not published")
		}
	case utils.KindOf(err) == utils.KindServer:
		log.WithError(err).Info("ticket rejected")
		notify.Error(r.deps.Notifier, "Error: "+utils.UserMessage(err))
	default:
		log.WithError(err).Warn("ticket validation failed")
		notify.Error(r.deps.Notifier, MsgScanFailed)
	}

	if _, ferr := r.fetch(ctx); ferr != nil {
		log.WithError(ferr).Warn("refresh after scan failed")
	}
	return res, err
}

// Download renders t's stored payload onto the ticket template and saves
// it. A ticket without a payload is refused before anything is rendered.
func (r *Redemption) Download(ctx context.Context, t models.Ticket) (string, error) {
	log := r.deps.Log.WithField("ticket", t.ID)
	path, err := r.download(ctx, t)
	if err != nil {
		log.WithError(err).WithField("kind", utils.KindOf(err).String()).Warn("ticket pdf failed")
		notify.Error(r.deps.Notifier, utils.UserMessage(err))
		return "", err
	}
	log.WithField("file", path).Info("ticket pdf saved")
	return path, nil
}

func (r *Redemption) download(ctx context.Context, t models.Ticket) (string, error) {
	if t.QRCode == "" {
		return "", utils.MissingPayloadError(t.ID)
	}
	code, err := r.deps.Render(t.QRCode, r.deps.TicketQRSize)
	if err != nil {
		return "", err
	}
	doc, err := r.deps.Assembler.Templated(ctx, code)
	if err != nil {
		return "", err
	}
	path, err := r.deps.Saver.Save(pdf.FileName(t.Name), doc)
	if err != nil {
		return "", fmt.Errorf("save ticket: %w", err)
	}
	return path, nil
}
