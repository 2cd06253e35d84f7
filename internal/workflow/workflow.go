// Package workflow drives the two operator flows: issuing a ticket from a
// filled-in form, and listing, scanning and reprinting existing tickets.
package workflow

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"ticketdesk/internal/events"
	"ticketdesk/internal/mailer"
	"ticketdesk/internal/models"
	"ticketdesk/internal/notify"
	"ticketdesk/internal/pdf"
	"ticketdesk/internal/qr"
)

const (
	MsgTicketCreated   = "¡Entrada creada exitosamente!"
	MsgTicketValidated = "Ticket validado: "
	MsgMissingFields   = "Completa todos los campos: nombre, correo y evento."
	MsgListFailed      = "Error al obtener los tickets"
	MsgScanFailed      = "Error al validar el ticket. Inténtalo de nuevo."
)

var (
	ErrAlreadyScanning = errors.New("a scan is already in progress")
	ErrSubmitting      = errors.New("a submission is already in progress")
)

type Backend interface {
	CreateTicket(ctx context.Context, req models.TicketRequest) (string, error)
	ListTickets(ctx context.Context) ([]models.Ticket, error)
	ScanTicket(ctx context.Context, payload string) (models.ScanTicketResponse, error)
}

type Assembler interface {
	Simple(r pdf.Receipt, code *qr.Image) ([]byte, error)
	Templated(ctx context.Context, code *qr.Image) ([]byte, error)
}

// Saver is where finished documents go: a directory, or an HTTP response.
type Saver interface {
	Save(name string, data []byte) (string, error)
}

type Mailer interface {
	SendTicket(ctx context.Context, t mailer.Ticket) error
}

// Renderer turns a payload into a QR raster. qr.Render in production.
type Renderer func(payload string, size int) (*qr.Image, error)

// Deps are the collaborators shared by both workflows. Publisher and Mailer
// are optional.
type Deps struct {
	Backend   Backend
	Assembler Assembler
	Saver     Saver
	Notifier  notify.Notifier
	Publisher events.Publisher
	Mailer    Mailer
	Render    Renderer
	Log       logrus.FieldLogger

	// Station tags published events with the desk that produced them.
	Station       string
	ReceiptQRSize int
	TicketQRSize  int
}

func (d Deps) withDefaults() Deps {
	if d.Render == nil {
		d.Render = qr.Render
	}
	if d.Publisher == nil {
		d.Publisher = events.Nop{}
	}
	if d.Log == nil {
		d.Log = logrus.StandardLogger()
	}
	if d.Notifier == nil {
		d.Notifier = notify.Log{Logger: d.Log}
	}
	if d.ReceiptQRSize <= 0 {
		d.ReceiptQRSize = 100
	}
	if d.TicketQRSize <= 0 {
		d.TicketQRSize = pdf.TicketQRSize
	}
	return d
}
