package workflow

import (
	"context"

	"github.com/stretchr/testify/mock"

	"ticketdesk/internal/events"
	"ticketdesk/internal/files"
	"ticketdesk/internal/mailer"
	"ticketdesk/internal/models"
	"ticketdesk/internal/notify"
	"ticketdesk/internal/pdf"
	"ticketdesk/internal/qr"
	"ticketdesk/internal/utils"
)

type mockBackend struct{ mock.Mock }

func (m *mockBackend) CreateTicket(ctx context.Context, req models.TicketRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *mockBackend) ListTickets(ctx context.Context) ([]models.Ticket, error) {
	args := m.Called(ctx)
	tickets, _ := args.Get(0).([]models.Ticket)
	return tickets, args.Error(1)
}

func (m *mockBackend) ScanTicket(ctx context.Context, payload string) (models.ScanTicketResponse, error) {
	args := m.Called(ctx, payload)
	return args.Get(0).(models.ScanTicketResponse), args.Error(1)
}

type mockAssembler struct{ mock.Mock }

func (m *mockAssembler) Simple(r pdf.Receipt, code *qr.Image) ([]byte, error) {
	args := m.Called(r, code)
	out, _ := args.Get(0).([]byte)
	return out, args.Error(1)
}

func (m *mockAssembler) Templated(ctx context.Context, code *qr.Image) ([]byte, error) {
	args := m.Called(ctx, code)
	out, _ := args.Get(0).([]byte)
	return out, args.Error(1)
}

type mockMailer struct{ mock.Mock }

func (m *mockMailer) SendTicket(ctx context.Context, t mailer.Ticket) error {
	return m.Called(ctx, t).Error(0)
}

type fixture struct {
	backend   *mockBackend
	assembler *mockAssembler
	saved     *files.MemoryStore
	notes     *notify.Recorder
	published *events.Recorder
	rendered  []*qr.Image
}

func newFixture() *fixture {
	return &fixture{
		backend:   &mockBackend{},
		assembler: &mockAssembler{},
		saved:     &files.MemoryStore{},
		notes:     &notify.Recorder{},
		published: &events.Recorder{},
	}
}

func (f *fixture) deps(asm Assembler) Deps {
	return Deps{
		Backend:   f.backend,
		Assembler: asm,
		Saver:     f.saved,
		Notifier:  f.notes,
		Publisher: f.published,
		Log:       utils.NopLogger(),
		Render: func(payload string, size int) (*qr.Image, error) {
			img, err := qr.Render(payload, size)
			if err == nil {
				f.rendered = append(f.rendered, img)
			}
			return img, err
		},
	}
}
