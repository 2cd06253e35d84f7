// Package app wires configuration into the workflow collaborators shared by
// the CLI and the console.
package app

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"ticketdesk/internal/backend"
	"ticketdesk/internal/events"
	"ticketdesk/internal/mailer"
	"ticketdesk/internal/notify"
	"ticketdesk/internal/pdf"
	"ticketdesk/internal/utils"
	"ticketdesk/internal/workflow"
)

// Build assembles workflow dependencies from cfg. The returned cleanup
// closes the broker connection, if one was opened. Saver is left for the
// caller to set.
func Build(cfg utils.Config, log logrus.FieldLogger, n notify.Notifier) (workflow.Deps, func()) {
	deps := workflow.Deps{
		Backend:       backend.New(cfg.BackendURL, cfg.Timeout.Duration, log.WithField("component", "backend")),
		Assembler:     pdf.NewAssembler(pdf.NewTemplateLoader(cfg.TemplateSource, &http.Client{Timeout: cfg.Timeout.Duration}), log.WithField("component", "pdf")),
		Notifier:      n,
		Publisher:     events.Nop{},
		Log:           log,
		Station:       utils.StationID(),
		ReceiptQRSize: cfg.ReceiptQRSize,
		TicketQRSize:  cfg.TicketQRSize,
	}
	cleanup := func() {}

	if cfg.RabbitMQURL != "" {
		broker, err := events.NewBroker(cfg.RabbitMQURL, cfg.Exchange, log.WithField("component", "events"))
		if err != nil {
			log.WithError(err).Warn("event publishing disabled")
		} else {
			deps.Publisher = broker
			cleanup = func() {
				if err := broker.Close(); err != nil {
					log.WithError(err).Warn("close broker")
				}
			}
		}
	}

	if cfg.MailerSendAPIKey != "" && cfg.MailerSendFrom != "" {
		deps.Mailer = mailer.NewMailerService(cfg.MailerSendAPIKey, "Taquilla", cfg.MailerSendFrom, log.WithField("component", "mailer"))
	}
	return deps, cleanup
}
