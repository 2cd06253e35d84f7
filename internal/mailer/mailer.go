// Package mailer emails issued tickets to their holders through MailerSend.
package mailer

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"time"

	"github.com/mailersend/mailersend-go"
	"github.com/sirupsen/logrus"
)

const sendTimeout = 10 * time.Second

// Ticket is what gets emailed: the holder and the saved PDF.
type Ticket struct {
	To       string
	Name     string
	Event    string
	FileName string
	PDF      []byte
}

type MailerService struct {
	Client    *mailersend.Mailersend
	FromEmail string
	FromName  string
	log       logrus.FieldLogger
}

func NewMailerService(apiKey, fromName, fromEmail string, log logrus.FieldLogger) *MailerService {
	return &MailerService{
		Client:    mailersend.NewMailersend(apiKey),
		FromEmail: fromEmail,
		FromName:  fromName,
		log:       log,
	}
}

// WithHTTPClient swaps the transport used to reach the MailerSend API.
func (m *MailerService) WithHTTPClient(c *http.Client) *MailerService {
	m.Client.SetClient(c)
	return m
}

func (m *MailerService) SendTicket(ctx context.Context, t Ticket) error {
	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	message := m.Client.Email.NewMessage()
	message.SetFrom(mailersend.From{Name: m.FromName, Email: m.FromEmail})
	message.SetRecipients([]mailersend.Recipient{{Name: t.Name, Email: t.To}})
	message.SetSubject(fmt.Sprintf("Tu entrada para %s", t.Event))
	message.SetText(fmt.Sprintf("Hola %s,\n\nAdjuntamos tu entrada para %s. Presenta el código QR en la entrada.\n", t.Name, t.Event))
	message.AddAttachment(mailersend.Attachment{
		Content:  base64.StdEncoding.EncodeToString(t.PDF),
		Filename: t.FileName,
	})

	res, err := m.Client.Email.Send(ctx, message)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	m.log.WithFields(logrus.Fields{"to": t.To, "message_id": res.Header.Get("X-Message-Id")}).Info("ticket emailed")
	return nil
}
