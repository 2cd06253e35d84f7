package mailer

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticketdesk/internal/utils"
)

const emailURL = "https://api.mailersend.com/v1/email"

type sentEmail struct {
	From struct {
		Email string `json:"email"`
	} `json:"from"`
	To []struct {
		Email string `json:"email"`
	} `json:"to"`
	Subject     string `json:"subject"`
	Attachments []struct {
		Content  string `json:"content"`
		Filename string `json:"filename"`
	} `json:"attachments"`
}

func newService(t *testing.T) *MailerService {
	hc := &http.Client{}
	httpmock.ActivateNonDefault(hc)
	t.Cleanup(httpmock.DeactivateAndReset)
	return NewMailerService("test-key", "Taquilla", "taquilla@example.com", utils.NopLogger()).WithHTTPClient(hc)
}

func Test_SendTicket(t *testing.T) {
	m := newService(t)

	var got sentEmail
	httpmock.RegisterResponder("POST", emailURL, func(req *http.Request) (*http.Response, error) {
		if err := json.NewDecoder(req.Body).Decode(&got); err != nil {
			return httpmock.NewStringResponse(422, `{"message":"bad"}`), nil
		}
		resp := httpmock.NewStringResponse(202, "")
		resp.Header.Set("X-Message-Id", "msg-1")
		return resp, nil
	})

	err := m.SendTicket(context.Background(), Ticket{
		To: "ana@x.com", Name: "Ana Gómez", Event: "Conf2024",
		FileName: "Entrada_Ana_Gómez.pdf", PDF: []byte("%PDF-1.3"),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, httpmock.GetTotalCallCount())

	assert.Equal(t, "taquilla@example.com", got.From.Email)
	require.Len(t, got.To, 1)
	assert.Equal(t, "ana@x.com", got.To[0].Email)
	assert.Contains(t, got.Subject, "Conf2024")
	require.Len(t, got.Attachments, 1)
	assert.Equal(t, "Entrada_Ana_Gómez.pdf", got.Attachments[0].Filename)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("%PDF-1.3")), got.Attachments[0].Content)
}

func Test_SendTicket_Rejected(t *testing.T) {
	m := newService(t)
	httpmock.RegisterResponder("POST", emailURL,
		httpmock.NewStringResponder(422, `{"message":"The to.0.email must be a valid email address."}`))

	err := m.SendTicket(context.Background(), Ticket{To: "nope", Name: "x", Event: "y", FileName: "f.pdf"})
	assert.Error(t, err)
}
