package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTicketDecodesBackendRow(t *testing.T) {
	body := `[{"id":1,"name":"Ana","email":"ana@x.com","event":"Conf2024","qr_code":"TICKET-1","status":"active"},
	          {"id":2,"name":"Luis","email":"l@x.com","event":"Conf2024","status":"inactive"}]`

	var tickets []Ticket
	require.NoError(t, json.Unmarshal([]byte(body), &tickets))
	require.Len(t, tickets, 2)

	assert.Equal(t, StatusIssued, tickets[0].Status)
	assert.Equal(t, "TICKET-1", tickets[0].QRCode)
	assert.Equal(t, StatusRedeemed, tickets[1].Status)
	assert.Empty(t, tickets[1].QRCode)
}

func TestStatusRejectsUnknownValue(t *testing.T) {
	var s Status
	assert.Error(t, json.Unmarshal([]byte(`"lost"`), &s))
}

func TestTicketRequestMissing(t *testing.T) {
	assert.Empty(t, TicketRequest{Name: "a", Email: "b", Event: "c"}.Missing())
	assert.Equal(t, []string{"name", "event"}, TicketRequest{Name: " ", Email: "b"}.Missing())
	assert.True(t, TicketRequest{}.IsZero())
}
