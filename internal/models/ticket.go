package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Status is the redemption state of a ticket.
type Status string

const (
	StatusIssued   Status = "issued"
	StatusRedeemed Status = "redeemed"
)

// UnmarshalJSON accepts both the client vocabulary and the backend's
// active/inactive column values.
func (s *Status) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	switch strings.ToLower(raw) {
	case "issued", "active", "":
		*s = StatusIssued
	case "redeemed", "inactive", "used":
		*s = StatusRedeemed
	default:
		return fmt.Errorf("unknown ticket status %q", raw)
	}
	return nil
}

// Ticket is the client's transient copy of a backend ticket row.
type Ticket struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Event  string `json:"event"`
	QRCode string `json:"qr_code,omitempty"`
	Status Status `json:"status"`
}

// TicketRequest is the draft the operator fills in before issuing.
type TicketRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Event string `json:"event"`
}

// Missing returns the names of the empty fields, in form order.
func (r TicketRequest) Missing() []string {
	var missing []string
	if strings.TrimSpace(r.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(r.Email) == "" {
		missing = append(missing, "email")
	}
	if strings.TrimSpace(r.Event) == "" {
		missing = append(missing, "event")
	}
	return missing
}

// IsZero reports whether the draft is blank.
func (r TicketRequest) IsZero() bool {
	return r == TicketRequest{}
}

// CreateTicketResponse is the body of a successful POST /create_ticket.
type CreateTicketResponse struct {
	Message string `json:"message,omitempty"`
	QR      string `json:"qr"`
}

// ScanTicketResponse is the body of a successful GET /scan_ticket/{qr}.
type ScanTicketResponse struct {
	Message string  `json:"message"`
	Ticket  *Ticket `json:"ticket,omitempty"`
}

// ErrorResponse is what the backend (and the console) send on failure.
type ErrorResponse struct {
	Error string `json:"error"`
}
