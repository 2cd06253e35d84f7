// Package backend talks to the ticketing server's HTTP API.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"ticketdesk/internal/models"
	"ticketdesk/internal/utils"
)

const maxBody = 4 << 20

// Client wraps the three backend endpoints. A breaker sheds calls while the
// server is unreachable; 4xx answers do not count against it.
type Client struct {
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	log     logrus.FieldLogger
}

func New(baseURL string, timeout time.Duration, log logrus.FieldLogger) *Client {
	return NewWithHTTPClient(baseURL, &http.Client{Timeout: timeout}, log)
}

func NewWithHTTPClient(baseURL string, hc *http.Client, log logrus.FieldLogger) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    hc,
		log:     log,
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "backend",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.WithFields(logrus.Fields{"breaker": name, "from": from.String(), "to": to.String()}).Warn("breaker state changed")
		},
		IsSuccessful: func(err error) bool {
			var ce *utils.CustomError
			if err == nil {
				return true
			}
			return errors.As(err, &ce) && ce.Kind == utils.KindServer && ce.Code < http.StatusInternalServerError
		},
	})
	return c
}

// CreateTicket asks the server to issue a ticket and returns its QR payload.
func (c *Client) CreateTicket(ctx context.Context, req models.TicketRequest) (string, error) {
	var out models.CreateTicketResponse
	if err := c.do(ctx, http.MethodPost, "/create_ticket", req, &out); err != nil {
		return "", err
	}
	if out.QR == "" {
		return "", utils.ServerError(http.StatusOK, "la respuesta no incluye el código QR")
	}
	return out.QR, nil
}

func (c *Client) ListTickets(ctx context.Context) ([]models.Ticket, error) {
	var out []models.Ticket
	if err := c.do(ctx, http.MethodGet, "/get_tickets", nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []models.Ticket{}
	}
	return out, nil
}

// ScanTicket redeems the ticket identified by payload.
func (c *Client) ScanTicket(ctx context.Context, payload string) (models.ScanTicketResponse, error) {
	var out models.ScanTicketResponse
	err := c.do(ctx, http.MethodGet, "/scan_ticket/"+url.PathEscape(payload), nil, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.roundTrip(ctx, method, path, in, out)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return utils.NetworkError(err)
	}
	return err
}

func (c *Client) roundTrip(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	reqID := uuid.NewString()
	req.Header.Set("X-Request-ID", reqID)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	log := c.log.WithFields(logrus.Fields{"method": method, "path": path, "request_id": reqID})
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		log.WithError(err).Warn("backend unreachable")
		return utils.NetworkError(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return utils.NetworkError(err)
	}
	log = log.WithFields(logrus.Fields{"status": resp.StatusCode, "elapsed": time.Since(start)})

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e models.ErrorResponse
		_ = json.Unmarshal(data, &e)
		log.WithField("error", e.Error).Info("backend rejected request")
		return utils.ServerError(resp.StatusCode, e.Error)
	}
	log.Debug("backend ok")

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return utils.ServerError(resp.StatusCode, "respuesta inválida del servidor: "+err.Error())
	}
	return nil
}
