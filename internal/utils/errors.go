package utils

import (
	"errors"
	"fmt"
)

// Kind classifies a failure of a single operator action.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindNetwork
	KindServer
	KindEncoding
	KindTemplateLoad
	KindMissingPayload
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNetwork:
		return "network"
	case KindServer:
		return "server"
	case KindEncoding:
		return "encoding"
	case KindTemplateLoad:
		return "template_load"
	case KindMissingPayload:
		return "missing_payload"
	default:
		return "unknown"
	}
}

// CustomError carries the kind of failure, an optional HTTP status code
// reported by the backend, and a message fit for the operator.
type CustomError struct {
	Kind    Kind
	Code    int
	Message string
	Err     error
}

func (e *CustomError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s error (code %d): %s", e.Kind, e.Code, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s error: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s error: %s", e.Kind, e.Message)
}

func (e *CustomError) Unwrap() error { return e.Err }

// Is matches any *CustomError of the same kind, so callers can write
// errors.Is(err, utils.ErrNetwork).
func (e *CustomError) Is(target error) bool {
	t, ok := target.(*CustomError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Code == 0 && t.Message == ""
}

// Sentinels for errors.Is checks.
var (
	ErrValidation     = &CustomError{Kind: KindValidation}
	ErrNetwork        = &CustomError{Kind: KindNetwork}
	ErrServer         = &CustomError{Kind: KindServer}
	ErrEncoding       = &CustomError{Kind: KindEncoding}
	ErrTemplateLoad   = &CustomError{Kind: KindTemplateLoad}
	ErrMissingPayload = &CustomError{Kind: KindMissingPayload}
)

func New(kind Kind, message string) error {
	return &CustomError{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) error {
	return &CustomError{Kind: kind, Message: message, Err: err}
}

func ValidationError(message string) error { return New(KindValidation, message) }

func NetworkError(err error) error {
	return Wrap(KindNetwork, "backend unreachable", err)
}

// ServerError records a non-success response together with the message the
// backend put in its "error" field.
func ServerError(code int, message string) error {
	if message == "" {
		message = fmt.Sprintf("unexpected status %d", code)
	}
	return &CustomError{Kind: KindServer, Code: code, Message: message}
}

func EncodingError(err error) error {
	return Wrap(KindEncoding, "qr payload cannot be encoded", err)
}

func TemplateLoadError(source string, err error) error {
	return Wrap(KindTemplateLoad, "cannot load template "+source, err)
}

func MissingPayloadError(ticketID int) error {
	return New(KindMissingPayload, fmt.Sprintf("ticket %d has no qr payload", ticketID))
}

// KindOf returns the kind of the first *CustomError in err's chain.
func KindOf(err error) Kind {
	var ce *CustomError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindUnknown
}

// UserMessage is the text shown to the operator for err.
func UserMessage(err error) string {
	var ce *CustomError
	if !errors.As(err, &ce) {
		return err.Error()
	}
	switch ce.Kind {
	case KindServer, KindValidation:
		return ce.Message
	case KindNetwork:
		return "No se pudo contactar con el servidor. Inténtalo de nuevo."
	case KindTemplateLoad:
		return "Error al cargar la plantilla. Verifica que la imagen exista y se llame 'plantillaQr.png'."
	case KindMissingPayload:
		return "La entrada no tiene código QR."
	case KindEncoding:
		return "No se pudo generar el código QR."
	default:
		return ce.Message
	}
}
