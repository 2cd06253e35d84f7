package utils

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindMatching(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	tests := []struct {
		err  error
		is   error
		kind Kind
	}{
		{ValidationError("falta el nombre"), ErrValidation, KindValidation},
		{NetworkError(cause), ErrNetwork, KindNetwork},
		{ServerError(400, "Faltan datos"), ErrServer, KindServer},
		{EncodingError(cause), ErrEncoding, KindEncoding},
		{TemplateLoadError("plantillaQr.png", cause), ErrTemplateLoad, KindTemplateLoad},
		{MissingPayloadError(7), ErrMissingPayload, KindMissingPayload},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			wrapped := fmt.Errorf("submit: %w", tt.err)
			assert.ErrorIs(t, wrapped, tt.is)
			assert.Equal(t, tt.kind, KindOf(wrapped))
			for _, other := range []error{ErrValidation, ErrNetwork, ErrServer, ErrEncoding, ErrTemplateLoad, ErrMissingPayload} {
				if other != tt.is {
					assert.NotErrorIs(t, wrapped, other)
				}
			}
		})
	}
}

func TestUnwrapReachesCause(t *testing.T) {
	cause := errors.New("timeout")
	assert.ErrorIs(t, NetworkError(cause), cause)
}

func TestServerErrorDefaults(t *testing.T) {
	err := ServerError(503, "")
	assert.Equal(t, "unexpected status 503", UserMessage(err))
	assert.Contains(t, err.Error(), "code 503")
}

func TestUserMessage(t *testing.T) {
	assert.Equal(t, "Faltan datos", UserMessage(ServerError(400, "Faltan datos")))
	assert.NotEqual(t, UserMessage(ServerError(400, "x")), UserMessage(NetworkError(nil)))
	assert.Contains(t, UserMessage(TemplateLoadError("a.png", nil)), "plantillaQr.png")
	assert.Equal(t, "plain", UserMessage(errors.New("plain")))
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
}
