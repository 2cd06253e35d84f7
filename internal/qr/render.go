// Package qr turns ticket payloads into scannable QR rasters.
package qr

import (
	"errors"
	"fmt"
	"image"

	qrcode "github.com/skip2/go-qrcode"

	"ticketdesk/internal/utils"
)

// Image is a rendered QR code: the raster and its PNG encoding.
type Image struct {
	Payload string
	Size    int
	Image   image.Image
	PNG     []byte
}

// Render encodes payload at error-correction level H into a size×size
// raster. The call is synchronous; when it returns without error the pixels
// are complete.
func Render(payload string, size int) (*Image, error) {
	if payload == "" {
		return nil, utils.EncodingError(errors.New("empty payload"))
	}
	if size <= 0 {
		return nil, utils.EncodingError(fmt.Errorf("invalid size %d", size))
	}

	code, err := qrcode.New(payload, qrcode.Highest)
	if err != nil {
		return nil, utils.EncodingError(err)
	}
	png, err := code.PNG(size)
	if err != nil {
		return nil, utils.EncodingError(err)
	}
	return &Image{
		Payload: payload,
		Size:    size,
		Image:   code.Image(size),
		PNG:     png,
	}, nil
}
