// Package pdf builds the two printable ticket documents: the issuance
// receipt and the templated ticket handed out at redemption desks.
package pdf

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"strings"
	"unicode"

	"github.com/disintegration/imaging"
	"github.com/go-pdf/fpdf"
	"github.com/sirupsen/logrus"
	"golang.org/x/image/draw"

	"ticketdesk/internal/qr"
)

const (
	FilePrefix = "Entrada"

	// Receipt layout, in millimetres on A4.
	receiptMargin = 10.0
	receiptQRSize = 100.0

	// Template layout, in template pixels.
	TemplateWidth  = 2480
	TemplateHeight = 3507
	TicketQRX      = 1700
	TicketQRY      = 250
	TicketQRSize   = 500
)

// FileName derives the saved document name from the holder's name. Spaces,
// path separators and characters reserved by common filesystems become
// underscores so the name is always a plain file name.
func FileName(holder string) string {
	return FilePrefix + "_" + strings.Map(fileNameRune, holder) + ".pdf"
}

func fileNameRune(r rune) rune {
	switch {
	case r == ' ', unicode.IsControl(r), strings.ContainsRune(`/\:*?"<>|`, r):
		return '_'
	}
	return r
}

// Receipt is the text printed on an issuance receipt.
type Receipt struct {
	Name  string
	Email string
	Event string
}

// Assembler composes single-page ticket documents.
type Assembler struct {
	template TemplateLoader
	log      logrus.FieldLogger
}

func NewAssembler(template TemplateLoader, log logrus.FieldLogger) *Assembler {
	return &Assembler{template: template, log: log}
}

// Simple lays out the issuance receipt: title, three labeled fields and the
// QR code centered below them.
func (a *Assembler) Simple(r Receipt, code *qr.Image) ([]byte, error) {
	doc := fpdf.New("P", "mm", "A4", "")
	tr := doc.UnicodeTranslatorFromDescriptor("")
	doc.AddPage()

	doc.SetFont("Helvetica", "", 18)
	doc.Text(receiptMargin, receiptMargin+10, tr("Entrada para el Evento"))

	doc.SetFont("Helvetica", "", 12)
	doc.Text(receiptMargin, receiptMargin+30, tr("Nombre: "+r.Name))
	doc.Text(receiptMargin, receiptMargin+40, tr("Correo: "+r.Email))
	doc.Text(receiptMargin, receiptMargin+50, tr("Evento: "+r.Event))

	pageWidth, _ := doc.GetPageSize()
	opts := fpdf.ImageOptions{ImageType: "PNG"}
	doc.RegisterImageOptionsReader("qr", opts, bytes.NewReader(code.PNG))
	doc.ImageOptions("qr", (pageWidth-receiptQRSize)/2, receiptMargin+60, receiptQRSize, receiptQRSize, false, opts, 0, "")

	out, err := output(doc)
	if err != nil {
		return nil, err
	}
	a.log.WithFields(logrus.Fields{"mode": "simple", "bytes": len(out)}).Debug("receipt assembled")
	return out, nil
}

// Templated loads the background template, overlays the QR code on it and
// returns a one-page document the size of the template. A template that
// cannot be loaded aborts the whole document.
func (a *Assembler) Templated(ctx context.Context, code *qr.Image) ([]byte, error) {
	background, err := a.template.Load(ctx)
	if err != nil {
		return nil, err
	}
	composite := Composite(background, code)

	var page bytes.Buffer
	if err := imaging.Encode(&page, composite, imaging.JPEG, imaging.JPEGQuality(95)); err != nil {
		return nil, fmt.Errorf("encode ticket page: %w", err)
	}

	doc := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           fpdf.SizeType{Wd: TemplateWidth, Ht: TemplateHeight},
	})
	doc.AddPage()
	opts := fpdf.ImageOptions{ImageType: "JPG"}
	doc.RegisterImageOptionsReader("ticket", opts, &page)
	doc.ImageOptions("ticket", 0, 0, TemplateWidth, TemplateHeight, false, opts, 0, "")

	out, err := output(doc)
	if err != nil {
		return nil, err
	}
	a.log.WithFields(logrus.Fields{"mode": "templated", "bytes": len(out)}).Debug("ticket assembled")
	return out, nil
}

// Composite fits background to the template size and draws the QR code at
// the fixed ticket position.
func Composite(background image.Image, code *qr.Image) *image.NRGBA {
	b := background.Bounds()
	if b.Dx() != TemplateWidth || b.Dy() != TemplateHeight {
		background = imaging.Resize(background, TemplateWidth, TemplateHeight, imaging.Lanczos)
	}

	// Nearest neighbour keeps module edges sharp.
	scaled := image.NewRGBA(image.Rect(0, 0, TicketQRSize, TicketQRSize))
	draw.NearestNeighbor.Scale(scaled, scaled.Bounds(), code.Image, code.Image.Bounds(), draw.Src, nil)

	return imaging.Overlay(background, scaled, image.Pt(TicketQRX, TicketQRY), 1.0)
}

func output(doc *fpdf.Fpdf) ([]byte, error) {
	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
