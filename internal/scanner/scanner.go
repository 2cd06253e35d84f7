// Package scanner polls a camera-like frame source and reports the first QR
// payload it can decode.
package scanner

import (
	"context"
	"errors"
	"image"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
	"github.com/sirupsen/logrus"
)

var (
	// ErrNoFrame tells the loop the source has nothing new yet.
	ErrNoFrame = errors.New("no frame available")
	// ErrReleased is returned by sources after Close, and by sessions started
	// on a scanner whose camera has already been handed back.
	ErrReleased = errors.New("frame source released")
	// ErrNotFound means the frame holds no readable QR code.
	ErrNotFound = errors.New("no qr code in frame")
)

// FrameSource is the camera. Close releases it.
type FrameSource interface {
	Next(ctx context.Context) (image.Image, error)
	Close() error
}

type Options struct {
	Viewport image.Point
	FPS      int
}

func DefaultOptions() Options {
	return Options{Viewport: image.Pt(250, 250), FPS: 5}
}

// Scanner owns one frame source. The source is released when the first
// session ends, so a Scanner serves a single scan.
type Scanner struct {
	src  FrameSource
	opts Options
	log  logrus.FieldLogger

	mu      sync.Mutex
	started bool
}

func New(src FrameSource, opts Options, log logrus.FieldLogger) *Scanner {
	def := DefaultOptions()
	if opts.FPS <= 0 {
		opts.FPS = def.FPS
	}
	if opts.Viewport.X <= 0 || opts.Viewport.Y <= 0 {
		opts.Viewport = def.Viewport
	}
	return &Scanner{src: src, opts: opts, log: log}
}

// Session is one running scan.
type Session struct {
	ID string

	cancel  context.CancelFunc
	done    chan struct{}
	release sync.Once

	mu        sync.Mutex
	stopped   bool
	delivered bool
	err       error
}

// Start begins decoding frames at the configured rate. onScan is called at
// most once, from the session goroutine, with the first decoded payload.
// The source is released right after onScan returns, or on Stop.
func (s *Scanner) Start(ctx context.Context, onScan func(string)) *Session {
	ctx, cancel := context.WithCancel(ctx)
	sess := &Session{
		ID:     uuid.NewString(),
		cancel: cancel,
		done:   make(chan struct{}),
	}

	s.mu.Lock()
	reused := s.started
	s.started = true
	s.mu.Unlock()
	if reused {
		sess.err = ErrReleased
		cancel()
		close(sess.done)
		return sess
	}

	go s.run(ctx, sess, onScan)
	return sess
}

func (s *Scanner) run(ctx context.Context, sess *Session, onScan func(string)) {
	log := s.log.WithField("session", sess.ID)
	defer close(sess.done)
	defer sess.releaseSource(s.src, log)

	log.Debug("scan started")
	ticker := time.NewTicker(time.Second / time.Duration(s.opts.FPS))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug("scan cancelled")
			return
		case <-ticker.C:
		}

		frame, err := s.src.Next(ctx)
		if err != nil {
			if errors.Is(err, ErrNoFrame) || ctx.Err() != nil {
				continue
			}
			log.WithError(err).Warn("frame source failed")
			sess.setErr(err)
			return
		}

		text, err := Decode(frame, s.opts.Viewport)
		if err != nil {
			continue
		}
		if sess.claim() {
			log.WithField("payload_len", len(text)).Info("qr decoded")
			onScan(text)
		}
		return
	}
}

// Stop tears the session down and waits for the source to be released.
// Once Stop returns no payload will be delivered. Safe to call repeatedly,
// but not from inside onScan.
func (sess *Session) Stop() {
	sess.mu.Lock()
	sess.stopped = true
	sess.mu.Unlock()
	sess.cancel()
	<-sess.done
}

func (sess *Session) Done() <-chan struct{} { return sess.done }

// Err reports why the session ended without a decode, if it failed.
func (sess *Session) Err() error {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.err
}

// Delivered reports whether a payload reached the handler.
func (sess *Session) Delivered() bool {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.delivered
}

func (sess *Session) claim() bool {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.stopped || sess.delivered {
		return false
	}
	sess.delivered = true
	return true
}

func (sess *Session) setErr(err error) {
	sess.mu.Lock()
	sess.err = err
	sess.mu.Unlock()
}

func (sess *Session) releaseSource(src FrameSource, log logrus.FieldLogger) {
	sess.release.Do(func() {
		if err := src.Close(); err != nil {
			log.WithError(err).Warn("release frame source")
		}
		log.Debug("frame source released")
	})
}

// Decode reads a QR code from the centered viewport of frame. A zero
// viewport, or one at least as large as the frame, decodes the whole frame.
func Decode(frame image.Image, viewport image.Point) (string, error) {
	b := frame.Bounds()
	if viewport.X > 0 && viewport.Y > 0 && (viewport.X < b.Dx() || viewport.Y < b.Dy()) {
		frame = imaging.CropCenter(frame, min(viewport.X, b.Dx()), min(viewport.Y, b.Dy()))
	}
	bmp, err := gozxing.NewBinaryBitmapFromImage(frame)
	if err != nil {
		return "", err
	}
	hints := map[gozxing.DecodeHintType]interface{}{gozxing.DecodeHintType_TRY_HARDER: true}
	res, err := qrcode.NewQRCodeReader().Decode(bmp, hints)
	if err != nil {
		return "", ErrNotFound
	}
	return res.GetText(), nil
}
