package scanner

import (
	"context"
	"errors"
	"image"
	"image/color"
	"sync"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticketdesk/internal/qr"
	"ticketdesk/internal/utils"
)

type fakeSource struct {
	mu     sync.Mutex
	frames []image.Image
	err    error
	closes int
}

func (f *fakeSource) push(img image.Image) {
	f.mu.Lock()
	f.frames = append(f.frames, img)
	f.mu.Unlock()
}

func (f *fakeSource) Next(ctx context.Context) (image.Image, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if len(f.frames) == 0 {
		return nil, ErrNoFrame
	}
	img := f.frames[0]
	f.frames = f.frames[1:]
	return img, nil
}

func (f *fakeSource) Close() error {
	f.mu.Lock()
	f.closes++
	f.mu.Unlock()
	return nil
}

func (f *fakeSource) closeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closes
}

type recorder struct {
	mu       sync.Mutex
	payloads []string
}

func (r *recorder) onScan(p string) {
	r.mu.Lock()
	r.payloads = append(r.payloads, p)
	r.mu.Unlock()
}

func (r *recorder) got() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.payloads...)
}

func qrFrame(t *testing.T, payload string) image.Image {
	t.Helper()
	code, err := qr.Render(payload, 250)
	require.NoError(t, err)
	return code.Image
}

func blankFrame() image.Image {
	return imaging.New(250, 250, color.White)
}

func fastOptions() Options {
	return Options{Viewport: image.Pt(250, 250), FPS: 50}
}

func waitDone(t *testing.T, sess *Session) {
	t.Helper()
	select {
	case <-sess.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("session did not finish")
	}
}

func TestScanDeliversFirstPayloadOnce(t *testing.T) {
	src := &fakeSource{}
	src.push(blankFrame())
	src.push(qrFrame(t, "TICKET-123"))
	src.push(qrFrame(t, "TICKET-456"))

	rec := &recorder{}
	sess := New(src, fastOptions(), utils.NopLogger()).Start(context.Background(), rec.onScan)
	waitDone(t, sess)

	assert.Equal(t, []string{"TICKET-123"}, rec.got())
	assert.True(t, sess.Delivered())
	assert.NoError(t, sess.Err())
	assert.Equal(t, 1, src.closeCount())

	sess.Stop()
	assert.Equal(t, 1, src.closeCount())
	assert.Equal(t, []string{"TICKET-123"}, rec.got())
}

func TestStopReleasesSourceOnce(t *testing.T) {
	src := &fakeSource{}
	rec := &recorder{}
	sess := New(src, fastOptions(), utils.NopLogger()).Start(context.Background(), rec.onScan)

	time.Sleep(50 * time.Millisecond)
	sess.Stop()
	sess.Stop()

	assert.Equal(t, 1, src.closeCount())
	assert.False(t, sess.Delivered())

	// Frames arriving after teardown are never delivered.
	src.push(qrFrame(t, "TICKET-123"))
	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, rec.got())
}

func TestContextCancelReleasesSource(t *testing.T) {
	src := &fakeSource{}
	ctx, cancel := context.WithCancel(context.Background())
	sess := New(src, fastOptions(), utils.NopLogger()).Start(ctx, func(string) {})
	cancel()
	waitDone(t, sess)
	assert.Equal(t, 1, src.closeCount())
}

func TestSourceFailureEndsSession(t *testing.T) {
	boom := errors.New("camera unplugged")
	src := &fakeSource{err: boom}
	rec := &recorder{}
	sess := New(src, fastOptions(), utils.NopLogger()).Start(context.Background(), rec.onScan)
	waitDone(t, sess)

	assert.ErrorIs(t, sess.Err(), boom)
	assert.Empty(t, rec.got())
	assert.Equal(t, 1, src.closeCount())
}

func TestScannerServesSingleSession(t *testing.T) {
	src := &fakeSource{}
	sc := New(src, fastOptions(), utils.NopLogger())
	first := sc.Start(context.Background(), func(string) {})
	second := sc.Start(context.Background(), func(string) {})

	waitDone(t, second)
	assert.ErrorIs(t, second.Err(), ErrReleased)

	first.Stop()
	assert.Equal(t, 1, src.closeCount())
}

func TestNewAppliesDefaults(t *testing.T) {
	sc := New(&fakeSource{}, Options{}, utils.NopLogger())
	assert.Equal(t, DefaultOptions(), sc.opts)
}

func TestDecodeViewport(t *testing.T) {
	code := qrFrame(t, "TICKET-123")

	centered := imaging.Paste(imaging.New(800, 800, color.White), code, image.Pt(275, 275))
	text, err := Decode(centered, image.Pt(250, 250))
	require.NoError(t, err)
	assert.Equal(t, "TICKET-123", text)

	corner := imaging.Paste(imaging.New(800, 800, color.White), code, image.Pt(0, 0))
	_, err = Decode(corner, image.Pt(250, 250))
	assert.ErrorIs(t, err, ErrNotFound)

	text, err = Decode(corner, image.Point{})
	require.NoError(t, err)
	assert.Equal(t, "TICKET-123", text)
}
