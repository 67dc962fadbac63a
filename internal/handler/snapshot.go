package handler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/png"
	"sync"

	"github.com/v0xg/lookaround/internal/browser"
	"github.com/v0xg/lookaround/internal/gifgen"
)

// Snapshot keeps a screenshot per invocation. WriteGIF renders the
// collected frames once the run is over.
type Snapshot struct {
	mu     sync.Mutex
	frames []image.Image
}

func (h *Snapshot) Handle(ctx context.Context, s browser.Session) error {
	sc, ok := s.(browser.Screenshotter)
	if !ok {
		return errors.New("session cannot take screenshots")
	}
	data, err := sc.Screenshot(ctx)
	if err != nil {
		return fmt.Errorf("screenshot: %w", err)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("decode screenshot: %w", err)
	}

	h.mu.Lock()
	h.frames = append(h.frames, img)
	h.mu.Unlock()
	return nil
}

// Frames returns the collected frames in capture order
func (h *Snapshot) Frames() []image.Image {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]image.Image, len(h.frames))
	copy(out, h.frames)
	return out
}

// WriteGIF encodes the collected frames to path and returns the file size
func (h *Snapshot) WriteGIF(path string, opts gifgen.Options) (int64, error) {
	return gifgen.Generate(h.Frames(), path, opts)
}
