package handler

import (
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sync"

	"github.com/v0xg/lookaround/internal/browser"
	"go.uber.org/zap"
)

const idChars = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// DefaultBucketSize is how many samples share one directory
const DefaultBucketSize = 300

// Save archives the page source of every invocation as
// <Dir>/<bucket>/<id>-raw.html
type Save struct {
	Dir        string
	BucketSize int
	Logger     *zap.Logger
	// IntN draws random id characters, rand.IntN when nil
	IntN func(n int) int

	mu      sync.Mutex
	counter int
}

// Sample names one saved page
type Sample struct {
	ID     string
	Bucket string
}

// Path is the sample's location relative to the archive directory
func (s Sample) Path() string {
	return filepath.Join(s.Bucket, s.ID+"-raw.html")
}

// NextSample numbers samples from 1. The id is six random alphanumerics
// followed by the number; the bucket is number / BucketSize, zero padded.
func (h *Save) NextSample() Sample {
	h.mu.Lock()
	h.counter++
	n := h.counter
	h.mu.Unlock()

	size := h.BucketSize
	if size <= 0 {
		size = DefaultBucketSize
	}
	intN := h.IntN
	if intN == nil {
		intN = rand.IntN
	}

	prefix := make([]byte, 6)
	for i := range prefix {
		prefix[i] = idChars[intN(len(idChars))]
	}
	return Sample{
		ID:     fmt.Sprintf("%s_%d", prefix, n),
		Bucket: fmt.Sprintf("%04d", n/size),
	}
}

func (h *Save) Handle(ctx context.Context, s browser.Session) error {
	src, err := s.PageSource(ctx)
	if err != nil {
		return fmt.Errorf("read page source: %w", err)
	}

	sample := h.NextSample()
	path := filepath.Join(h.Dir, sample.Path())
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create sample dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		return fmt.Errorf("write sample: %w", err)
	}

	if h.Logger != nil {
		h.Logger.Debug("page saved", zap.String("path", path), zap.Int("bytes", len(src)))
	}
	return nil
}
