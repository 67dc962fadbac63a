package handler

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/v0xg/lookaround/internal/browser"
)

// Print writes the beginning of the page source
type Print struct {
	Chars int       // defaults to 100
	Out   io.Writer // defaults to stdout
}

func (p *Print) Handle(ctx context.Context, s browser.Session) error {
	src, err := s.PageSource(ctx)
	if err != nil {
		return fmt.Errorf("read page source: %w", err)
	}
	chars := p.Chars
	if chars <= 0 {
		chars = 100
	}
	out := p.Out
	if out == nil {
		out = os.Stdout
	}
	_, err = fmt.Fprintf(out, "\n%s\n", Excerpt(src, chars))
	return err
}

// Excerpt cuts s after n characters and marks the cut with "..."
func Excerpt(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
