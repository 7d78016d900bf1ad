package app

import (
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	glamouransi "github.com/charmbracelet/glamour/ansi"
	glamourstyles "github.com/charmbracelet/glamour/styles"
	xansi "github.com/charmbracelet/x/ansi"
)

// markdownRenderer caches one glamour renderer per (width, theme).
type markdownRenderer struct {
	mu        sync.Mutex
	renderers map[markdownKey]*glamour.TermRenderer
}

type markdownKey struct {
	width int
	dark  bool
}

func newMarkdownRenderer() *markdownRenderer {
	return &markdownRenderer{renderers: map[markdownKey]*glamour.TermRenderer{}}
}

// Render formats agent text as markdown wrapped to width. Text that glamour
// rejects is returned as-is.
func (r *markdownRenderer) Render(input string, width int, dark bool) string {
	input = strings.TrimRight(input, "\n")
	if input == "" {
		return ""
	}
	if width <= 0 {
		width = 80
	}
	tr := r.get(width, dark)
	if tr == nil {
		return input
	}
	out, err := tr.Render(input)
	if err != nil {
		return input
	}
	out = xansi.Hardwrap(strings.TrimRight(out, "\n"), width, true)
	return strings.TrimRight(out, "\n")
}

func (r *markdownRenderer) get(width int, dark bool) *glamour.TermRenderer {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := markdownKey{width: width, dark: dark}
	if tr, ok := r.renderers[key]; ok {
		return tr
	}
	tr, err := glamour.NewTermRenderer(
		glamour.WithStyles(markdownStyle(dark)),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil
	}
	r.renderers[key] = tr
	return tr
}

func markdownStyle(dark bool) glamouransi.StyleConfig {
	base := glamourstyles.LightStyleConfig
	if dark {
		base = glamourstyles.DarkStyleConfig
	}
	// The transcript handles spacing between lines itself.
	base.Document.StylePrimitive.BlockPrefix = ""
	base.Document.StylePrimitive.BlockSuffix = ""
	zero := uint(0)
	base.Document.Margin = &zero
	return base
}
