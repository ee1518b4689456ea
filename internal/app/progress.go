package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"mirror-batch/internal/mirror"
	apperrors "mirror-batch/internal/platform/errors"
)

// progressBar dibuja una línea por dominio terminado. La salida de la
// herramienta se intercala con la barra, así que cada paso cierra su línea.
type progressBar struct {
	mu      sync.Mutex
	w       io.Writer
	total   int
	current int
	width   int
	done    bool
}

func newProgressBar(w io.Writer, total int) *progressBar {
	pb := &progressBar{w: w, total: total, width: 30}
	if total > 0 {
		pb.renderInitial()
	}
	return pb
}

func (p *progressBar) renderInitial() {
	p.mu.Lock()
	defer p.mu.Unlock()

	bar := strings.Repeat("░", p.width)
	fmt.Fprintf(p.w, "[%s] 0/%d iniciando...\n", bar, p.total)
}

// resultStatus resume un resultado para la barra.
func resultStatus(res mirror.Result) string {
	switch {
	case res.OK:
		return "ok"
	case apperrors.IsMissingBinary(res.Err):
		return "faltante"
	case apperrors.IsExit(res.Err):
		return "error"
	case errors.Is(res.Err, context.Canceled):
		return "cancelado"
	default:
		return "excepción"
	}
}

func (p *progressBar) StepDone(domain, status string) {
	if p == nil || p.total <= 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.done {
		return
	}

	p.current++
	if p.current > p.total {
		p.current = p.total
	}

	p.renderLocked(domain, status)
	if p.current == p.total {
		p.done = true
	}
}

func (p *progressBar) renderLocked(domain, status string) {
	fill := (p.current * p.width) / p.total
	if fill > p.width {
		fill = p.width
	}
	bar := strings.Repeat("█", fill) + strings.Repeat("░", p.width-fill)

	label := strings.TrimSpace(domain)
	if status != "" {
		if label != "" {
			label = fmt.Sprintf("%s (%s)", label, status)
		} else {
			label = status
		}
	}

	fmt.Fprintf(p.w, "[%s] %d/%d %s\n", bar, p.current, p.total, label)
}
