package logx

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// SpinnerFrames son los frames de la animación del spinner
var SpinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Spinner gestiona un indicador de progreso animado
type Spinner struct {
	mu          sync.Mutex
	frames      []string
	frameIndex  int
	active      bool
	stopCh      chan struct{}
	stoppedCh   chan struct{}
	writer      io.Writer
	prefix      string
	isTTY       bool
	refreshRate time.Duration
}

// NewSpinnerTo crea un spinner que escribe en w. Si w no es un terminal solo
// se imprime la línea inicial y el mensaje final.
func NewSpinnerTo(w io.Writer, prefix string) *Spinner {
	return &Spinner{
		frames:      SpinnerFrames,
		stopCh:      make(chan struct{}),
		stoppedCh:   make(chan struct{}),
		writer:      w,
		prefix:      prefix,
		isTTY:       IsTerminal(w),
		refreshRate: 100 * time.Millisecond,
	}
}

// Start inicia la animación del spinner
func (s *Spinner) Start() {
	s.mu.Lock()
	if s.active {
		s.mu.Unlock()
		return
	}
	s.active = true
	s.mu.Unlock()

	if !s.isTTY {
		s.mu.Lock()
		fmt.Fprintf(s.writer, "%s %s\n", s.frames[0], s.prefix)
		s.mu.Unlock()
		close(s.stoppedCh)
		return
	}

	go func() {
		defer close(s.stoppedCh)

		ticker := time.NewTicker(s.refreshRate)
		defer ticker.Stop()

		for {
			select {
			case <-s.stopCh:
				return
			case <-ticker.C:
				s.mu.Lock()
				frame := GetFormatter().colored(colorBlue, s.frames[s.frameIndex])
				fmt.Fprintf(s.writer, "\r%s %s", frame, s.prefix)
				s.frameIndex = (s.frameIndex + 1) % len(s.frames)
				s.mu.Unlock()
			}
		}
	}()
}

// Stop detiene el spinner y muestra el mensaje final
func (s *Spinner) Stop(finalMsg string) {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return
	}
	s.active = false
	s.mu.Unlock()

	close(s.stopCh)
	<-s.stoppedCh

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isTTY {
		fmt.Fprintf(s.writer, "\r\033[K%s\n", finalMsg)
		return
	}
	fmt.Fprintf(s.writer, "%s\n", finalMsg)
}

// StopSuccess detiene con mensaje de éxito
func (s *Spinner) StopSuccess(msg string) {
	status := GetFormatter().colored(colorGreen, "[✔]")
	s.Stop(fmt.Sprintf("%s %s", status, msg))
}

// StopError detiene con mensaje de error
func (s *Spinner) StopError(msg string) {
	status := GetFormatter().colored(colorRed, "[✗]")
	s.Stop(fmt.Sprintf("%s %s", status, msg))
}
