package logx

import (
	"io"
	"os"

	"golang.org/x/term"
)

// OutputConfig describe el terminal de salida
type OutputConfig struct {
	IsTTY   bool
	NoColor bool
}

// DetectOutput detecta características del terminal
func DetectOutput(w io.Writer) OutputConfig {
	tty := IsTerminal(w)
	return OutputConfig{
		IsTTY:   tty,
		NoColor: !tty || os.Getenv("NO_COLOR") != "",
	}
}

// IsTerminal verifica si el writer es un terminal
func IsTerminal(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		return term.IsTerminal(int(f.Fd()))
	}
	return false
}
