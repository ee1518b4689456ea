package runner

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	apperrors "mirror-batch/internal/platform/errors"
	"mirror-batch/internal/platform/logx"
)

// maxLineSize limita el tamaño de una línea de salida; HTTrack en -vv puede
// volcar URLs muy largas.
const maxLineSize = 2 * 1024 * 1024

// waitDelay acota la espera de salida pendiente cuando el proceso ya terminó
// (o se canceló) pero algún hijo mantiene el pipe abierto.
const waitDelay = 10 * time.Second

// Command describes one external process invocation.
type Command struct {
	Name string
	Args []string
	// Dir is the working directory; empty means the current one.
	Dir string
}

// String renders the command line for logs.
func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Name
	}
	return c.Name + " " + strings.Join(c.Args, " ")
}

// Outcome is what is known about a process that ran to completion.
type Outcome struct {
	ExitCode int
	Lines    int
	Duration time.Duration
}

// ResolveBin returns the absolute path of name, or a MissingBinaryError with
// the searched PATH entries.
func ResolveBin(name string) (string, error) {
	path, err := exec.LookPath(name)
	if err != nil {
		return "", apperrors.NewMissingBinaryError(name, searchPaths()...)
	}
	return path, nil
}

func searchPaths() []string {
	return strings.Split(os.Getenv("PATH"), string(os.PathListSeparator))
}

// RunCombined executes cmd with stdout and stderr sharing one pipe and writes
// every output line, newline-terminated and in emission order, to w.
//
// A process that exits on its own yields an Outcome and a nil error, whatever
// its exit code. The error is non-nil only when the process could not be
// started, its output could not be read or written to w, or ctx was cancelled.
func RunCombined(ctx context.Context, c Command, w io.Writer) (Outcome, error) {
	var outcome Outcome

	path, err := ResolveBin(c.Name)
	if err != nil {
		logx.Trace("Lookup fallido", logx.Fields{"command": c.Name, "error": err.Error()})
		return outcome, err
	}

	g, gctx := errgroup.WithContext(ctx)
	cmd := exec.CommandContext(gctx, path, c.Args...)
	if c.Dir != "" {
		cmd.Dir = c.Dir
	}
	cmd.WaitDelay = waitDelay

	pr, pw := io.Pipe()
	cmd.Stdout = pw
	cmd.Stderr = pw

	logx.Debug("Ejecutando comando", logx.Fields{"command": c.Name, "args": strings.Join(c.Args, " ")})
	logx.Trace("Detalles del comando", logx.Fields{"path": path, "dir": cmd.Dir})

	start := time.Now()
	if err := cmd.Start(); err != nil {
		pw.Close()
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
			return outcome, apperrors.NewMissingBinaryError(c.Name, searchPaths()...)
		}
		logx.Error("Error iniciar comando", logx.Fields{"command": c.Name, "error": err.Error()})
		return outcome, fmt.Errorf("iniciar %s: %w", c.Name, err)
	}

	var waitErr error
	g.Go(func() error {
		waitErr = cmd.Wait()
		// Wait solo vuelve cuando toda la salida se copió al pipe.
		pw.Close()
		return nil
	})

	g.Go(func() error {
		sc := bufio.NewScanner(pr)
		sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
		sc.Split(scanLines)
		for sc.Scan() {
			line := sc.Bytes()
			buf := make([]byte, 0, len(line)+1)
			buf = append(append(buf, line...), '\n')
			if _, err := w.Write(buf); err != nil {
				pr.CloseWithError(err)
				return fmt.Errorf("escribir salida de %s: %w", c.Name, err)
			}
			outcome.Lines++
		}
		if err := sc.Err(); err != nil {
			pr.CloseWithError(err)
			return fmt.Errorf("leer salida de %s: %w", c.Name, err)
		}
		return nil
	})

	readErr := g.Wait()
	outcome.Duration = time.Since(start)
	if state := cmd.ProcessState; state != nil {
		outcome.ExitCode = state.ExitCode()
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		logx.Warn("Context cancelado", logx.Fields{"command": c.Name})
		return outcome, ctxErr
	}
	if readErr != nil {
		logx.Error("Error leyendo salida", logx.Fields{"command": c.Name, "error": readErr.Error()})
		return outcome, readErr
	}

	if errors.Is(waitErr, exec.ErrWaitDelay) {
		logx.Warn("Salida pendiente descartada tras terminar el proceso", logx.Fields{"command": c.Name})
		waitErr = nil
	}
	var exitErr *exec.ExitError
	if waitErr != nil && !errors.As(waitErr, &exitErr) {
		logx.Error("Error wait", logx.Fields{"command": c.Name, "error": waitErr.Error()})
		return outcome, fmt.Errorf("esperar %s: %w", c.Name, waitErr)
	}

	logx.Trace("Comando completado", logx.Fields{
		"command":     c.Name,
		"exit_code":   outcome.ExitCode,
		"duration_ms": outcome.Duration.Milliseconds(),
		"lines":       outcome.Lines,
	})
	return outcome, nil
}

// scanLines is bufio.ScanLines that also ends a line at a bare '\r', which
// httrack uses to redraw its progress line. "\r\n" counts as one break.
func scanLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		if data[i] == '\n' {
			return i + 1, data[:i], nil
		}
		if i+1 < len(data) {
			if data[i+1] == '\n' {
				return i + 2, data[:i], nil
			}
			return i + 1, data[:i], nil
		}
		if atEOF {
			return i + 1, data[:i], nil
		}
		// A trailing '\r' may be the first half of "\r\n".
		return 0, nil, nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
