// Package mirror ejecuta la herramienta externa de mirroring para un dominio,
// reparte su salida entre la consola y un log propio del dominio y registra
// el resultado sin abortar nunca el lote.
package mirror

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"mirror-batch/internal/core/runner"
	apperrors "mirror-batch/internal/platform/errors"
	"mirror-batch/internal/platform/logx"
)

// TargetPrefix precede al nombre del dominio en la carpeta de destino.
const TargetPrefix = "Strona_"

// Recorder recibe el resultado de cada intento; runlog.Run lo implementa.
type Recorder interface {
	Success(domain string) error
	Failure(domain string, cause error) error
}

// Result es el resultado de un intento de mirror.
type Result struct {
	Domain   string
	Target   string
	LogPath  string
	OK       bool
	ExitCode int
	Err      error
	Lines    int
	Duration time.Duration
}

// Config agrupa lo necesario para lanzar la herramienta.
type Config struct {
	// Bin es el binario de mirroring (por defecto httrack).
	Bin string
	// Options se añade tras "https://{domain} -O {target}"; cada aparición de
	// Placeholder se sustituye por el dominio.
	Options     []string
	Placeholder string
	// Dest es el directorio de la ejecución.
	Dest string
	// Console recibe la salida de la herramienta; nil la descarta.
	Console io.Writer
}

// Mirrorer lanza un proceso por dominio, uno detrás de otro.
type Mirrorer struct {
	cfg      Config
	recorder Recorder
}

// New construye un Mirrorer. recorder puede ser nil.
func New(cfg Config, recorder Recorder) *Mirrorer {
	if cfg.Console == nil {
		cfg.Console = io.Discard
	}
	return &Mirrorer{cfg: cfg, recorder: recorder}
}

// TargetDir devuelve {dest}/Strona_{dominio con '.' cambiado por '_'}.
func TargetDir(dest, domain string) string {
	return filepath.Join(dest, TargetPrefix+strings.ReplaceAll(domain, ".", "_"))
}

// LogPath devuelve la ruta de destino con su extensión sustituida por ".log".
func LogPath(target string) string {
	return strings.TrimSuffix(target, filepath.Ext(target)) + ".log"
}

// Command construye la invocación de la herramienta para domain.
func (m *Mirrorer) Command(domain string) runner.Command {
	target := TargetDir(m.cfg.Dest, domain)
	args := make([]string, 0, len(m.cfg.Options)+3)
	args = append(args, "https://"+domain, "-O", target)
	for _, opt := range m.cfg.Options {
		if m.cfg.Placeholder != "" {
			opt = strings.ReplaceAll(opt, m.cfg.Placeholder, domain)
		}
		args = append(args, opt)
	}
	return runner.Command{Name: m.cfg.Bin, Args: args}
}

// Mirror copia un dominio. Nunca devuelve error: cualquier fallo queda en
// Result y en los registros de la ejecución.
func (m *Mirrorer) Mirror(ctx context.Context, domain string) Result {
	target := TargetDir(m.cfg.Dest, domain)
	res := Result{
		Domain:  domain,
		Target:  target,
		LogPath: LogPath(target),
	}

	outcome, err := m.run(ctx, domain, res.LogPath)
	res.ExitCode = outcome.ExitCode
	res.Lines = outcome.Lines
	res.Duration = outcome.Duration

	switch {
	case err != nil:
		res.Err = err
	case outcome.ExitCode != 0:
		res.Err = &apperrors.ExitError{Binary: m.cfg.Bin, Domain: domain, Code: outcome.ExitCode}
	default:
		res.OK = true
	}

	m.record(res)
	return res
}

func (m *Mirrorer) run(ctx context.Context, domain, logPath string) (runner.Outcome, error) {
	logFile, err := os.Create(logPath)
	if err != nil {
		return runner.Outcome{}, fmt.Errorf("crear log de %s: %w", domain, err)
	}
	defer logFile.Close()

	sink := io.MultiWriter(m.cfg.Console, logFile)
	outcome, err := runner.RunCombined(ctx, m.Command(domain), sink)
	if err != nil {
		return outcome, err
	}
	if err := logFile.Close(); err != nil {
		return outcome, fmt.Errorf("cerrar log de %s: %w", domain, err)
	}
	return outcome, nil
}

func (m *Mirrorer) record(res Result) {
	fields := logx.Fields{
		"exit_code":   res.ExitCode,
		"duration_ms": res.Duration.Milliseconds(),
		"log":         res.LogPath,
	}

	var recErr error
	if res.OK {
		logx.LogDomain(logx.LevelInfo, res.Domain, "mirror completado", fields)
		if m.recorder != nil {
			recErr = m.recorder.Success(res.Domain)
		}
	} else {
		fields["error"] = res.Err.Error()
		logx.LogDomain(logx.LevelWarn, res.Domain, "mirror fallido", fields)
		if m.recorder != nil {
			recErr = m.recorder.Failure(res.Domain, res.Err)
		}
	}
	if recErr != nil {
		logx.LogDomain(logx.LevelError, res.Domain, "no se pudo registrar el resultado", logx.Fields{"error": recErr.Error()})
	}
}
