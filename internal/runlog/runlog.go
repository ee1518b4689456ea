// Package runlog gestiona el directorio de una ejecución y sus dos registros
// de solo-añadir: el log general y la lista de dominios fallidos.
package runlog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	apperrors "mirror-batch/internal/platform/errors"
)

const (
	RunLogName     = "backup_log.txt"
	FailedListName = "nieudane_pobrania.txt"

	dateLayout = "2006-01-02"
	timeLayout = "150405"
)

// Run es el contexto de una ejecución: directorio con fecha y los dos logs.
type Run struct {
	mu      sync.Mutex
	baseDir string
	name    string
	dir     string
	started time.Time
	runLog  *os.File
	failed  *os.File
	closed  bool
}

// DirName devuelve el nombre del directorio de la ejecución: {name}_{YYYY-MM-DD}.
func DirName(runName string, day time.Time) string {
	return fmt.Sprintf("%s_%s", runName, day.Format(dateLayout))
}

// Open crea (o reutiliza) {baseDir}/{runName}_{fecha} y abre los logs en modo
// añadir. Dos ejecuciones el mismo día comparten directorio y logs.
func Open(baseDir, runName string, now time.Time) (*Run, error) {
	dir := filepath.Join(baseDir, DirName(runName, now))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("crear directorio de la ejecución: %w", err)
	}

	runLog, err := openAppend(filepath.Join(dir, RunLogName))
	if err != nil {
		return nil, err
	}
	failed, err := openAppend(filepath.Join(dir, FailedListName))
	if err != nil {
		runLog.Close()
		return nil, err
	}

	return &Run{
		baseDir: baseDir,
		name:    runName,
		dir:     dir,
		started: now,
		runLog:  runLog,
		failed:  failed,
	}, nil
}

func openAppend(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("abrir %s: %w", filepath.Base(path), err)
	}
	return f, nil
}

// Dir es la ruta del directorio de la ejecución.
func (r *Run) Dir() string { return r.dir }

// Started es el instante en que se abrió la ejecución.
func (r *Run) Started() time.Time { return r.started }

// RunLogPath es la ruta de backup_log.txt.
func (r *Run) RunLogPath() string { return filepath.Join(r.dir, RunLogName) }

// FailedListPath es la ruta de nieudane_pobrania.txt.
func (r *Run) FailedListPath() string { return filepath.Join(r.dir, FailedListName) }

// ArchivePath devuelve {baseDir}/{runName}_{fecha}_{HHMMSS}.tar.gz: la fecha es
// la del inicio de la ejecución y la hora la del momento de archivar.
func (r *Run) ArchivePath(at time.Time) string {
	name := fmt.Sprintf("%s_%s.tar.gz", DirName(r.name, r.started), at.Format(timeLayout))
	return filepath.Join(r.baseDir, name)
}

// Success registra un mirror correcto en el log general.
func (r *Run) Success(domain string) error {
	return r.appendLine(r.runLog, "✅ Sukces: "+domain)
}

// Failure registra un mirror fallido en el log general y añade el dominio a
// la lista de fallidos. Un ExitError se anota como error de la herramienta;
// cualquier otra causa como excepción, con su primer renglón.
func (r *Run) Failure(domain string, cause error) error {
	line := "❌ Błąd: " + domain
	if cause != nil && !apperrors.IsExit(cause) {
		line = fmt.Sprintf("❌ Błąd (wyjątek): %s - %s", domain, firstLine(cause.Error()))
	}
	if err := r.appendLine(r.runLog, line); err != nil {
		return err
	}
	return r.appendLine(r.failed, domain)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}

func (r *Run) appendLine(f *os.File, line string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return os.ErrClosed
	}
	if _, err := f.WriteString(line + "\n"); err != nil {
		return fmt.Errorf("escribir en %s: %w", filepath.Base(f.Name()), err)
	}
	return nil
}

// Close cierra ambos logs. Es seguro llamarlo más de una vez.
func (r *Run) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true

	var err error
	if e := r.runLog.Close(); e != nil {
		err = e
	}
	if e := r.failed.Close(); e != nil && err == nil {
		err = e
	}
	return err
}

// FailedListIn devuelve la ruta de la lista de fallidos de un directorio de
// ejecución anterior, para reintentar solo esos dominios.
func FailedListIn(runDir string) string {
	return filepath.Join(runDir, FailedListName)
}
