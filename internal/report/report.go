// Package report genera report.json con el resultado de cada dominio de una
// ejecución.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"

	"mirror-batch/internal/domains"
	"mirror-batch/internal/mirror"
)

const (
	// FileName es el nombre del informe dentro del directorio de la ejecución.
	FileName = "report.json"

	reportVersion = "1.0"

	StatusOK     = "ok"
	StatusFailed = "error"
)

// Entry describe el intento de mirror de un dominio.
type Entry struct {
	Domain      string `json:"domain"`
	Registrable string `json:"registrable,omitempty"`
	Status      string `json:"status"`
	ExitCode    int    `json:"exit_code"`
	Error       string `json:"error,omitempty"`
	DurationMS  int64  `json:"duration_ms"`
	Lines       int    `json:"lines"`
	Target      string `json:"target"`
	Log         string `json:"log"`
	Title       string `json:"title,omitempty"`
}

// Report agrupa las entradas de una ejecución.
type Report struct {
	mu sync.Mutex

	Version    string    `json:"version"`
	RunID      string    `json:"run_id"`
	RunDir     string    `json:"run_dir"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Total      int       `json:"total"`
	Succeeded  int       `json:"succeeded"`
	Failed     int       `json:"failed"`
	Entries    []Entry   `json:"entries"`
}

// New crea un informe vacío con un identificador de ejecución nuevo.
func New(runDir string, started time.Time) *Report {
	return &Report{
		Version:   reportVersion,
		RunID:     uuid.NewString(),
		RunDir:    runDir,
		StartedAt: started,
		Entries:   []Entry{},
	}
}

// Add incorpora el resultado de un dominio.
func (r *Report) Add(res mirror.Result) {
	entry := Entry{
		Domain:      res.Domain,
		ExitCode:    res.ExitCode,
		DurationMS:  res.Duration.Milliseconds(),
		Lines:       res.Lines,
		Target:      res.Target,
		Log:         res.LogPath,
		Registrable: domains.Registrable(res.Domain),
	}
	if res.OK {
		entry.Status = StatusOK
		entry.Title = PageTitle(res.Target, res.Domain)
	} else {
		entry.Status = StatusFailed
		if res.Err != nil {
			entry.Error = firstLine(res.Err.Error())
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.Entries = append(r.Entries, entry)
	r.Total++
	if res.OK {
		r.Succeeded++
	} else {
		r.Failed++
	}
}

// Finish marca el final de la ejecución.
func (r *Report) Finish(at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.FinishedAt = at
}

// Write guarda el informe como JSON indentado (write + rename).
func (r *Report) Write(path string) error {
	r.mu.Lock()
	data, err := json.MarshalIndent(r, "", "  ")
	r.mu.Unlock()
	if err != nil {
		return fmt.Errorf("serializar informe: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("escribir informe: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renombrar informe: %w", err)
	}
	return nil
}

// Load lee un informe escrito con Write.
func Load(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("leer informe: %w", err)
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parsear informe: %w", err)
	}
	return &r, nil
}

// PageTitle devuelve el <title> de la página principal copiada. httrack guarda
// el sitio en {target}/{domain}/index.html y deja su propio índice en
// {target}/index.html, que solo se usa si el primero no existe.
// Sin página o sin título devuelve "".
func PageTitle(target, domain string) string {
	for _, candidate := range []string{
		filepath.Join(target, domain, "index.html"),
		filepath.Join(target, "index.html"),
	} {
		if title, ok := readTitle(candidate); ok {
			return title
		}
	}
	return ""
}

func readTitle(path string) (string, bool) {
	f, err := os.Open(path)
	if err != nil {
		return "", false
	}
	defer f.Close()

	doc, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		return "", false
	}
	title := strings.Join(strings.Fields(doc.Find("title").First().Text()), " ")
	return title, title != ""
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}
