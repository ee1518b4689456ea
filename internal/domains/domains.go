// Package domains lee la lista de dominios a copiar y la reduce a hostnames
// simples, en el orden del archivo y sin deduplicar.
package domains

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"

	"golang.org/x/net/publicsuffix"

	"mirror-batch/internal/platform/logx"
)

// Options controla cómo se tratan las líneas descartadas.
type Options struct {
	// WarnOnDrop registra un aviso por cada línea no vacía descartada.
	// Por defecto el descarte es silencioso.
	WarnOnDrop bool
}

// Dropped describe una línea que no produjo un dominio válido.
type Dropped struct {
	Line int
	Raw  string
}

// Normalize convierte una línea de la lista en un hostname simple: quita
// espacios, un esquema http:// o https:// inicial y las barras finales.
// Solo acepta letras y dígitos (también Unicode), '.' y '-'.
func Normalize(line string) (string, bool) {
	candidate := strings.TrimSpace(line)
	switch {
	case strings.HasPrefix(candidate, "https://"):
		candidate = strings.TrimPrefix(candidate, "https://")
	case strings.HasPrefix(candidate, "http://"):
		candidate = strings.TrimPrefix(candidate, "http://")
	}
	candidate = strings.TrimRight(candidate, "/")

	if candidate == "" {
		return "", false
	}
	for _, r := range candidate {
		if !allowed(r) {
			return "", false
		}
	}
	return candidate, true
}

func allowed(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '.' || r == '-'
}

// Load abre path y devuelve los dominios válidos en orden de aparición.
func Load(path string, opts Options) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("abrir lista de dominios: %w", err)
	}
	defer f.Close()

	list, dropped, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("leer %s: %w", path, err)
	}

	if !opts.WarnOnDrop {
		logx.Debug("lista cargada", logx.Fields{"source": path, "valid": len(list)})
		return list, nil
	}
	for _, d := range dropped {
		logx.Warn("línea descartada", logx.Fields{"source": path, "line": d.Line, "raw": d.Raw})
	}
	logx.LogValidation(path, len(list), len(list)+len(dropped))
	return list, nil
}

// Read procesa r línea a línea. Las líneas vacías no cuentan como descartadas.
func Read(r io.Reader) ([]string, []Dropped, error) {
	var (
		list    []string
		dropped []Dropped
	)

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		raw := sc.Text()
		if lineNo == 1 {
			raw = strings.TrimPrefix(raw, "\ufeff")
		}
		if domain, ok := Normalize(raw); ok {
			list = append(list, domain)
			continue
		}
		if strings.TrimSpace(raw) != "" {
			dropped = append(dropped, Dropped{Line: lineNo, Raw: raw})
		}
	}
	if err := sc.Err(); err != nil {
		return nil, nil, err
	}
	return list, dropped, nil
}

// Registrable devuelve el dominio registrable (eTLD+1). Si la lista de sufijos
// públicos no lo puede resolver, devuelve el dominio en minúsculas.
func Registrable(domain string) string {
	lowered := strings.ToLower(strings.TrimSuffix(domain, "."))
	if lowered == "" {
		return ""
	}
	if effective, err := publicsuffix.EffectiveTLDPlusOne(lowered); err == nil && effective != "" {
		return effective
	}
	return lowered
}
