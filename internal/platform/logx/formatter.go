package logx

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorBold   = "\033[1m"
	colorDim    = "\033[2m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[37m"
)

// LogFormatter gestiona el formato de las líneas de cabecera y resumen
type LogFormatter struct {
	colorEnabled bool
}

// NewLogFormatter crea un nuevo formatter
func NewLogFormatter(colorEnabled bool) *LogFormatter {
	return &LogFormatter{colorEnabled: colorEnabled}
}

// colored aplica color a un string si está habilitado
func (f *LogFormatter) colored(codes, text string) string {
	if f == nil || !f.colorEnabled {
		return text
	}
	return codes + text + colorReset
}

// FormatSummary formatea un resumen de ejecución con claves ordenadas
func (f *LogFormatter) FormatSummary(title string, stats map[string]interface{}) string {
	line := strings.Repeat(f.colored(colorGreen, "─"), 40)

	keys := make([]string, 0, len(stats))
	for k := range stats {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	fmt.Fprintf(&b, "\n%s\n", line)
	fmt.Fprintf(&b, "  %s\n", f.colored(colorBold+colorGreen, title))
	fmt.Fprintf(&b, "%s\n", line)
	for _, key := range keys {
		fmt.Fprintf(&b, "  %s: %v\n", f.colored(colorCyan, key), stats[key])
	}
	return b.String()
}

// FormatDomainStart formatea el inicio del mirror de un dominio
// Ejemplo: ▶ [3/40] example.com   httrack https://example.com
func (f *LogFormatter) FormatDomainStart(index, total int, domain, command string) string {
	arrow := f.colored(colorBlue, "▶")
	counter := f.colored(colorDim+colorGray, fmt.Sprintf("[%d/%d]", index, total))
	name := f.colored(colorBold+colorCyan, domain)
	return fmt.Sprintf("%s %s %-24s %s", arrow, counter, name, command)
}

// FormatDomainFinish formatea el fin del mirror de un dominio
// Ejemplo: ✔ example.com   done in 18.9s   exit=0  out=310
func (f *LogFormatter) FormatDomainFinish(domain string, exitCode int, duration time.Duration, lines int) string {
	mark := f.colored(colorGreen, "✔")
	exit := f.colored(colorGreen, fmt.Sprintf("exit=%d", exitCode))
	if exitCode != 0 {
		mark = f.colored(colorRed, "✗")
		exit = f.colored(colorRed, fmt.Sprintf("exit=%d", exitCode))
	}
	name := f.colored(colorBold+colorCyan, domain)

	parts := []string{fmt.Sprintf("done in %s", FormatDuration(duration)), exit}
	if lines > 0 {
		parts = append(parts, fmt.Sprintf("out=%d", lines))
	}
	return fmt.Sprintf("%s %-24s %s", mark, name, strings.Join(parts, "  "))
}

// FormatDomainError formatea un error que impidió ejecutar el mirror
// Ejemplo: ✗ example.com   error: 'httrack' no encontrado en PATH
func (f *LogFormatter) FormatDomainError(domain, errMsg string) string {
	cross := f.colored(colorRed, "✗")
	name := f.colored(colorBold+colorCyan, domain)
	return fmt.Sprintf("%s %-24s error: %s", cross, name, f.colored(colorRed, errMsg))
}
