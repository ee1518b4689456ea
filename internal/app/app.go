// Package app orquesta una ejecución completa: cargar dominios, copiar cada
// uno en orden, escribir el informe y archivar el directorio de la ejecución.
package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"mirror-batch/internal/archive"
	"mirror-batch/internal/core/runner"
	"mirror-batch/internal/domains"
	"mirror-batch/internal/mirror"
	"mirror-batch/internal/platform/config"
	apperrors "mirror-batch/internal/platform/errors"
	"mirror-batch/internal/platform/logx"
	"mirror-batch/internal/report"
	"mirror-batch/internal/runlog"
)

// Puntos de sustitución para tests.
var (
	nowFunc                 = time.Now
	archiveCreate           = archive.Create
	stdout        io.Writer = os.Stdout
	stderr        io.Writer = os.Stderr
)

// Summary es el balance de una ejecución.
type Summary struct {
	RunDir      string
	ArchivePath string
	ReportPath  string
	Total       int
	Succeeded   int
	Failed      int
	// Failures lista los dominios fallidos en el orden de intento.
	Failures []string
	// Interrupted indica que una señal detuvo el lote antes de terminar.
	Interrupted bool
	Archive     archive.Stats
	Duration    time.Duration
}

// Run ejecuta el lote descrito por cfg. Los fallos por dominio nunca detienen
// el lote; solo devuelven error la configuración inválida, la lista de
// dominios ilegible, el directorio de la ejecución y el archivado.
func Run(ctx context.Context, cfg *config.Config) (*Summary, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if _, err := runner.ResolveBin(cfg.MirrorBin); err != nil {
		logx.Warn("binario de mirroring no disponible; cada dominio fallará", logx.Fields{
			"bin":   cfg.MirrorBin,
			"error": err.Error(),
		})
	}

	list, err := domains.Load(cfg.InputFile, domains.Options{WarnOnDrop: cfg.WarnOnDrop})
	if err != nil {
		return nil, err
	}

	run, err := runlog.Open(cfg.BaseDir, cfg.RunName, nowFunc())
	if err != nil {
		return nil, err
	}
	defer run.Close()

	summary := &Summary{RunDir: run.Dir(), Total: len(list)}
	logx.Info("ejecución iniciada", logx.Fields{
		"dir":     run.Dir(),
		"domains": len(list),
		"bin":     cfg.MirrorBin,
	})

	var rep *report.Report
	if cfg.Report {
		rep = report.New(run.Dir(), run.Started())
	}

	m := mirror.New(mirror.Config{
		Bin:         cfg.MirrorBin,
		Options:     cfg.MirrorOptions,
		Placeholder: config.DomainPlaceholder,
		Dest:        run.Dir(),
		Console:     stdout,
	}, run)

	var bar *progressBar
	if !cfg.NoProgress && logx.IsTerminal(stderr) {
		bar = newProgressBar(stderr, len(list))
	}

	fmt.Fprintf(stdout, "📥 Rozpoczynam mirrorowanie %d stron z użyciem %s...\n\n", len(list), filepath.Base(cfg.MirrorBin))
	mirrorAll(ctx, m, list, summary, rep, bar)

	if err := run.Close(); err != nil {
		logx.Warn("no se pudieron cerrar los logs de la ejecución", logx.Fields{"error": err.Error()})
	}

	if rep != nil {
		rep.Finish(nowFunc())
		path := filepath.Join(run.Dir(), report.FileName)
		if err := rep.Write(path); err != nil {
			logx.Warn("no se pudo escribir el informe", logx.Fields{"path": path, "error": err.Error()})
		} else {
			summary.ReportPath = path
		}
	}

	// El archivado corre aunque el lote se haya interrumpido: lo ya copiado
	// queda empaquetado.
	archivePath := run.ArchivePath(nowFunc())
	op := logx.StartOperation("archivado", logx.Fields{"path": archivePath})
	spinner := logx.NewSpinnerTo(stderr, "Archivando "+filepath.Base(run.Dir())+"...")
	spinner.Start()
	stats, err := archiveCreate(context.WithoutCancel(ctx), run.Dir(), archivePath)
	if err != nil {
		spinner.StopError("archivado fallido")
		op.Fail(err)
		return summary, err
	}
	if stats.Path != "" {
		archivePath = stats.Path
	}
	spinner.StopSuccess(filepath.Base(archivePath))
	op.AddField("files", stats.Files)
	op.AddField("bytes", stats.Bytes)
	op.Complete()

	summary.ArchivePath = archivePath
	summary.Archive = stats
	summary.Duration = nowFunc().Sub(run.Started())

	fmt.Fprintf(stdout, "\n📦 Backup zakończony. Archiwum utworzone: %s\n", archivePath)
	printSummary(summary)
	return summary, nil
}

// mirrorAll recorre la lista en orden. Tras una cancelación no se lanzan más
// intentos; el intento en curso termina como fallo.
func mirrorAll(ctx context.Context, m *mirror.Mirrorer, list []string, summary *Summary, rep *report.Report, bar *progressBar) {
	formatter := logx.GetFormatter()

	for i, domain := range list {
		if ctx.Err() != nil {
			summary.Interrupted = true
			logx.Warn("lote interrumpido", logx.Fields{
				"pending": len(list) - i,
				"reason":  ctx.Err().Error(),
			})
			return
		}

		fmt.Fprintln(stdout, formatter.FormatDomainStart(i+1, len(list), domain, m.Command(domain).String()))
		res := m.Mirror(ctx, domain)
		if res.Err != nil && !apperrors.IsExit(res.Err) {
			fmt.Fprintln(stdout, formatter.FormatDomainError(domain, firstLine(res.Err.Error())))
		} else {
			fmt.Fprintln(stdout, formatter.FormatDomainFinish(domain, res.ExitCode, res.Duration, res.Lines))
		}

		if res.OK {
			summary.Succeeded++
		} else {
			summary.Failed++
			summary.Failures = append(summary.Failures, domain)
		}
		if rep != nil {
			rep.Add(res)
		}
		bar.StepDone(domain, resultStatus(res))
	}

	if ctx.Err() != nil {
		summary.Interrupted = true
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}

func printSummary(s *Summary) {
	stats := map[string]interface{}{
		"dominios":  s.Total,
		"correctos": s.Succeeded,
		"fallidos":  s.Failed,
		"archivo":   s.ArchivePath,
		"duración":  logx.FormatDuration(s.Duration),
	}
	if s.ReportPath != "" {
		stats["informe"] = s.ReportPath
	}
	if s.Interrupted {
		stats["interrumpido"] = true
	}
	fmt.Fprint(stdout, logx.GetFormatter().FormatSummary("Resumen de la ejecución", stats))
}
