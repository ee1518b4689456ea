// Package cli define los comandos de mirror-batch sobre cobra.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"mirror-batch/internal/app"
	"mirror-batch/internal/platform/config"
	apperrors "mirror-batch/internal/platform/errors"
	"mirror-batch/internal/platform/logx"
)

const flagConfig = "config"

// Códigos de salida.
const (
	ExitOK          = 0
	ExitFatal       = 1
	ExitInterrupted = 130
)

// errInterrupted marca un lote detenido por señal; el archivo ya se creó.
var errInterrupted = errors.New("ejecución interrumpida; el archivo contiene lo copiado hasta ahora")

// runFunc permite a los tests sustituir el orquestador.
var runFunc = app.Run

// options guarda los valores de flags antes de combinarlos con el archivo de
// configuración.
type options struct {
	configPath string
	opts       string
	cfg        config.Config
}

// Execute ejecuta la CLI con os.Args y devuelve el código de salida.
func Execute(ctx context.Context) int {
	return execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
}

func execute(ctx context.Context, args []string, out, errOut io.Writer) int {
	if args == nil {
		args = []string{}
	}
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(out)
	cmd.SetErr(errOut)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return ExitOK
	}
	printError(errOut, err)
	if errors.Is(err, errInterrupted) {
		return ExitInterrupted
	}
	return ExitFatal
}

// printError muestra el error y, aparte, la sugerencia y el contexto que
// lleve adjuntos.
func printError(w io.Writer, err error) {
	fmt.Fprintf(w, "✗ %v\n", err)
	if suggestion := apperrors.GetSuggestion(err); suggestion != "" {
		fmt.Fprintf(w, "💡 Sugerencia: %s\n", suggestion)
	}
	ctx := apperrors.GetContext(err)
	if len(ctx) == 0 {
		return
	}
	fmt.Fprintln(w, "Contexto:")
	for _, k := range slices.Sorted(maps.Keys(ctx)) {
		fmt.Fprintf(w, "  • %s: %s\n", k, ctx[k])
	}
}

func newRootCmd() *cobra.Command {
	o := &options{cfg: *config.Default()}

	root := &cobra.Command{
		Use:   "mirror-batch",
		Short: "Copia en lote una lista de sitios con HTTrack y archiva el resultado",
		Long: "Lee una lista de dominios, lanza la herramienta de mirroring para cada uno\n" +
			"en orden, registra éxitos y fallos y empaqueta la ejecución en un .tar.gz.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBatch(cmd, o)
		},
	}

	bindRunFlags(root.PersistentFlags(), o)

	root.AddCommand(newRunCmd(o), newRetryCmd(o), newDomainsCmd(o), newCheckCmd(o))
	return root
}

func bindRunFlags(fs *pflag.FlagSet, o *options) {
	fs.StringVar(&o.configPath, flagConfig, "", "archivo de configuración YAML o JSON")
	fs.StringVar(&o.cfg.InputFile, config.FlagInput, o.cfg.InputFile, "lista de dominios, uno por línea")
	fs.StringVar(&o.cfg.BaseDir, config.FlagBaseDir, o.cfg.BaseDir, "directorio donde se crean la ejecución y el archivo")
	fs.StringVar(&o.cfg.RunName, config.FlagRunName, o.cfg.RunName, "prefijo del directorio de la ejecución")
	fs.StringVar(&o.cfg.MirrorBin, config.FlagBin, o.cfg.MirrorBin, "binario de mirroring")
	fs.StringVar(&o.opts, config.FlagOpts, "", "opciones del binario separadas por comas ({domain} se sustituye)")
	fs.BoolVar(&o.cfg.WarnOnDrop, config.FlagWarnOnDrop, false, "avisar de cada línea descartada de la lista")
	fs.BoolVar(&o.cfg.Report, config.FlagReport, false, "escribir report.json en el directorio de la ejecución")
	fs.BoolVar(&o.cfg.NoProgress, config.FlagNoProgress, false, "no mostrar la barra de progreso")
	fs.StringVar(&o.cfg.LogFile, config.FlagLogFile, "", "log JSON adicional con rotación")
	fs.CountVarP(&o.cfg.Verbosity, config.FlagVerbosity, "v", "verbosidad (-v, -vv, -vvv)")
	fs.StringVar(&o.cfg.LogLevel, config.FlagLogLevel, "", "nivel de log explícito (error, warn, info, debug, trace); pisa -v")
}

// resolveConfig combina flags y archivo. Solo los flags pasados de forma
// explícita pisan los valores del archivo.
func resolveConfig(cmd *cobra.Command, o *options) (*config.Config, error) {
	flagCfg := o.cfg
	setFlags := map[string]bool{}
	cmd.Flags().Visit(func(f *pflag.Flag) {
		setFlags[f.Name] = true
	})
	if setFlags[config.FlagOpts] {
		flagCfg.MirrorOptions = config.SplitList(o.opts)
	}
	return config.Resolve(o.configPath, &flagCfg, setFlags)
}

// applyLogLevel fija el nivel desde log_level o, si falta, desde -v.
func applyLogLevel(cfg *config.Config) error {
	if cfg.LogLevel == "" {
		logx.SetVerbosity(cfg.Verbosity)
		return nil
	}
	lvl, err := logx.ParseLevel(cfg.LogLevel)
	if err != nil {
		return apperrors.NewConfigurationError("log_level", cfg.LogLevel, "nivel desconocido",
			"usa --log-level=error|warn|info|debug|trace")
	}
	logx.SetLevel(lvl)
	return nil
}

// setupLogging aplica el nivel y abre el log en archivo si se pidió.
func setupLogging(cfg *config.Config) (func(), error) {
	if err := applyLogLevel(cfg); err != nil {
		return nil, err
	}
	if cfg.LogFile == "" {
		return func() {}, nil
	}
	closer, err := logx.AddFile(cfg.LogFile)
	if err != nil {
		return nil, fmt.Errorf("abrir log %s: %w", cfg.LogFile, err)
	}
	return func() { _ = closer.Close() }, nil
}

func runBatch(cmd *cobra.Command, o *options) error {
	cfg, err := resolveConfig(cmd, o)
	if err != nil {
		return err
	}
	return runWith(cmd.Context(), cfg)
}

func runWith(ctx context.Context, cfg *config.Config) error {
	cleanup, err := setupLogging(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	summary, err := runFunc(ctx, cfg)
	if err != nil {
		return err
	}
	if summary != nil && summary.Interrupted {
		return errInterrupted
	}
	return nil
}
