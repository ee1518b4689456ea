package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"mirror-batch/internal/domains"
	"mirror-batch/internal/platform/config"
	"mirror-batch/internal/platform/logx"
	"mirror-batch/internal/runlog"
)

func newRunCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Copia todos los dominios de la lista y archiva la ejecución",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBatch(cmd, o)
		},
	}
}

func newRetryCmd(o *options) *cobra.Command {
	var from string

	c := &cobra.Command{
		Use:   "retry",
		Short: "Reintenta los dominios fallidos de una ejecución anterior",
		Long: "Usa nieudane_pobrania.txt del directorio indicado con --from como lista de\n" +
			"dominios. --input sigue teniendo prioridad si se pasa de forma explícita.\n\n" +
			"Un reintento el mismo día y con el mismo --run-name reutiliza ese directorio:\n" +
			"los fallos se añaden al final de la misma nieudane_pobrania.txt que se leyó y\n" +
			"los dominios recuperados no se borran de ella. Usa otro --run-name para\n" +
			"obtener una lista de fallos limpia.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := resolveConfig(cmd, o)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed(config.FlagInput) {
				cfg.InputFile = runlog.FailedListIn(from)
			}

			list, err := domains.Load(cfg.InputFile, domains.Options{})
			if err != nil {
				return err
			}
			if len(list) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "Nada que reintentar en %s\n", cfg.InputFile)
				return nil
			}
			logx.Info("reintentando dominios fallidos", logx.Fields{"from": from, "domains": len(list)})
			return runWith(cmd.Context(), cfg)
		},
	}

	c.Flags().StringVar(&from, "from", "", "directorio de una ejecución anterior")
	_ = c.MarkFlagRequired("from")
	return c
}

func newDomainsCmd(o *options) *cobra.Command {
	var registrable bool

	c := &cobra.Command{
		Use:   "domains",
		Short: "Muestra la lista de dominios normalizada sin copiar nada",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := resolveConfig(cmd, o)
			if err != nil {
				return err
			}
			if err := applyLogLevel(cfg); err != nil {
				return err
			}

			list, err := domains.Load(cfg.InputFile, domains.Options{WarnOnDrop: cfg.WarnOnDrop})
			if err != nil {
				return err
			}

			var b strings.Builder
			for _, d := range list {
				b.WriteString(d)
				if registrable {
					b.WriteString("\t")
					b.WriteString(domains.Registrable(d))
				}
				b.WriteString("\n")
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), b.String())
			return err
		},
	}

	c.Flags().BoolVar(&registrable, "registrable", false, "añadir el dominio registrable (eTLD+1) a cada línea")
	return c
}
