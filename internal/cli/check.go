package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"mirror-batch/internal/core/runner"
	"mirror-batch/internal/domains"
	"mirror-batch/internal/platform/config"
)

// requirement es una comprobación previa a la ejecución.
type requirement struct {
	name  string
	check func(cfg *config.Config) (string, error)
}

var requirements = []requirement{
	{name: "binario", check: checkBinary},
	{name: "lista de dominios", check: checkInput},
	{name: "directorio base", check: checkBaseDir},
}

var errChecksFailed = errors.New("hay comprobaciones fallidas")

func newCheckCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Comprueba binario, lista de dominios y directorio base sin copiar nada",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := resolveConfig(cmd, o)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runChecks(cmd.OutOrStdout(), cfg)
		},
	}
}

func runChecks(w io.Writer, cfg *config.Config) error {
	failed := 0
	for _, req := range requirements {
		detail, err := req.check(cfg)
		if err != nil {
			failed++
			fmt.Fprintf(w, "✗ %s: %v\n", req.name, err)
			continue
		}
		fmt.Fprintf(w, "✔ %s: %s\n", req.name, detail)
	}
	if failed > 0 {
		return errChecksFailed
	}
	return nil
}

func checkBinary(cfg *config.Config) (string, error) {
	return runner.ResolveBin(cfg.MirrorBin)
}

func checkInput(cfg *config.Config) (string, error) {
	f, err := os.Open(cfg.InputFile)
	if err != nil {
		return "", err
	}
	defer f.Close()

	list, dropped, err := domains.Read(f)
	if err != nil {
		return "", err
	}
	if len(list) == 0 {
		return "", fmt.Errorf("%s no contiene dominios válidos", cfg.InputFile)
	}
	return fmt.Sprintf("%s (%d válidos, %d descartados)", cfg.InputFile, len(list), len(dropped)), nil
}

func checkBaseDir(cfg *config.Config) (string, error) {
	info, err := os.Stat(cfg.BaseDir)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s no es un directorio", cfg.BaseDir)
	}
	probe, err := os.CreateTemp(cfg.BaseDir, ".mirror-batch-check-*")
	if err != nil {
		return "", fmt.Errorf("%s no admite escritura: %w", cfg.BaseDir, err)
	}
	name := probe.Name()
	probe.Close()
	os.Remove(name)

	abs, err := filepath.Abs(cfg.BaseDir)
	if err != nil {
		abs = cfg.BaseDir
	}
	return abs, nil
}
