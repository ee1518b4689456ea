package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mirror-batch/internal/app"
	"mirror-batch/internal/platform/config"
	"mirror-batch/internal/platform/logx"
	"mirror-batch/internal/runlog"
)

// stubRun sustituye el orquestador y devuelve la configuración recibida.
func stubRun(t *testing.T, summary *app.Summary, err error) **config.Config {
	t.Helper()
	var got *config.Config
	old := runFunc
	runFunc = func(_ context.Context, cfg *config.Config) (*app.Summary, error) {
		got = cfg
		return summary, err
	}
	t.Cleanup(func() { runFunc = old })
	return &got
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var out, errOut bytes.Buffer
	code := execute(context.Background(), args, &out, &errOut)
	return code, out.String(), errOut.String()
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRootRunsWithDefaults(t *testing.T) {
	got := stubRun(t, &app.Summary{}, nil)

	code, _, errOut := runCLI(t)
	require.Equal(t, ExitOK, code, errOut)
	require.NotNil(t, *got)

	cfg := *got
	assert.Equal(t, config.DefaultInputFile, cfg.InputFile)
	assert.Equal(t, config.DefaultRunName, cfg.RunName)
	assert.Equal(t, config.DefaultMirrorBin, cfg.MirrorBin)
	assert.Equal(t, config.DefaultMirrorOptions, cfg.MirrorOptions)
}

func TestRunFlagsOverrideConfigFile(t *testing.T) {
	got := stubRun(t, &app.Summary{}, nil)
	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "mirror.yaml", `
input: from-file.txt
run_name: Desde_Archivo
bin: /opt/httrack
mirror_options:
  - --mirror
  - "+*.{domain}/*,-*.zip"
report: true
`)

	code, _, errOut := runCLI(t, "run", "--config", cfgPath, "--input", "cli.txt", "-vv")
	require.Equal(t, ExitOK, code, errOut)

	cfg := *got
	assert.Equal(t, "cli.txt", cfg.InputFile)
	assert.Equal(t, "Desde_Archivo", cfg.RunName)
	assert.Equal(t, "/opt/httrack", cfg.MirrorBin)
	assert.Equal(t, []string{"--mirror", "+*.{domain}/*,-*.zip"}, cfg.MirrorOptions)
	assert.True(t, cfg.Report)
	assert.Equal(t, 2, cfg.Verbosity)
}

func TestOptsFlagSplitsCSV(t *testing.T) {
	got := stubRun(t, &app.Summary{}, nil)

	code, _, errOut := runCLI(t, "--opts", "--mirror, -L1 ,--stay-on-same-domain,{domain}")
	require.Equal(t, ExitOK, code, errOut)
	assert.Equal(t, []string{"--mirror", "-L1", "--stay-on-same-domain", "{domain}"}, (*got).MirrorOptions)
}

func TestFatalErrorExitCode(t *testing.T) {
	stubRun(t, nil, errors.New("no se pudo crear el archivo"))

	code, _, errOut := runCLI(t, "run")
	assert.Equal(t, ExitFatal, code)
	assert.Contains(t, errOut, "no se pudo crear el archivo")
}

func TestInterruptedExitCode(t *testing.T) {
	stubRun(t, &app.Summary{Interrupted: true}, nil)

	code, _, errOut := runCLI(t, "run")
	assert.Equal(t, ExitInterrupted, code)
	assert.Contains(t, errOut, "interrumpida")
}

func TestMissingConfigFile(t *testing.T) {
	stubRun(t, &app.Summary{}, nil)

	code, _, errOut := runCLI(t, "--config", filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Equal(t, ExitFatal, code)
	assert.Contains(t, errOut, "no existe")
}

func TestUnexpectedArgs(t *testing.T) {
	stubRun(t, &app.Summary{}, nil)

	code, _, _ := runCLI(t, "run", "example.com")
	assert.Equal(t, ExitFatal, code)
}

func TestDomainsCommand(t *testing.T) {
	dir := t.TempDir()
	input := writeFile(t, dir, "domeny.txt", "https://www.example.co.uk/\nbad domain\n\nhttp://foo.org\n")

	code, out, errOut := runCLI(t, "domains", "--input", input)
	require.Equal(t, ExitOK, code, errOut)
	assert.Equal(t, "www.example.co.uk\nfoo.org\n", out)

	code, out, errOut = runCLI(t, "domains", "--input", input, "--registrable")
	require.Equal(t, ExitOK, code, errOut)
	assert.Equal(t, "www.example.co.uk\texample.co.uk\nfoo.org\tfoo.org\n", out)
}

func TestDomainsMissingInput(t *testing.T) {
	code, _, errOut := runCLI(t, "domains", "--input", filepath.Join(t.TempDir(), "missing.txt"))
	assert.Equal(t, ExitFatal, code)
	assert.NotEmpty(t, errOut)
}

func TestRetryUsesFailedList(t *testing.T) {
	got := stubRun(t, &app.Summary{}, nil)
	runDir := t.TempDir()
	writeFile(t, runDir, runlog.FailedListName, "foo.org\nbar.pl\n")

	code, _, errOut := runCLI(t, "retry", "--from", runDir, "--run-name", "Ponowienie")
	require.Equal(t, ExitOK, code, errOut)

	cfg := *got
	require.NotNil(t, cfg)
	assert.Equal(t, runlog.FailedListIn(runDir), cfg.InputFile)
	assert.Equal(t, "Ponowienie", cfg.RunName)
}

func TestRetryNothingToDo(t *testing.T) {
	got := stubRun(t, &app.Summary{}, nil)
	runDir := t.TempDir()
	writeFile(t, runDir, runlog.FailedListName, "")

	code, out, errOut := runCLI(t, "retry", "--from", runDir)
	require.Equal(t, ExitOK, code, errOut)
	assert.True(t, strings.HasPrefix(out, "Nada que reintentar"))
	assert.Nil(t, *got)
}

func TestRetryRequiresFrom(t *testing.T) {
	stubRun(t, &app.Summary{}, nil)

	code, _, errOut := runCLI(t, "retry")
	assert.Equal(t, ExitFatal, code)
	assert.Contains(t, errOut, "from")
}

func TestRetryHelpWarnsAboutSameDayAppend(t *testing.T) {
	code, out, errOut := runCLI(t, "retry", "--help")
	require.Equal(t, ExitOK, code, errOut)
	assert.Contains(t, out, "reutiliza ese directorio")
	assert.Contains(t, out, "no se borran")
	assert.Contains(t, out, "--run-name")
}

func TestLogLevelFlag(t *testing.T) {
	var logs bytes.Buffer
	logx.SetOutput(&logs)
	t.Cleanup(func() {
		logx.SetOutput(os.Stderr)
		logx.SetLevel(logx.LevelInfo)
	})

	old := runFunc
	runFunc = func(context.Context, *config.Config) (*app.Summary, error) {
		logx.Info("mensaje informativo", nil)
		logx.Warn("mensaje de aviso", nil)
		return &app.Summary{}, nil
	}
	t.Cleanup(func() { runFunc = old })

	code, _, errOut := runCLI(t, "run", "--log-level", "warn", "-vv")
	require.Equal(t, ExitOK, code, errOut)
	assert.NotContains(t, logs.String(), "mensaje informativo")
	assert.Contains(t, logs.String(), "mensaje de aviso")
}

func TestLogLevelFromConfigFile(t *testing.T) {
	got := stubRun(t, &app.Summary{}, nil)
	cfgPath := writeFile(t, t.TempDir(), "mirror.yaml", "log_level: debug\n")

	code, _, errOut := runCLI(t, "--config", cfgPath)
	require.Equal(t, ExitOK, code, errOut)
	assert.Equal(t, "debug", (*got).LogLevel)
}

func TestInvalidLogLevelPrintsSuggestion(t *testing.T) {
	got := stubRun(t, &app.Summary{}, nil)

	code, _, errOut := runCLI(t, "run", "--log-level", "loud")
	assert.Equal(t, ExitFatal, code)
	assert.Nil(t, *got)

	lines := strings.Split(strings.TrimRight(errOut, "\n"), "\n")
	require.GreaterOrEqual(t, len(lines), 3, errOut)
	assert.Equal(t, "✗ configuración inválida para 'log_level': nivel desconocido", lines[0])
	assert.Equal(t, "💡 Sugerencia: usa --log-level=error|warn|info|debug|trace", lines[1])
	assert.Contains(t, errOut, "Contexto:\n  • field: log_level\n  • value: loud\n")
}

func fakeBin(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "httrack")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\nexit 0\n"), 0o755))
	return path
}

func TestCheckAllGood(t *testing.T) {
	dir := t.TempDir()
	input := writeFile(t, dir, "domeny.txt", "example.com\nbad domain\n")

	code, out, errOut := runCLI(t, "check", "--input", input, "--base-dir", dir, "--bin", fakeBin(t))
	require.Equal(t, ExitOK, code, errOut)
	assert.Contains(t, out, "✔ binario")
	assert.Contains(t, out, "(1 válidos, 1 descartados)")
	assert.Contains(t, out, "✔ directorio base")
}

func TestCheckReportsFailures(t *testing.T) {
	t.Setenv("PATH", t.TempDir())
	dir := t.TempDir()
	input := writeFile(t, dir, "domeny.txt", "bad domain\n")

	code, out, _ := runCLI(t, "check", "--input", input, "--base-dir", filepath.Join(dir, "missing"), "--bin", "httrack")
	assert.Equal(t, ExitFatal, code)
	assert.Contains(t, out, "✗ binario")
	assert.Contains(t, out, "✗ lista de dominios")
	assert.Contains(t, out, "✗ directorio base")
}
