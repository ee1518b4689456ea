package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	apperrors "mirror-batch/internal/platform/errors"
)

// Nombres de flags compartidos con la CLI; también son las claves que
// decide si un valor del archivo se respeta o lo pisa un flag explícito.
const (
	FlagInput      = "input"
	FlagBaseDir    = "base-dir"
	FlagRunName    = "run-name"
	FlagBin        = "bin"
	FlagOpts       = "opts"
	FlagWarnOnDrop = "warn-on-drop"
	FlagReport     = "report"
	FlagNoProgress = "no-progress"
	FlagLogFile    = "log-file"
	FlagVerbosity  = "verbose"
	FlagLogLevel   = "log-level"
)

const (
	DefaultInputFile = "domeny.txt"
	DefaultBaseDir   = "."
	DefaultRunName   = "Kopia_Stron_HTTrack"
	DefaultMirrorBin = "httrack"
)

// DomainPlaceholder se sustituye por el dominio en cada opción del mirror.
const DomainPlaceholder = "{domain}"

// DefaultMirrorOptions reproduce el juego fijo de opciones de HTTrack:
// un salto, mismo dominio, timeout 5s, 1 reintento, verbose, 10 conexiones/s,
// 32 conexiones, 99999 niveles, sin límites de seguridad, modo update.
var DefaultMirrorOptions = []string{
	"--mirror",
	"-L1",
	"--stay-on-same-domain", DomainPlaceholder,
	"--timeout=5",
	"--retries=1",
	"-vv",
	"-w",
	"-f0",
	"-r99999",
	"-c32",
	"--connection-per-second=10",
	"--disable-security-limits",
	"-k",
	"-N1",
	"-s0",
	"-z",
	"--update",
}

type Config struct {
	InputFile     string
	BaseDir       string
	RunName       string
	MirrorBin     string
	MirrorOptions []string
	WarnOnDrop    bool
	Report        bool
	NoProgress    bool
	LogFile       string
	Verbosity     int
	// LogLevel, si no está vacío, pisa Verbosity (error, warn, info, debug, trace).
	LogLevel string
}

type fileConfig struct {
	InputFile     *string     `json:"input" yaml:"input"`
	BaseDir       *string     `json:"base_dir" yaml:"base_dir"`
	RunName       *string     `json:"run_name" yaml:"run_name"`
	MirrorBin     *string     `json:"bin" yaml:"bin"`
	MirrorOptions *stringList `json:"mirror_options" yaml:"mirror_options"`
	WarnOnDrop    *bool       `json:"warn_on_drop" yaml:"warn_on_drop"`
	Report        *bool       `json:"report" yaml:"report"`
	NoProgress    *bool       `json:"no_progress" yaml:"no_progress"`
	LogFile       *string     `json:"log_file" yaml:"log_file"`
	Verbosity     *int        `json:"verbosity" yaml:"verbosity"`
	LogLevel      *string     `json:"log_level" yaml:"log_level"`
}

type stringList []string

func (s *stringList) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*s = nil
		return nil
	}

	switch trimmed[0] {
	case '[':
		var aux []string
		if err := json.Unmarshal(trimmed, &aux); err != nil {
			return err
		}
		*s = cleanStringSlice(aux)
		return nil
	case '"':
		var single string
		if err := json.Unmarshal(trimmed, &single); err != nil {
			return err
		}
		*s = cleanStringSlice(strings.Split(single, ","))
		return nil
	default:
		return errors.New("mirror_options debe ser un string o una lista")
	}
}

func (s *stringList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.SequenceNode:
		aux := make([]string, 0, len(value.Content))
		for _, node := range value.Content {
			aux = append(aux, node.Value)
		}
		*s = cleanStringSlice(aux)
		return nil
	case yaml.ScalarNode:
		*s = cleanStringSlice(strings.Split(value.Value, ","))
		return nil
	case yaml.MappingNode, yaml.DocumentNode:
		return errors.New("mirror_options debe ser un string o una lista")
	default:
		*s = nil
		return nil
	}
}

// Default devuelve la configuración por defecto: domeny.txt, directorio actual
// y HTTrack con su juego fijo de opciones.
func Default() *Config {
	return &Config{
		InputFile:     DefaultInputFile,
		BaseDir:       DefaultBaseDir,
		RunName:       DefaultRunName,
		MirrorBin:     DefaultMirrorBin,
		MirrorOptions: append([]string(nil), DefaultMirrorOptions...),
	}
}

// Resolve combina la configuración de flags con un archivo opcional. Los
// valores del archivo solo se aplican a campos cuyo flag no se pasó de forma
// explícita (setFlags).
func Resolve(configPath string, flagCfg *Config, setFlags map[string]bool) (*Config, error) {
	if flagCfg == nil {
		flagCfg = Default()
	}
	cfg := *flagCfg
	cfg.InputFile = strings.TrimSpace(cfg.InputFile)
	cfg.BaseDir = strings.TrimSpace(cfg.BaseDir)
	cfg.RunName = strings.TrimSpace(cfg.RunName)
	cfg.MirrorBin = strings.TrimSpace(cfg.MirrorBin)
	cfg.LogFile = strings.TrimSpace(cfg.LogFile)
	cfg.LogLevel = strings.TrimSpace(cfg.LogLevel)
	cfg.MirrorOptions = cleanStringSlice(cfg.MirrorOptions)

	configPath = strings.TrimSpace(configPath)
	if configPath != "" {
		info, err := os.Stat(configPath)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("el archivo de configuración %q no existe", configPath)
			}
			return nil, fmt.Errorf("no se pudo acceder al archivo de configuración %q: %w", configPath, err)
		}
		if info.IsDir() {
			return nil, fmt.Errorf("la ruta de configuración %q apunta a un directorio", configPath)
		}
		fc, err := loadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("no se pudo leer la configuración desde %q: %w", configPath, err)
		}
		fc.applyTo(&cfg, setFlags)
	}

	if cfg.BaseDir == "" {
		cfg.BaseDir = DefaultBaseDir
	}

	return &cfg, nil
}

func (fc *fileConfig) applyTo(cfg *Config, setFlags map[string]bool) {
	if fc.InputFile != nil && !setFlags[FlagInput] {
		cfg.InputFile = strings.TrimSpace(*fc.InputFile)
	}
	if fc.BaseDir != nil && !setFlags[FlagBaseDir] {
		cfg.BaseDir = strings.TrimSpace(*fc.BaseDir)
	}
	if fc.RunName != nil && !setFlags[FlagRunName] {
		cfg.RunName = strings.TrimSpace(*fc.RunName)
	}
	if fc.MirrorBin != nil && !setFlags[FlagBin] {
		cfg.MirrorBin = strings.TrimSpace(*fc.MirrorBin)
	}
	if fc.MirrorOptions != nil && !setFlags[FlagOpts] {
		cfg.MirrorOptions = cleanStringSlice([]string(*fc.MirrorOptions))
	}
	if fc.WarnOnDrop != nil && !setFlags[FlagWarnOnDrop] {
		cfg.WarnOnDrop = *fc.WarnOnDrop
	}
	if fc.Report != nil && !setFlags[FlagReport] {
		cfg.Report = *fc.Report
	}
	if fc.NoProgress != nil && !setFlags[FlagNoProgress] {
		cfg.NoProgress = *fc.NoProgress
	}
	if fc.LogFile != nil && !setFlags[FlagLogFile] {
		cfg.LogFile = strings.TrimSpace(*fc.LogFile)
	}
	if fc.Verbosity != nil && !setFlags[FlagVerbosity] {
		cfg.Verbosity = *fc.Verbosity
	}
	if fc.LogLevel != nil && !setFlags[FlagLogLevel] {
		cfg.LogLevel = strings.TrimSpace(*fc.LogLevel)
	}
}

// Validate comprueba los campos que impedirían arrancar la ejecución.
func (c *Config) Validate() error {
	if c.InputFile == "" {
		return apperrors.NewConfigurationError("input", "", "no puede estar vacío",
			"indica la lista de dominios con --input=domeny.txt")
	}
	if c.BaseDir == "" {
		return apperrors.NewConfigurationError("base_dir", "", "no puede estar vacío",
			"indica el directorio de copias con --base-dir=/ruta")
	}
	if c.RunName == "" || strings.ContainsAny(c.RunName, `/\`) {
		return apperrors.NewConfigurationError("run_name", c.RunName,
			"debe ser un nombre sin separadores de ruta", "usa --run-name=Kopia_Stron_HTTrack")
	}
	if c.MirrorBin == "" {
		return apperrors.NewConfigurationError("bin", "", "no puede estar vacío",
			"usa --bin=httrack o la ruta completa al binario")
	}
	for _, opt := range c.MirrorOptions {
		if opt == "-O" || strings.HasPrefix(opt, "--path") {
			return apperrors.NewConfigurationError("mirror_options", opt,
				"la carpeta de salida la fija mirror-batch por dominio",
				"elimina -O/--path de las opciones")
		}
	}
	if c.Verbosity < 0 || c.Verbosity > 3 {
		return apperrors.NewConfigurationError("verbosity", fmt.Sprintf("%d", c.Verbosity),
			"debe estar entre 0 y 3", "usa -v 0..3")
	}
	return nil
}

func loadConfigFile(path string) (*fileConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg fileConfig
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return nil, err
		}
	case ".json":
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return nil, err
		}
	default:
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			if err := json.Unmarshal(raw, &cfg); err != nil {
				return nil, err
			}
		}
	}

	return &cfg, nil
}

// SplitList convierte un valor CSV de la CLI en una lista limpia.
func SplitList(csv string) []string {
	return cleanStringSlice(strings.Split(csv, ","))
}

func cleanStringSlice(values []string) []string {
	list := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v != "" {
			list = append(list, v)
		}
	}
	return list
}
