// Package errors proporciona tipos de error con contexto y sugerencias
// para que un lote fallido se pueda diagnosticar sin leer el código.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorWithSuggestion es un error que incluye una sugerencia para el usuario.
type ErrorWithSuggestion struct {
	Err        error
	Suggestion string
	Context    map[string]string
}

// Error devuelve solo el mensaje base; la sugerencia y el contexto se leen
// con GetSuggestion y GetContext.
func (e *ErrorWithSuggestion) Error() string {
	return e.Err.Error()
}

func (e *ErrorWithSuggestion) Unwrap() error {
	return e.Err
}

// WithSuggestion envuelve un error con una sugerencia para el usuario.
func WithSuggestion(err error, suggestion string) error {
	if err == nil {
		return nil
	}
	return &ErrorWithSuggestion{
		Err:        err,
		Suggestion: suggestion,
		Context:    make(map[string]string),
	}
}

// WithContext añade contexto adicional a un error.
func WithContext(err error, key, value string) error {
	if err == nil {
		return nil
	}

	var suggErr *ErrorWithSuggestion
	if errors.As(err, &suggErr) {
		if suggErr.Context == nil {
			suggErr.Context = make(map[string]string)
		}
		suggErr.Context[key] = value
		return err
	}

	return &ErrorWithSuggestion{
		Err:     err,
		Context: map[string]string{key: value},
	}
}

// MissingBinaryError representa el error cuando el binario de mirroring no está disponible.
type MissingBinaryError struct {
	Binary      string
	SearchPaths []string
}

func (e *MissingBinaryError) Error() string {
	return fmt.Sprintf("'%s' no encontrado en PATH", e.Binary)
}

// NewMissingBinaryError crea un error mejorado para binarios faltantes.
func NewMissingBinaryError(binary string, searchPaths ...string) error {
	baseErr := &MissingBinaryError{
		Binary:      binary,
		SearchPaths: searchPaths,
	}

	suggestion := fmt.Sprintf("Instálalo con el gestor de paquetes (ej: apt install %s)\n"+
		"O indica la ruta completa con: --bin=/ruta/a/%s", binary, binary)

	err := WithSuggestion(baseErr, suggestion)
	err = WithContext(err, "binary", binary)

	if len(searchPaths) > 0 {
		err = WithContext(err, "searched_paths", strings.Join(searchPaths, ", "))
	}

	return err
}

// ExitError representa una ejecución de la herramienta externa que terminó
// con código distinto de cero.
type ExitError struct {
	Binary string
	Domain string
	Code   int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s terminó con código %d para %s", e.Binary, e.Code, e.Domain)
}

// ConfigurationError representa un error de configuración.
type ConfigurationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuración inválida para '%s': %s", e.Field, e.Reason)
}

// NewConfigurationError crea un error mejorado para problemas de configuración.
func NewConfigurationError(field, value, reason, suggestion string) error {
	baseErr := &ConfigurationError{
		Field:  field,
		Value:  value,
		Reason: reason,
	}

	err := WithSuggestion(baseErr, suggestion)
	err = WithContext(err, "field", field)
	if value != "" {
		err = WithContext(err, "value", value)
	}

	return err
}

// ArchiveError representa un fallo al empaquetar el directorio de la ejecución.
type ArchiveError struct {
	Path string
	Err  error
}

func (e *ArchiveError) Error() string {
	return fmt.Sprintf("no se pudo crear el archivo %s: %v", e.Path, e.Err)
}

func (e *ArchiveError) Unwrap() error {
	return e.Err
}

// NewArchiveError crea un error mejorado para fallos de archivado.
func NewArchiveError(path string, err error) error {
	baseErr := &ArchiveError{Path: path, Err: err}

	suggestion := "Verifica el espacio libre y los permisos del directorio base\n" +
		"El directorio de la ejecución se conserva y puede archivarse a mano con tar -czf"

	wrapped := WithSuggestion(baseErr, suggestion)
	wrapped = WithContext(wrapped, "archive", truncate(path, 100))
	return wrapped
}

// truncate limita una cadena a n caracteres, añadiendo "..." si es necesario.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

// GetSuggestion extrae la sugerencia de un error si existe.
func GetSuggestion(err error) string {
	var suggErr *ErrorWithSuggestion
	if errors.As(err, &suggErr) {
		return suggErr.Suggestion
	}
	return ""
}

// GetContext extrae el contexto de un error si existe.
func GetContext(err error) map[string]string {
	var suggErr *ErrorWithSuggestion
	if errors.As(err, &suggErr) {
		return suggErr.Context
	}
	return nil
}

// IsMissingBinary verifica si un error es por un binario faltante.
func IsMissingBinary(err error) bool {
	var missingErr *MissingBinaryError
	return errors.As(err, &missingErr)
}

// IsExit verifica si un error es por un código de salida distinto de cero.
func IsExit(err error) bool {
	var exitErr *ExitError
	return errors.As(err, &exitErr)
}

// IsConfiguration verifica si un error es de configuración.
func IsConfiguration(err error) bool {
	var cfgErr *ConfigurationError
	return errors.As(err, &cfgErr)
}

// IsArchive verifica si un error es de archivado.
func IsArchive(err error) bool {
	var archErr *ArchiveError
	return errors.As(err, &archErr)
}
