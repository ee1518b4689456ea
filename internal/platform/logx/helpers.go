package logx

import (
	"fmt"
	"time"
)

// LogDomain logs con el campo "domain" pre-agregado para facilitar filtrado.
func LogDomain(level Level, domain, msg string, extraFields ...Fields) {
	fields := Fields{"domain": domain}
	for _, extra := range extraFields {
		for k, v := range extra {
			fields[k] = v
		}
	}
	logFields(level, msg, fields)
}

// TimedOperation logs el inicio y fin de una operación con su duración.
type TimedOperation struct {
	operation string
	start     time.Time
	fields    Fields
}

// StartOperation inicia el tracking de una operación.
func StartOperation(operation string, fields ...Fields) *TimedOperation {
	op := &TimedOperation{
		operation: operation,
		start:     time.Now(),
		fields:    Fields{},
	}
	for _, f := range fields {
		for k, v := range f {
			op.fields[k] = v
		}
	}

	Debug(operation+" started", op.fields)
	return op
}

// Complete marca la operación como completada y loggea la duración.
func (op *TimedOperation) Complete() time.Duration {
	duration := time.Since(op.start)
	op.fields["duration_ms"] = duration.Milliseconds()
	op.fields["duration"] = FormatDuration(duration)

	Info(op.operation+" completed", op.fields)
	return duration
}

// Fail marca la operación como fallida y loggea el error.
func (op *TimedOperation) Fail(err error) time.Duration {
	duration := time.Since(op.start)
	op.fields["duration_ms"] = duration.Milliseconds()
	op.fields["duration"] = FormatDuration(duration)
	op.fields["error"] = err.Error()

	Error(op.operation+" failed", op.fields)
	return duration
}

// AddField añade un campo adicional a la operación.
func (op *TimedOperation) AddField(key string, value interface{}) {
	if op.fields == nil {
		op.fields = Fields{}
	}
	op.fields[key] = value
}

// LogValidation loggea el resultado de filtrar una lista de entradas.
func LogValidation(source string, valid, total int) {
	if total <= 0 {
		Warn("lista vacía", Fields{"source": source})
		return
	}
	fields := Fields{
		"source":    source,
		"valid":     valid,
		"total":     total,
		"dropped":   total - valid,
		"valid_pct": fmt.Sprintf("%.1f%%", float64(valid)/float64(total)*100),
	}

	level := LevelInfo
	if valid < total/2 {
		level = LevelWarn
	}
	logFields(level, "validation results", fields)
}
