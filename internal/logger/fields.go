package logger

import (
	"strings"

	"go.uber.org/zap"
)

const (
	// FieldOperation is the structured log field key for the matching operation.
	FieldOperation = "operation"
	// FieldEntityKind is the structured log field key for the kind of the anchor record.
	FieldEntityKind = "entity_kind"
	// FieldEntityID is the structured log field key for the id of the anchor record.
	FieldEntityID = "entity_id"
	// FieldProvider is the structured log field key for the AI or embedding provider name.
	FieldProvider = "provider"
	// FieldModel is the structured log field key for the model identifier.
	FieldModel = "model"
)

// StringField describes a string-valued structured logging field.
type StringField struct {
	Key   string
	Value string
}

// StringFields converts the provided key/value pairs into zap fields, trimming
// whitespace and omitting entries with empty keys or values.
func StringFields(fields ...StringField) []zap.Field {
	result := make([]zap.Field, 0, len(fields))
	for _, field := range fields {
		key := strings.TrimSpace(field.Key)
		if key == "" {
			continue
		}

		value := strings.TrimSpace(field.Value)
		if value == "" {
			continue
		}

		result = append(result, zap.String(key, value))
	}

	return result
}

// WithFields safely attaches the provided fields to the logger.
// If the logger is nil or no fields are supplied, the input logger is returned
// unchanged, defaulting to a no-op logger when nil.
func WithFields(logger *zap.Logger, fields ...zap.Field) *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}

	if len(fields) == 0 {
		return logger
	}

	return logger.With(fields...)
}

// CommonFields describes the operation being run and the record it is anchored on.
// Empty values are ignored to keep log entries compact.
func CommonFields(operation, kind, id string) []zap.Field {
	return StringFields(
		StringField{Key: FieldOperation, Value: operation},
		StringField{Key: FieldEntityKind, Value: kind},
		StringField{Key: FieldEntityID, Value: id},
	)
}

// WithProvider attaches the provider and model fields to the logger.
func WithProvider(logger *zap.Logger, provider, model string) *zap.Logger {
	return WithFields(logger, StringFields(
		StringField{Key: FieldProvider, Value: provider},
		StringField{Key: FieldModel, Value: model},
	)...)
}
