package utils

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// RedactedValueMask replaces every registered secret in log output.
const RedactedValueMask = "***"

type redactingCore struct {
	zapcore.Core
	replacer *strings.Replacer
}

// NewRedactingCore wraps core so that secrets never reach the encoder. Blank secrets are ignored and the
// original core is returned when nothing needs masking.
func NewRedactingCore(core zapcore.Core, secrets []string) zapcore.Core {
	replacements := make([]string, 0, len(secrets)*2)
	for _, secret := range secrets {
		if len(strings.TrimSpace(secret)) == 0 {
			continue
		}
		replacements = append(replacements, secret, RedactedValueMask)
	}
	if len(replacements) == 0 {
		return core
	}
	return &redactingCore{Core: core, replacer: strings.NewReplacer(replacements...)}
}

func (core *redactingCore) With(fields []zapcore.Field) zapcore.Core {
	return &redactingCore{Core: core.Core.With(core.redactFields(fields)), replacer: core.replacer}
}

func (core *redactingCore) Check(entry zapcore.Entry, checkedEntry *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if core.Enabled(entry.Level) {
		return checkedEntry.AddCore(entry, core)
	}
	return checkedEntry
}

func (core *redactingCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	entry.Message = core.replacer.Replace(entry.Message)
	return core.Core.Write(entry, core.redactFields(fields))
}

func (core *redactingCore) redactFields(fields []zapcore.Field) []zapcore.Field {
	redactedFields := make([]zapcore.Field, 0, len(fields))
	for _, field := range fields {
		switch field.Type {
		case zapcore.StringType:
			field.String = core.replacer.Replace(field.String)
		case zapcore.ErrorType:
			if errorValue, isError := field.Interface.(error); isError && errorValue != nil {
				field = zap.String(field.Key, core.replacer.Replace(errorValue.Error()))
			}
		case zapcore.StringerType:
			if stringer, isStringer := field.Interface.(fmt.Stringer); isStringer && stringer != nil {
				field = zap.String(field.Key, core.replacer.Replace(stringer.String()))
			}
		}
		redactedFields = append(redactedFields, field)
	}
	return redactedFields
}
