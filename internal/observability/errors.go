package observability

import (
	"errors"
	"fmt"
)

// JoinErrors drops nil entries, logs the remaining failures of operation on
// the global logger and returns them joined. It returns nil when every entry
// is nil.
func JoinErrors(operation string, errs []error, fields ...Field) error {
	var failed []error
	for _, err := range errs {
		if err != nil {
			failed = append(failed, err)
		}
	}
	if len(failed) == 0 {
		return nil
	}
	joined := errors.Join(failed...)
	logFields := make([]Field, 0, len(fields)+3)
	logFields = append(logFields, fields...)
	logFields = append(logFields,
		Field{Key: "operation", Value: operation},
		Field{Key: "error_count", Value: len(failed)},
		Field{Key: "error", Value: joined.Error()},
	)
	Log().Error("operation failed", logFields...)
	return fmt.Errorf("%s: %w", operation, joined)
}
