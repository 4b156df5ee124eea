package connector

import (
	"fmt"
	"log/slog"
)

// LogAndResolveDefault logs a failed connector call and returns response
// unchanged, so a single connector failure does not abort an aggregation.
func LogAndResolveDefault[T any](logger *slog.Logger, response T, cfg Config, functionName, errorMessage string) T {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Error(fmt.Sprintf("Connector (%s) failed call '%s': %s", cfg.ID, functionName, errorMessage),
		"connector", cfg.ID,
		"function", functionName,
		"error", errorMessage,
	)
	return response
}
