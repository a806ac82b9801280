package utils

import (
	"io"

	"github.com/MrSnakeDoc/mailmarks/internal/logger"
)

// MustClose closes c and logs any error.
// Use for defer statements where we want to track close errors.
func MustClose(c io.Closer, log logger.Logger, what string) {
	if err := c.Close(); err != nil && log != nil {
		log.Warn("failed to close", logger.String("what", what), logger.Error(err))
	}
}
