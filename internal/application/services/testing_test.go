package services

import (
	"log/slog"
	"testing"

	"github.com/gramsender/gramsender-go/internal/infrastructure/observability/logging"
)

// testLogger builds a logger that stays quiet unless something goes badly
// wrong, so test output is readable.
func testLogger(t *testing.T) *logging.ChanneledLogger {
	t.Helper()
	cfg := logging.DefaultLoggerConfig()
	cfg.OutputToFile = false
	cfg.OutputToConsole = false
	cfg.DefaultLevel = slog.LevelError
	logger, err := logging.NewChanneledLogger(cfg)
	if err != nil {
		t.Fatalf("NewChanneledLogger: %v", err)
	}
	return logger
}
