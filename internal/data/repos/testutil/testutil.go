package testutil

import (
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/yungbote/karatrack-backend/internal/platform/logger"
)

var (
	logOnce sync.Once
	logg    *logger.Logger
	logErr  error
)

func Logger(tb testing.TB) *logger.Logger {
	tb.Helper()
	logOnce.Do(func() {
		logg, logErr = logger.New("test")
	})
	if logErr != nil {
		tb.Fatalf("failed to init logger: %v", logErr)
	}
	return logg
}

// RedisAddr returns TEST_REDIS_ADDR or skips the test.
func RedisAddr(tb testing.TB) string {
	tb.Helper()
	addr := strings.TrimSpace(os.Getenv("TEST_REDIS_ADDR"))
	if addr == "" {
		tb.Skip("set TEST_REDIS_ADDR to run redis-backed tests")
	}
	return addr
}
