package app_test

import (
	"testing"

	"github.com/okian/progresscast/pkg/logger"
	"go.uber.org/goleak"
)

func init() {
	// Initialize logging for tests
	err := logger.Init()
	if err != nil {
		panic(err)
	}
}

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
