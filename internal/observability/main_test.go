package observability

import (
	"os"
	"testing"

	"oceanmic/internal/observability/logging"
)

func TestMain(m *testing.M) {
	logging.Discard()
	os.Exit(m.Run())
}
