package config

import (
	"testing"
	"time"
)

func TestHTTPTimeouts(t *testing.T) {
	tests := []struct {
		name     string
		got      time.Duration
		expected time.Duration
	}{
		{"HTTPRead", HTTPRead, 60 * time.Second},
		{"HTTPWrite", HTTPWrite, 150 * time.Second},
		{"HTTPIdle", HTTPIdle, 120 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.expected)
			}
		})
	}
}

// The write timeout must outlast a full batch or the client sees a reset
// instead of the 504.
func TestTimeoutRelationships(t *testing.T) {
	if HTTPWrite <= BatchProcessing {
		t.Errorf("HTTPWrite (%v) should exceed BatchProcessing (%v)", HTTPWrite, BatchProcessing)
	}
	if JobCleanupInitialDelay >= JobCleanupInterval {
		t.Errorf("JobCleanupInitialDelay (%v) should be shorter than JobCleanupInterval (%v)",
			JobCleanupInitialDelay, JobCleanupInterval)
	}
	if GracefulShutdown <= 0 || CatalogLoad <= 0 {
		t.Error("shutdown and catalog load timeouts must be positive")
	}
}
