package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveNetworkRequestLabels(t *testing.T) {
	before := testutil.ToFloat64(NetworkRequestTotal.WithLabelValues("ollama", "generate", "unknown", "error"))
	ObserveNetworkRequest("ollama", "generate", "", time.Now(), errors.New("boom"))
	after := testutil.ToFloat64(NetworkRequestTotal.WithLabelValues("ollama", "generate", "unknown", "error"))
	if after-before != 1 {
		t.Fatalf("ожидали +1 к счётчику ошибок, получили %v", after-before)
	}
}

func TestIncSubmission(t *testing.T) {
	before := testutil.ToFloat64(SubmissionsTotal.WithLabelValues("complaint", "analyzed"))
	IncSubmission("complaint", "analyzed")
	if got := testutil.ToFloat64(SubmissionsTotal.WithLabelValues("complaint", "analyzed")); got-before != 1 {
		t.Fatalf("ожидали +1, получили %v", got-before)
	}
}
