package log

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestNewLoggerLevelAndService(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "prod", "api")
	logger.Debug().Msg("скрыто")
	if buf.Len() != 0 {
		t.Fatalf("debug не должен писаться вне dev: %s", buf.String())
	}
	logger.Info().Msg("видно")
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("ожидали JSON, получили %q: %v", buf.String(), err)
	}
	if entry["service"] != "api" {
		t.Fatalf("ожидали service=api, получили %v", entry["service"])
	}

	buf.Reset()
	devLogger := newLogger(&buf, "dev", "")
	devLogger.Debug().Msg("debug")
	if buf.Len() == 0 {
		t.Fatal("в dev debug должен писаться")
	}
}
