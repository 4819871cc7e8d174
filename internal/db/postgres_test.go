package db

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/jackc/pgx/v5/tracelog"
	"github.com/rs/zerolog"
)

func TestQueryLoggerMapsLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := queryLogger(zerolog.New(&buf))

	logger.Log(context.Background(), tracelog.LogLevelWarn, "Query", map[string]any{"sql": "SELECT 1"})

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected JSON entry: %v (%q)", err, buf.String())
	}
	if entry["level"] != "warn" || entry["sql"] != "SELECT 1" || entry["component"] != "pgx" {
		t.Errorf("unexpected entry %v", entry)
	}
}
