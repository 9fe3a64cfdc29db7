package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func resetGlobal() {
	set(nil)
	once = sync.Once{}
}

func TestInit(t *testing.T) {
	resetGlobal()
	defer resetGlobal()

	require.NoError(t, Init(Config{Level: "info", Format: "json"}))
	// Second call is a no-op
	require.NoError(t, Init(Config{Level: "debug", Format: "text"}))
	assert.NotNil(t, Get())
}

func TestGet_Uninitialized(t *testing.T) {
	resetGlobal()
	l := Get()
	require.NotNil(t, l)
	l.Info("discarded")
}

func TestNew_TextFormatWritesKeyValue(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: "debug", Format: "text", Output: &buf})

	l.With(zap.String(FieldDocumentID, "doc1")).Info("Document rendered", zap.Int("pages", 3), zap.Bool("degraded", false))
	require.NoError(t, l.Sync())

	line := buf.String()
	assert.Contains(t, line, "[INFO]")
	assert.Contains(t, line, "Document rendered")
	assert.Contains(t, line, "document_id=doc1")
	assert.Contains(t, line, "pages=3")
	assert.Contains(t, line, "degraded=false")
	assert.NotContains(t, line, "\x1b[", "custom output must not be colorized")
}

func TestNew_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: "info", Format: "json", Output: &buf})

	l.Info("Upstream request", zap.String("path", "/school"))
	l.Debug("filtered out")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "Upstream request", entry["msg"])
	assert.Equal(t, "/school", entry["path"])
}

func TestNew_InvalidLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: "loud", Format: "json", Output: &buf})

	l.Debug("hidden")
	l.Info("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestNew_WithFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "printdesk.log")
	var console bytes.Buffer

	l := New(Config{Level: "info", Format: "text", File: path, Output: &console})
	l.Warn("Measurement unavailable", zap.String("measurer", "chrome"))
	require.NoError(t, l.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "[WARN]")
	assert.Contains(t, string(data), "measurer=chrome")
	assert.Contains(t, console.String(), "Measurement unavailable")
}

func TestWithDocument(t *testing.T) {
	var buf bytes.Buffer
	restore := Replace(New(Config{Level: "info", Format: "json", Output: &buf}))
	defer restore()

	WithDocument("contract", "abc123").Info("Document opened")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "contract", entry[FieldDocumentKind])
	assert.Equal(t, "abc123", entry[FieldDocumentID])
}

func TestPackageLevelHelpers(t *testing.T) {
	var buf bytes.Buffer
	restore := Replace(New(Config{Level: "debug", Format: "json", Output: &buf}))
	defer restore()

	Debug("d")
	Info("i")
	Warn("w")
	Error("e")
	Named("sink").Info("n")
	With(zap.String("k", "v")).Info("with")
	Sugar().Infof("sugar %d", 1)

	out := buf.String()
	for _, msg := range []string{`"d"`, `"i"`, `"w"`, `"e"`, `"n"`, `"with"`, `"sugar 1"`} {
		assert.Contains(t, out, msg)
	}
}
