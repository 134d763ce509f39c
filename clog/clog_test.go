package clog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferLogger(t *testing.T, format string, opts ...Option) (Logger, *bytes.Buffer) {
	t.Helper()
	buf := &bytes.Buffer{}
	opts = append(opts, WithBuffer(buf))
	logger, err := New(&Config{Level: "debug", Format: format, Output: "buffer"}, opts...)
	require.NoError(t, err)
	return logger, buf
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		m := map[string]any{}
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestNew_InvalidConfig(t *testing.T) {
	_, err := New(&Config{Level: "verbose"})
	require.Error(t, err)

	_, err = New(&Config{Level: "info", Format: "xml"})
	require.Error(t, err)

	_, err = New(&Config{Level: "info", Output: "buffer"})
	require.Error(t, err, "buffer output without WithBuffer")
}

func TestNew_NilConfigUsesDevDefaults(t *testing.T) {
	logger, err := New(nil)
	require.NoError(t, err)
	require.NotNil(t, logger)
}

func TestLogger_JSONFields(t *testing.T) {
	logger, buf := newBufferLogger(t, "json")

	logger.Info("shard created",
		String("table", "t_order_202403"),
		Int("count", 2),
		Strings("tables", []string{"a", "b"}),
		Error(errors.New("boom")),
	)

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "INFO", lines[0]["level"])
	assert.Equal(t, "shard created", lines[0]["msg"])
	assert.Equal(t, "t_order_202403", lines[0]["table"])
	assert.EqualValues(t, 2, lines[0]["count"])
	assert.Equal(t, "boom", lines[0]["err_msg"])
	assert.Len(t, lines[0]["tables"], 2)
}

func TestLogger_Namespace(t *testing.T) {
	logger, buf := newBufferLogger(t, "json", WithNamespace("splitdb"))

	logger.WithNamespace("splittable").WithNamespace("resolver").Info("hello")
	logger.Info("root")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "splitdb.splittable.resolver", lines[0][NamespaceKey])
	assert.Equal(t, "splitdb", lines[1][NamespaceKey])
}

func TestLogger_WithDoesNotLeak(t *testing.T) {
	logger, buf := newBufferLogger(t, "json")

	child := logger.With(String("entity", "order"))
	child.Info("child")
	logger.Info("parent")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "order", lines[0]["entity"])
	_, ok := lines[1]["entity"]
	assert.False(t, ok)
}

func TestLogger_ContextFields(t *testing.T) {
	logger, buf := newBufferLogger(t, "json", WithStandardContext())

	ctx := context.WithValue(context.Background(), "trace_id", "abc123")
	logger.InfoContext(ctx, "with trace")
	logger.Info("no trace")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "abc123", lines[0]["trace_id"])
	_, ok := lines[1]["trace_id"]
	assert.False(t, ok)
}

func TestLogger_SetLevel(t *testing.T) {
	logger, buf := newBufferLogger(t, "json")
	child := logger.WithNamespace("child")

	require.NoError(t, logger.SetLevel(WarnLevel))
	child.Info("dropped")
	child.Warn("kept")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "kept", lines[0]["msg"])

	assert.Error(t, logger.SetLevel(Level(3)))
}

func TestLogger_ConsoleFormat(t *testing.T) {
	logger, buf := newBufferLogger(t, "console")
	logger.Debug("plain text", String("k", "v"))

	out := buf.String()
	assert.Contains(t, out, "level=DEBUG")
	assert.Contains(t, out, "k=v")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", DebugLevel, false},
		{"INFO", InfoLevel, false},
		{"Warn", WarnLevel, false},
		{"error", ErrorLevel, false},
		{"fatal", FatalLevel, false},
		{"trace", InfoLevel, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDiscard(t *testing.T) {
	logger := Discard()
	logger.Info("nothing")
	assert.Same(t, logger, logger.WithNamespace("x"))
	assert.NoError(t, logger.SetLevel(DebugLevel))
}
