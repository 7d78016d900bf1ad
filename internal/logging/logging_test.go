package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLogfmtWritesFieldsAndFiltersLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, Info).With(F("component", "conn"))

	logger.Debug("hidden")
	logger.Info("connection open", F("session_id", "s1"), F("err", errors.New("dial failed")))

	out := buf.String()
	require.NotContains(t, out, "hidden")
	require.Contains(t, out, "level=info")
	require.Contains(t, out, `msg="connection open"`)
	require.Contains(t, out, "component=conn")
	require.Contains(t, out, "session_id=s1")
	require.Contains(t, out, `err="dial failed"`)
	require.True(t, strings.HasSuffix(out, "\n"))
}

func TestZapWriterEmitsJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithFormat(&buf, Debug, ParseFormat("json")).With(F("component", "bus"))

	logger.Warn("malformed message", F("bytes", 12))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "malformed message", entry["msg"])
	require.Equal(t, "warn", entry["level"])
	require.Equal(t, "bus", entry["component"])
	require.EqualValues(t, 12, entry["bytes"])
	require.True(t, logger.Enabled(Debug))
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, Debug, ParseLevel("DEBUG"))
	require.Equal(t, Warn, ParseLevel(" warning "))
	require.Equal(t, Info, ParseLevel("bogus"))
	require.Equal(t, FormatLogfmt, ParseFormat(""))
}

func TestLogfmtEncodesValues(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, Debug)

	wrapped := fmt.Errorf("open connection: %w", errors.New("refused"))
	logger.Debug("values",
		F("err", wrapped),
		F("attempts", 3),
		F("ok", true),
		F("wait", 250*time.Millisecond),
		F("empty", ""),
		F("missing", nil),
	)

	out := buf.String()
	require.Contains(t, out, `err="open connection: refused"`)
	require.Contains(t, out, "attempts=3")
	require.Contains(t, out, "ok=true")
	require.Contains(t, out, "wait=250ms")
	require.Contains(t, out, `empty=""`)
	require.Contains(t, out, "missing=null")
	require.Equal(t, 1, strings.Count(out, "\n"))
}

func TestNopIsSilent(t *testing.T) {
	logger := Nop().With(F("component", "conn"))
	require.False(t, logger.Enabled(Error))
	logger.Error("dropped")
}

func TestLevelString(t *testing.T) {
	require.Equal(t, "debug", Debug.String())
	require.Equal(t, "warn", Warn.String())
	require.Equal(t, "error", Error.String())
	require.Equal(t, "info", Level(42).String())
	require.Equal(t, FormatJSON, ParseFormat(" JSON "))
}
