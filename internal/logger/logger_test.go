package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_WritesTypedFields(t *testing.T) {
	var buf bytes.Buffer
	l := &Logger{zl: zerolog.New(&buf)}

	l.With(String("job", "ingest")).Info("ticker done",
		String("symbol", "BBCA.JK"),
		Int("rows", 480),
		Bool("ok", true),
		Duration("took", 1500*time.Millisecond),
		Error(errors.New("boom")),
	)

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "ingest", line["job"])
	assert.Equal(t, "BBCA.JK", line["symbol"])
	assert.EqualValues(t, 480, line["rows"])
	assert.Equal(t, true, line["ok"])
	assert.EqualValues(t, 1500, line["took"])
	assert.Equal(t, "boom", line["error"])
	assert.Equal(t, "ticker done", line["message"])
}

func TestNew_RejectsUnknownLevel(t *testing.T) {
	_, err := New(&Config{Level: "loud"})
	assert.Error(t, err)
}
