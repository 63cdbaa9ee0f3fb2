package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/bark-labs/gntp-notify/internal/config"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaults(t *testing.T) {
	log, err := New(config.Log{})
	require.NoError(t, err)
	assert.Equal(t, logrus.InfoLevel, log.GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, log.Formatter)
}

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewWithOutput(config.Log{Level: "debug", Format: "JSON"}, &buf)
	require.NoError(t, err)

	log.WithField("addr", "localhost:23053").Debug("Notification-Text: hi")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "Notification-Text: hi", entry["msg"])
	assert.Equal(t, "debug", entry["level"])
	assert.Equal(t, "localhost:23053", entry["addr"])
}

func TestNewRejectsBadInput(t *testing.T) {
	_, err := New(config.Log{Level: "loud"})
	require.Error(t, err)

	_, err = New(config.Log{Format: "xml"})
	require.Error(t, err)
}
