package observability

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/immigration-assistant/internal/config"
)

func TestNewLoggerEmitsJSONWithServiceFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, config.Config{AppEnv: "production", OTELServiceName: "immigration-assistant"})

	logger.Info("boot complete", "port", 8080)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "boot complete", line["msg"])
	assert.Equal(t, "immigration-assistant", line["service"])
	assert.Equal(t, "production", line["env"])
	assert.EqualValues(t, 8080, line["port"])
}

func TestNewLoggerDebugLevelPerEnvironment(t *testing.T) {
	var buf bytes.Buffer
	NewLogger(&buf, config.Config{AppEnv: "production"}).Debug("hidden")
	assert.Empty(t, buf.String())

	NewLogger(&buf, config.Config{AppEnv: "development"}).Debug("visible")
	assert.Contains(t, buf.String(), "visible")
}
