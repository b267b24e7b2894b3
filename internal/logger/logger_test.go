package logger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestAnonymize(t *testing.T) {
	in := "login ropf@itu.dk token eyJhbGciOiJIUzI1NiJ9.x.y user_id=Helge"
	out := Anonymize(in)

	assert.NotContains(t, out, "ropf@itu.dk")
	assert.NotContains(t, out, "eyJhbGci")
	assert.Contains(t, out, "[REDACTED_EMAIL]")
	assert.Contains(t, out, "[REDACTED_TOKEN]")
	assert.Contains(t, out, "user_id=[USER_ID]")
}

func TestLogger_ModuleAndErrorFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := NewWith(zap.New(core))

	l.Info("store", "author adho@itu.dk created")
	l.Error("http", "failed", errors.New("boom for ropf@itu.dk"))

	entries := logs.All()
	require.Len(t, entries, 2)

	assert.Equal(t, "author [REDACTED_EMAIL] created", entries[0].Message)
	assert.Equal(t, "store", entries[0].ContextMap()["module"])

	assert.Equal(t, "http", entries[1].ContextMap()["module"])
	assert.Equal(t, "boom for [REDACTED_EMAIL]", entries[1].ContextMap()["error"])
}
