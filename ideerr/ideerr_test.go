package ideerr

import (
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	err := InvalidState("continue", "running")
	assert.Equal(t, KindInvalidState, KindOf(err))
	assert.Equal(t, "running", err.State)

	wrapped := fmt.Errorf("control_execution: %w", err)
	assert.Equal(t, KindInvalidState, KindOf(wrapped))
	assert.True(t, IsKind(wrapped, KindInvalidState))
	assert.False(t, IsKind(wrapped, KindTimeout))

	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
	assert.Equal(t, Kind(""), KindOf(nil))
}

func TestConnectionLostUnwraps(t *testing.T) {
	err := ConnectionLost(io.EOF)
	assert.True(t, errors.Is(err, io.EOF))
	assert.Equal(t, KindConnectionLost, KindOf(err))
	assert.Contains(t, err.Error(), "editor connection lost")
}

func TestMessages(t *testing.T) {
	assert.Contains(t, RemoteTimeout("lsp/definition", 30*time.Second).Error(),
		"remote call lsp/definition timed out after 30s")
	assert.Contains(t, Timeout("editor startup", 3*time.Second).Error(),
		"editor startup did not complete within 3s")
	assert.Contains(t, NotFound("path /tmp/missing.py").Error(), "not found")
	assert.Contains(t, OutsideWorkspace("/etc/passwd", "/work").Error(),
		"outside workspace")
}

func TestRemoteCarriesPayload(t *testing.T) {
	err := Remote("E_LSP", "no definition found", "pyright returned null")
	assert.Equal(t, KindRemoteError, KindOf(err))
	assert.Equal(t, "E_LSP", err.Code)
	assert.Equal(t, "pyright returned null", err.Details)
}
