package sdk

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockCloser is a test double that implements io.Closer
type mockCloser struct {
	closeErr   error
	closeCalls int
}

func (m *mockCloser) Close() error {
	m.closeCalls++
	return m.closeErr
}

func TestCloseWithLog_NilCloser(t *testing.T) {
	var logBuf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logBuf, nil))

	CloseWithLog(nil, logger, "event relay")

	assert.Empty(t, logBuf.String(), "should not log for nil closer")
}

func TestCloseWithLog_SuccessfulClose(t *testing.T) {
	closer := &mockCloser{}
	var logBuf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logBuf, nil))

	CloseWithLog(closer, logger, "event relay")

	assert.Equal(t, 1, closer.closeCalls, "should call Close once")
	assert.Empty(t, logBuf.String(), "should not log on successful close")
}

func TestCloseWithLog_CloseError(t *testing.T) {
	expectedErr := errors.New("close failed: connection reset")
	closer := &mockCloser{closeErr: expectedErr}
	var logBuf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logBuf, nil))

	CloseWithLog(closer, logger, "diagnostics file")

	assert.Equal(t, 1, closer.closeCalls, "should call Close once")

	logOutput := logBuf.String()
	assert.Contains(t, logOutput, "failed to close resource", "should log failure message")
	assert.Contains(t, logOutput, "diagnostics file", "should include resource name")
	assert.Contains(t, logOutput, "close failed", "should include error message")
	assert.Contains(t, logOutput, "level=WARN", "should log at warning level")
}

func TestCloseWithLog_NilLogger(t *testing.T) {
	closer := &mockCloser{closeErr: errors.New("test error")}

	// Should not panic with nil logger
	require.NotPanics(t, func() {
		CloseWithLog(closer, nil, "event relay")
	})

	assert.Equal(t, 1, closer.closeCalls, "should call Close once")
}

func TestCloseWithLog_DeferPattern(t *testing.T) {
	var logBuf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logBuf, nil))
	closer := &mockCloser{closeErr: errors.New("cleanup error")}

	func() {
		defer CloseWithLog(closer, logger, "deferred resource")
	}()

	assert.Equal(t, 1, closer.closeCalls, "should call Close via defer")
	assert.Contains(t, logBuf.String(), "failed to close resource", "should log via defer")
}

func TestCloseWithLog_MultipleResources(t *testing.T) {
	var logBuf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logBuf, nil))

	relayCloser := &mockCloser{closeErr: errors.New("Redis connection lost")}
	fileCloser := &mockCloser{}

	func() {
		defer CloseWithLog(fileCloser, logger, "export file")
		defer CloseWithLog(relayCloser, logger, "event relay")
	}()

	assert.Equal(t, 1, relayCloser.closeCalls)
	assert.Equal(t, 1, fileCloser.closeCalls)

	logOutput := logBuf.String()
	assert.Contains(t, logOutput, "event relay")
	assert.Contains(t, logOutput, "Redis connection lost")
	assert.NotContains(t, logOutput, "export file", "successful closes should not be logged")
}

func TestCloseWithLog_RealIOCloser(t *testing.T) {
	var logBuf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logBuf, nil))

	r, w := io.Pipe()
	w.Close()
	CloseWithLog(r, logger, "pipe reader")

	assert.Empty(t, logBuf.String())
}
