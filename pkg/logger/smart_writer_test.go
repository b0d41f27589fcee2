package logger_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ndthang0000/bau-cua-server/pkg/logger"
)

// mockWriter captures writes for verification.
type mockWriter struct {
	buffer bytes.Buffer
}

func (m *mockWriter) Write(p []byte) (n int, err error) {
	return m.buffer.Write(p)
}

func TestSmartWriterImmediateFlushOnError(t *testing.T) {
	out := &mockWriter{}
	// Long flush interval so the background flusher cannot interfere.
	sw := logger.NewSmartWriter(out, 10*time.Second)
	defer sw.Close()

	infoLog := []byte(`{"level":"info","message":"test info"}` + "\n")
	n, err := sw.Write(infoLog)
	assert.NoError(t, err)
	assert.Equal(t, len(infoLog), n)
	assert.Equal(t, 0, out.buffer.Len(), "info lines stay buffered")

	errorLog := []byte(`{"level":"error","message":"test error"}` + "\n")
	_, err = sw.Write(errorLog)
	assert.NoError(t, err)

	assert.Equal(t, string(infoLog)+string(errorLog), out.buffer.String(),
		"an error line flushes everything buffered before it")
}

func TestSmartWriterAutoFlush(t *testing.T) {
	out := &mockWriter{}
	sw := logger.NewSmartWriter(out, 100*time.Millisecond)
	defer sw.Close()

	infoLog := []byte(`{"level":"info","message":"test info"}` + "\n")
	sw.Write(infoLog)
	assert.Equal(t, 0, out.buffer.Len())

	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, string(infoLog), out.buffer.String(), "the flusher drains the buffer on its interval")
}

func TestSmartWriterExplicitSync(t *testing.T) {
	out := &mockWriter{}
	sw := logger.NewSmartWriter(out, 10*time.Second)
	defer sw.Close()

	infoLog := []byte(`{"level":"info","message":"test info"}` + "\n")
	sw.Write(infoLog)
	assert.Equal(t, 0, out.buffer.Len())

	assert.NoError(t, sw.Sync())
	assert.Equal(t, string(infoLog), out.buffer.String())
}
