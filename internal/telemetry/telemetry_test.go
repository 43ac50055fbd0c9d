package telemetry

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitMetrics_Idempotent(t *testing.T) {
	InitMetrics()
	InitMetrics()

	before := testutil.ToFloat64(Attacks.WithLabelValues("handshake_capture", "ok"))
	Attacks.WithLabelValues("handshake_capture", Result(nil)).Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(Attacks.WithLabelValues("handshake_capture", "ok")))
	assert.Equal(t, "error", Result(errors.New("x")))
}

func TestInitTracer(t *testing.T) {
	var buf bytes.Buffer
	shutdown, err := InitTracer(&buf)
	require.NoError(t, err)

	_, span := Tracer("test").Start(context.Background(), "unit")
	span.End()

	require.NoError(t, shutdown(context.Background()))
	assert.Contains(t, buf.String(), "unit")
}
