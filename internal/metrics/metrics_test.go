package metrics

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordCounters(t *testing.T) {
	before := testutil.ToFloat64(MessagesTotal.WithLabelValues(OutcomeNotified))
	RecordMessage(OutcomeNotified)
	assert.Equal(t, before+1, testutil.ToFloat64(MessagesTotal.WithLabelValues(OutcomeNotified)))

	fallbacks := testutil.ToFloat64(DeliveryFallbacksTotal)
	RecordFallback()
	assert.Equal(t, fallbacks+1, testutil.ToFloat64(DeliveryFallbacksTotal))

	cycles := testutil.ToFloat64(CyclesTotal.WithLabelValues(CycleFailed))
	RecordCycle(CycleFailed, time.Second)
	assert.Equal(t, cycles+1, testutil.ToFloat64(CyclesTotal.WithLabelValues(CycleFailed)))
}

func TestServeExposesMetrics(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, addr) }()

	RecordMessage(OutcomeSkipped)

	var body string
	require.Eventually(t, func() bool {
		resp, err := http.Get(fmt.Sprintf("http://%s/metrics", addr))
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		b, _ := io.ReadAll(resp.Body)
		body = string(b)
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 50*time.Millisecond)
	assert.Contains(t, body, "mailnotify_messages_total")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("metrics server did not stop")
	}
}
