package email

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nhle/mailnotify/internal/source"
)

// stallingServer accepts connections and never answers.
func stallingServer(t *testing.T) int {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	var (
		mu    sync.Mutex
		conns []net.Conn
	)
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			conns = append(conns, c)
			mu.Unlock()
		}
	}()

	t.Cleanup(func() {
		ln.Close()
		mu.Lock()
		defer mu.Unlock()
		for _, c := range conns {
			c.Close()
		}
	})

	return ln.Addr().(*net.TCPAddr).Port
}

// closedPort returns a local port with nothing listening on it.
func closedPort(t *testing.T) int {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return port
}

func TestNewIMAPClientDefaultsMailbox(t *testing.T) {
	c := NewIMAPClient(Config{Host: "imap.example.com", Port: 993})
	assert.Equal(t, DefaultMailbox, c.cfg.Mailbox)
	assert.Equal(t, "imap.example.com:993", c.addr())
}

func TestFetchUnseenConnectionRefused(t *testing.T) {
	c := NewIMAPClient(Config{Host: "127.0.0.1", Port: closedPort(t), TLS: true})

	_, err := c.FetchUnseen(context.Background())
	require.Error(t, err)
	assert.False(t, source.IsAuthError(err))
}

func TestFetchUnseenTimesOutOnStalledServer(t *testing.T) {
	for _, useTLS := range []bool{true, false} {
		c := NewIMAPClient(Config{
			Host:    "127.0.0.1",
			Port:    stallingServer(t),
			TLS:     useTLS,
			Timeout: 200 * time.Millisecond,
		})

		done := make(chan error, 1)
		go func() {
			_, err := c.FetchUnseen(context.Background())
			done <- err
		}()

		select {
		case err := <-done:
			require.Error(t, err)
			assert.ErrorIs(t, err, context.DeadlineExceeded)
			assert.False(t, source.IsAuthError(err))
		case <-time.After(10 * time.Second):
			t.Fatalf("session did not honor its timeout (tls=%v)", useTLS)
		}
	}
}

func TestValidateHonorsCanceledContext(t *testing.T) {
	c := NewIMAPClient(Config{Host: "127.0.0.1", Port: stallingServer(t), TLS: true})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Validate(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAdapterPassesSessionErrorsThrough(t *testing.T) {
	a := NewAdapter(Config{Host: "127.0.0.1", Port: closedPort(t), TLS: true}, zap.NewNop())

	res, err := a.FetchUnseen(context.Background())
	assert.Error(t, err)
	assert.Nil(t, res)
}
