package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"example.com/chirp/internal/chirp"
	"example.com/chirp/internal/store"
	"github.com/stretchr/testify/require"
)

func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

// TestServer_GracefulShutdown verifies that Run serves requests until its
// context is cancelled and then returns once the server has stopped.
func TestServer_GracefulShutdown(t *testing.T) {
	st := store.NewMemory()
	h := New(chirp.New(st), Options{Secret: testSecret}).Routes()
	addr := freeAddr(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		Run(ctx, h, addr, "", "")
		close(done)
	}()

	// Wait for the listener to come up
	url := fmt.Sprintf("http://%s/ping", addr)
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, time.Second, 10*time.Millisecond)

	cancel()

	select {
	case <-done:
		st.Close()
	case <-time.After(2 * time.Second):
		t.Fatal("server did not shutdown gracefully within the expected time")
	}

	_, err := http.Get(url)
	require.Error(t, err, "server still accepting connections after shutdown")
}
