package httpapi

import (
	"context"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/dmitrijs2005/tubeaccounts/internal/logging"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestServer_RunStopsOnCancel(t *testing.T) {
	srv := NewServer("127.0.0.1:0", http.NotFoundHandler(), logging.NewDiscardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestServer_RunBadAddress(t *testing.T) {
	srv := NewServer("bad-address", http.NotFoundHandler(), logging.NewDiscardLogger())
	require.Error(t, srv.Run(context.Background()))
}

func TestServer_ServeFailureReleasesShutdownGoroutine(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	require.NoError(t, lis.Close())

	srv := NewServer("", http.NotFoundHandler(), logging.NewDiscardLogger())

	errCh := make(chan error, 1)
	go func() { errCh <- srv.serve(context.Background(), lis) }()

	select {
	case err := <-errCh:
		require.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return after listener failure")
	}
}
