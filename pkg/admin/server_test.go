package admin_test

import (
	"context"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/taskq/pkg/admin"
)

func TestServer_RunAndCancel(t *testing.T) {
	t.Parallel()

	started := make(chan string, 1)
	srv := admin.NewServer(
		admin.WithAddr("127.0.0.1:0"),
		admin.WithShutdownTimeout(100*time.Millisecond),
		admin.WithServerLogger(quietLogger()),
		admin.WithStartHook(func(addr string) { started <- addr }),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- srv.Run(ctx, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}))
	}()

	var addr string
	select {
	case addr = <-started:
	case <-time.After(2 * time.Second):
		require.Fail(t, "server did not start")
	}

	resp, err := http.Get("http://" + addr)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		require.Fail(t, "run did not finish")
	}
	require.NoError(t, srv.Shutdown(context.Background()))
}

func TestServer_ManualShutdown(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	srv := admin.NewServer(
		admin.WithAddr("127.0.0.1:0"),
		admin.WithServerLogger(quietLogger()),
		admin.WithStartHook(func(string) { close(started) }),
	)

	done := make(chan error, 1)
	go func() { done <- srv.Run(context.Background(), http.NotFoundHandler()) }()
	<-started

	require.NoError(t, srv.Shutdown(context.Background()))
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		require.Fail(t, "run did not finish")
	}
}

func TestServer_StartError(t *testing.T) {
	t.Parallel()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()

	srv := admin.NewServer(admin.WithAddr(l.Addr().String()), admin.WithServerLogger(quietLogger()))
	err = srv.Run(context.Background(), nil)
	require.ErrorIs(t, err, admin.ErrStart)
}

func TestServer_DoubleRun(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	srv := admin.NewServer(
		admin.WithAddr("127.0.0.1:0"),
		admin.WithServerLogger(quietLogger()),
		admin.WithStartHook(func(string) { close(started) }),
	)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx, nil) }()
	<-started

	err := srv.Run(context.Background(), nil)
	require.ErrorIs(t, err, admin.ErrAlreadyRunning)

	cancel()
	require.NoError(t, <-done)
}

func TestNewServerFromConfig(t *testing.T) {
	t.Parallel()

	started := make(chan string, 1)
	srv := admin.NewServerFromConfig(admin.Config{Addr: "127.0.0.1:0", ShutdownTimeout: time.Second},
		admin.WithServerLogger(quietLogger()),
		admin.WithStartHook(func(addr string) { started <- addr }))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx, nil) }()

	addr := <-started
	host, _, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", host)

	cancel()
	require.NoError(t, <-done)
}

func TestNewServer_PanicsOnInvalidOptions(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() { admin.WithAddr("") })
	assert.Panics(t, func() { admin.WithShutdownTimeout(0) })
	assert.Panics(t, func() { admin.WithStartHook(nil) })
}
