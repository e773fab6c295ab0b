// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func reserveListenAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	_ = ln.Close()
	return addr
}

func waitForListen(addr string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", addr, 50*time.Millisecond)
		if err == nil {
			_ = conn.Close()
			return nil
		}
		time.Sleep(10 * time.Millisecond)
	}
	return errors.New("listen timeout")
}

func testDeps() Deps {
	return Deps{
		Logger: zerolog.New(io.Discard),
		APIHandler: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		}),
	}
}

func TestNewManagerValidatesDeps(t *testing.T) {
	_, err := NewManager(ServerConfig{}, Deps{Logger: zerolog.New(io.Discard).Level(zerolog.Disabled), APIHandler: http.NotFoundHandler()})
	assert.ErrorIs(t, err, ErrMissingLogger)

	_, err = NewManager(ServerConfig{}, Deps{Logger: zerolog.New(io.Discard)})
	assert.ErrorIs(t, err, ErrMissingAPIHandler)
}

func TestManagerServesAndShutsDown(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	addr := reserveListenAddr(t)
	mgr, err := NewManager(ServerConfig{ListenAddr: addr, ShutdownTimeout: time.Second}, testDeps())
	require.NoError(t, err)

	var mu sync.Mutex
	var order []string
	for _, name := range []string{"catalog", "projects", "cache"} {
		mgr.RegisterShutdownHook(name, func(context.Context) error {
			mu.Lock()
			defer mu.Unlock()
			order = append(order, name)
			return nil
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- mgr.Start(ctx) }()

	require.NoError(t, waitForListen(addr, 2*time.Second))
	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
	resp, err := client.Get("http://" + addr + "/")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusTeapot, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("manager did not stop")
	}
	assert.Equal(t, []string{"cache", "projects", "catalog"}, order)

	// A second shutdown is a no-op.
	assert.NoError(t, mgr.Shutdown(context.Background()))
}

func TestManagerShutdownBeforeStart(t *testing.T) {
	mgr, err := NewManager(ServerConfig{}, testDeps())
	require.NoError(t, err)
	assert.ErrorIs(t, mgr.Shutdown(context.Background()), ErrManagerNotStarted)
}

func TestManagerBindFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer func() { _ = ln.Close() }()

	mgr, err := NewManager(ServerConfig{ListenAddr: ln.Addr().String()}, testDeps())
	require.NoError(t, err)
	hookRan := false
	mgr.RegisterShutdownHook("db", func(context.Context) error {
		hookRan = true
		return nil
	})

	err = mgr.Start(context.Background())
	assert.ErrorIs(t, err, ErrServerStartFailed)
	assert.True(t, hookRan)
}

func TestManagerHookErrorsAreJoined(t *testing.T) {
	addr := reserveListenAddr(t)
	mgr, err := NewManager(ServerConfig{ListenAddr: addr}, testDeps())
	require.NoError(t, err)
	boom := errors.New("boom")
	mgr.RegisterShutdownHook("db", func(context.Context) error { return boom })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- mgr.Start(ctx) }()
	require.NoError(t, waitForListen(addr, 2*time.Second))
	cancel()
	assert.ErrorIs(t, <-done, boom)
}

func TestAppRunsTasksUntilCancelled(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	addr := reserveListenAddr(t)
	mgr, err := NewManager(ServerConfig{ListenAddr: addr}, testDeps())
	require.NoError(t, err)

	started := make(chan struct{})
	app := NewApp(zerolog.New(io.Discard), mgr,
		Task{Name: "inbox", Run: func(ctx context.Context) error {
			close(started)
			<-ctx.Done()
			return nil
		}},
		Task{Name: "broken", Run: func(context.Context) error { return errors.New("no inbox dir") }},
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	<-started
	require.NoError(t, waitForListen(addr, 2*time.Second))
	cancel()
	assert.NoError(t, <-done)
}

func TestAppRequiresManager(t *testing.T) {
	assert.ErrorIs(t, NewApp(zerolog.New(io.Discard), nil).Run(context.Background()), ErrMissingManager)
}
