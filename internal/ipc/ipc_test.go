package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startServer(t *testing.T, h Handler) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "c.sock")

	srv, err := Listen(path, h)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Error("server did not stop")
		}
		srv.Close()
	})
	return path
}

func TestTriggerRoundTrip(t *testing.T) {
	got := make(chan Request, 1)
	path := startServer(t, func(_ context.Context, req Request) (any, error) {
		got <- req
		return nil, nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	resp, err := Send(ctx, path, Request{Cmd: CmdTrigger})
	require.NoError(t, err)
	assert.True(t, resp.OK)
	assert.Empty(t, resp.Data)
	assert.Equal(t, CmdTrigger, (<-got).Cmd)
}

func TestHistoryData(t *testing.T) {
	path := startServer(t, func(_ context.Context, req Request) (any, error) {
		return []string{"a", "b"}[:req.Limit], nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	resp, err := Send(ctx, path, Request{Cmd: CmdHistory, Limit: 1})
	require.NoError(t, err)

	var items []string
	require.NoError(t, json.Unmarshal(resp.Data, &items))
	assert.Equal(t, []string{"a"}, items)
}

func TestHandlerError(t *testing.T) {
	path := startServer(t, func(context.Context, Request) (any, error) {
		return nil, errors.New("unknown command")
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	resp, err := Send(ctx, path, Request{Cmd: "dance"})
	require.EqualError(t, err, "unknown command")
	assert.False(t, resp.OK)
}

func TestListenReplacesStaleSocket(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.sock")

	first, err := Listen(path, nil)
	require.NoError(t, err)
	// simulate a crash: the listener goes away but the file stays
	first.ln.(interface{ SetUnlinkOnClose(bool) }).SetUnlinkOnClose(false)
	require.NoError(t, first.ln.Close())

	second, err := Listen(path, nil)
	require.NoError(t, err)
	require.NoError(t, second.Close())
}

func TestSendNoDaemon(t *testing.T) {
	_, err := Send(context.Background(), filepath.Join(t.TempDir(), "none.sock"), Request{Cmd: CmdTrigger})
	require.Error(t, err)
}
