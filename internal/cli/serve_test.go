package cli

import (
	"bytes"
	"context"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServe_StartsAndStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	addrs := make(chan string, 1)
	opts := &ServeOptions{
		RootOptions: &RootOptions{Format: "text", Database: filepath.Join(t.TempDir(), "serve.db")},
		Listen:      "127.0.0.1:0",
		ready:       func(addr string) { addrs <- addr },
	}
	cmd := &cobra.Command{}
	logs := &bytes.Buffer{}
	cmd.SetErr(logs)

	done := make(chan error, 1)
	go func() { done <- runServe(ctx, opts, cmd) }()

	var addr string
	select {
	case addr = <-addrs:
	case err := <-done:
		t.Fatalf("serve exited early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not start")
	}

	resp, err := http.Get("http://" + addr + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get("http://" + addr + "/v1/game-teams/gt-ghost/lineup")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(shutdownTimeout + time.Second):
		t.Fatal("server did not stop")
	}
	assert.Contains(t, logs.String(), "listening")
}

func TestServe_BadListenAddr(t *testing.T) {
	opts := &ServeOptions{
		RootOptions: &RootOptions{Format: "text", Database: filepath.Join(t.TempDir(), "serve.db")},
		Listen:      "not-an-address",
	}
	cmd := &cobra.Command{}
	cmd.SetErr(&bytes.Buffer{})

	err := runServe(context.Background(), opts, cmd)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to listen")
}
