package auth

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	apperrors "ttv-chat/errors"
)

func listen(t *testing.T) net.Listener {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	return ln
}

func TestWaitForToken_FirstPostWins(t *testing.T) {
	req := require.New(t)
	ln := listen(t)
	base := fmt.Sprintf("http://%s", ln.Addr())

	type result struct {
		token string
		err   error
	}
	done := make(chan result, 1)
	go func() {
		token, err := waitForToken(context.Background(), ln)
		done <- result{token, err}
	}()

	// The landing page is served to the redirected browser.
	req.Eventually(func() bool {
		resp, err := http.Get(base + "/")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return resp.StatusCode == http.StatusOK && bytes.Contains(body, []byte("access_token"))
	}, time.Second, 10*time.Millisecond)

	resp, err := http.Post(base+"/token", "application/json", bytes.NewBufferString(`{"token":"abc123"}`))
	req.NoError(err)
	resp.Body.Close()
	req.Equal(http.StatusOK, resp.StatusCode)

	res := <-done
	req.NoError(res.err)
	req.Equal("abc123", res.token)
}

func TestWaitForToken_RejectsEmptyBody(t *testing.T) {
	req := require.New(t)
	ln := listen(t)
	base := fmt.Sprintf("http://%s", ln.Addr())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := waitForToken(ctx, ln)
		done <- err
	}()

	req.Eventually(func() bool {
		resp, err := http.Post(base+"/token", "application/json", bytes.NewBufferString(`{}`))
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusBadRequest
	}, time.Second, 10*time.Millisecond)

	cancel()
	req.ErrorIs(<-done, apperrors.ErrAuthInterrupted)
}

func TestWaitForToken_CanceledContext(t *testing.T) {
	req := require.New(t)
	ln := listen(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := waitForToken(ctx, ln)
	req.ErrorIs(err, apperrors.ErrAuthInterrupted)
}
