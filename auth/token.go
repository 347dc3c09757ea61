// Package auth captures an OAuth token through the browser implicit
// grant flow: a one-shot local listener serves the redirect page, the
// page posts the token back, and the listener shuts down.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/exec"
	"runtime"
	"time"

	"github.com/julienschmidt/httprouter"

	apperrors "ttv-chat/errors"
)

const (
	// ListenAddr must match the redirect URI registered for the client ID.
	ListenAddr = ":4537"

	clientID = "m0y30jcckwn2a7m7hh0djrg47wvbuk"
)

// AuthorizeURL is the browser entry point of the flow. The token comes
// back in the redirect's URL fragment, which only the page script can
// read, hence the POST hop through /token.
func AuthorizeURL() string {
	return "https://id.twitch.tv/oauth2/authorize" +
		"?response_type=token" +
		"&client_id=" + clientID +
		"&scope=chat%3Aread%20chat%3Aedit" +
		"&redirect_uri=http://localhost:4537"
}

// FetchToken runs the whole capture. It blocks until the browser posts a
// token back or ctx is canceled.
func FetchToken(ctx context.Context, log *slog.Logger) (string, error) {
	ln, err := net.Listen("tcp", ListenAddr)
	if err != nil {
		return "", fmt.Errorf("token listener: %w", err)
	}

	log.Info("Complete authentication in your browser", "url", AuthorizeURL())
	if err := openBrowser(ctx, AuthorizeURL()); err != nil {
		log.Warn("Failed to open browser automatically, please navigate manually")
	}

	log.Info("Waiting for token...")
	return waitForToken(ctx, ln)
}

type tokenBody struct {
	Token string `json:"token"`
}

// waitForToken serves the redirect page on ln until the first token
// arrives. The listener is always closed on return.
func waitForToken(ctx context.Context, ln net.Listener) (string, error) {
	tokens := make(chan string, 1)

	router := httprouter.New()
	router.GET("/", func(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(indexPage))
	})
	router.POST("/token", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		var body tokenBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Token == "" {
			http.Error(w, "missing token", http.StatusBadRequest)
			return
		}
		select {
		case tokens <- body.Token:
		default:
			// A token already arrived, first one wins.
		}
		w.WriteHeader(http.StatusOK)
	})

	server := &http.Server{Handler: router}
	serveErr := make(chan error, 1)
	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case token := <-tokens:
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return token, nil
	case err := <-serveErr:
		return "", err
	case <-ctx.Done():
		_ = server.Close()
		return "", apperrors.ErrAuthInterrupted
	}
}

func openBrowser(ctx context.Context, url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.CommandContext(ctx, "open", url)
	case "windows":
		cmd = exec.CommandContext(ctx, "rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.CommandContext(ctx, "xdg-open", url)
	}
	return cmd.Start()
}
