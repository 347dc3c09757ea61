// Package runtime owns the connection lifecycle: one Session per live
// socket, replaced by the Controller whenever the caller joins a channel.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"ttv-chat/contract"
	"ttv-chat/domain"
	"ttv-chat/irc"
)

// Endpoint is the well-known chat ingress. Unauthenticated at the
// transport layer, auth happens inside the protocol handshake.
const Endpoint = "ws://irc-ws.chat.twitch.tv:80"

// Session is one handshake-plus-message-pump attached to a single socket.
// It runs until the read path fails or the context is canceled; it never
// redials on its own.
type Session struct {
	log      *slog.Logger
	dial     contract.Dialer
	creds    domain.Credentials
	incoming chan<- domain.Message
	outgoing <-chan string

	// service-loop state, touched by the Run goroutine only
	tagsExpected bool
	lastSent     string
}

func NewSession(
	log *slog.Logger,
	dial contract.Dialer,
	creds domain.Credentials,
	incoming chan<- domain.Message,
	outgoing <-chan string,
) *Session {
	return &Session{
		log:      log,
		dial:     dial,
		creds:    creds,
		incoming: incoming,
		outgoing: outgoing,
	}
}

// Run implements contract.Worker. Any handshake failure is fatal; a read
// failure afterwards is the normal "connection dropped" exit. Closing the
// incoming sink on the way out is what terminates the paired proxy.
func (s *Session) Run(ctx context.Context) error {
	defer close(s.incoming)

	conn, err := s.dial(ctx, Endpoint)
	if err != nil {
		return fmt.Errorf("websocket open: %w", err)
	}

	sessionCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		// Unblocks a pending read when the session is canceled or returns.
		<-sessionCtx.Done()
		_ = conn.Close()
	}()

	handshake := []string{
		irc.PassLine(s.creds.Token),
		irc.NickLine(s.creds.Nick),
		irc.JoinLine(s.creds.Channel),
		irc.CapReqLine(),
	}
	for _, line := range handshake {
		if err := conn.WriteText(line); err != nil {
			return fmt.Errorf("handshake: %w", err)
		}
	}
	s.log.Info("Joined channel", "channel", s.creds.Channel)

	frames := make(chan string)
	readErr := make(chan error, 1)
	go readPump(sessionCtx, conn, frames, readErr)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-readErr:
			// Normal disconnect path. The caller decides whether to rejoin.
			s.log.Warn("Connection lost", "channel", s.creds.Channel, "error", err)
			return nil
		case raw := <-frames:
			if err := s.dispatch(ctx, raw); err != nil {
				return err
			}
		case text := <-s.outgoing:
			line := irc.PrivmsgLine(s.creds.Channel, s.applyRepeatWorkaround(text))
			if err := conn.WriteText(line); err != nil {
				// Best-effort sends: only the read path ends the session.
				s.log.Debug("Dropped outgoing line", "error", err)
			}
		}
	}
}

// dispatch routes one decoded frame: capability ack, chat line, or noise.
func (s *Session) dispatch(ctx context.Context, raw string) error {
	switch {
	case strings.Contains(raw, irc.TagsAckMarker):
		s.tagsExpected = true
	case s.tagsExpected && strings.Contains(raw, irc.PrivmsgMarker):
		if msg, ok := irc.ParseTaggedMessage(raw); ok {
			return s.publish(ctx, msg)
		}
	case strings.Contains(raw, irc.PrivmsgMarker):
		if msg, ok := irc.ParseUserMessage(raw); ok {
			return s.publish(ctx, msg)
		}
	default:
		s.log.Debug("Protocol noise", "line", strings.TrimRight(raw, "\r\n"))
	}
	return nil
}

func (s *Session) publish(ctx context.Context, msg domain.Message) error {
	select {
	case s.incoming <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// applyRepeatWorkaround substitutes the previous line for an empty one,
// then toggles the invisible marker when the line would otherwise be a
// byte-for-byte repeat, which the server silently swallows.
func (s *Session) applyRepeatWorkaround(text string) string {
	if text == "" {
		text = s.lastSent
	}
	if text == s.lastSent {
		if strings.HasSuffix(text, irc.DedupeMarker) {
			text = strings.TrimSuffix(text, irc.DedupeMarker)
		} else {
			text += irc.DedupeMarker
		}
	}
	s.lastSent = text
	return text
}

// readPump feeds decoded frames to the service loop until the socket
// fails. It must never outlive its session, hence the ctx guard on the
// channel send.
func readPump(ctx context.Context, conn contract.Transport, frames chan<- string, readErr chan<- error) {
	for {
		payload, err := conn.ReadMessage()
		if err != nil {
			readErr <- err
			return
		}
		select {
		case frames <- decodeFrame(payload):
		case <-ctx.Done():
			return
		}
	}
}

// decodeFrame prefers the payload as UTF-8 text; a frame that is not
// valid UTF-8 is mapped byte-for-byte to runes instead of being dropped.
func decodeFrame(payload []byte) string {
	if utf8.Valid(payload) {
		return string(payload)
	}
	runes := make([]rune, len(payload))
	for i, b := range payload {
		runes[i] = rune(b)
	}
	return string(runes)
}
