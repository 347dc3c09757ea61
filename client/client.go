// Package client is the host-facing facade: join a channel, send lines,
// receive parsed messages, while reconnection details stay inside the
// runtime package.
package client

import (
	"context"
	"fmt"
	"log/slog"

	"ttv-chat/auth"
	"ttv-chat/config"
	"ttv-chat/contract"
	"ttv-chat/domain"
	"ttv-chat/moderation"
	"ttv-chat/repositories"
	"ttv-chat/runtime"
	"ttv-chat/transport"
)

// Chat wraps the session controller and the configuration snapshot joins
// are derived from. One Chat lives as long as the chat feature itself.
type Chat struct {
	log        *slog.Logger
	config     *config.Config
	controller *runtime.Controller
	history    *repositories.ChatHistory
}

type options struct {
	log     *slog.Logger
	dial    contract.Dialer
	muted   []string
	sinks   []contract.MessageSink
	history *repositories.ChatHistory
}

type Option func(*options)

func WithLogger(log *slog.Logger) Option {
	return func(o *options) { o.log = log }
}

// WithDialer overrides how sessions open their socket. Used by tests.
func WithDialer(dial contract.Dialer) Option {
	return func(o *options) { o.dial = dial }
}

// WithMutedTerms masks the given terms in every received message.
func WithMutedTerms(terms ...string) Option {
	return func(o *options) { o.muted = append(o.muted, terms...) }
}

// WithHistory records every received message in the given store.
func WithHistory(history *repositories.ChatHistory) Option {
	return func(o *options) { o.history = history }
}

// WithMessageSink adds an extra consumer of received messages.
func WithMessageSink(sink contract.MessageSink) Option {
	return func(o *options) { o.sinks = append(o.sinks, sink) }
}

func New(cfg *config.Config, opts ...Option) (*Chat, error) {
	o := &options{log: slog.Default(), dial: transport.Dial}
	for _, opt := range opts {
		opt(o)
	}

	var filter *moderation.MuteFilter
	if len(o.muted) > 0 {
		var err error
		if filter, err = moderation.NewMuteFilter(o.muted); err != nil {
			return nil, fmt.Errorf("mute filter: %w", err)
		}
	}

	sinks := o.sinks
	if o.history != nil {
		sinks = append(sinks, o.history)
	}

	return &Chat{
		log:        o.log,
		config:     cfg,
		controller: runtime.NewController(o.log, o.dial, filter, sinks...),
		history:    o.history,
	}, nil
}

// Join stores the channel in the snapshot and starts a fresh session for
// it, replacing any running one.
func (c *Chat) Join(channel string) error {
	c.config.Channel = channel

	creds := domain.NewCredentials(channel, c.config.OAuth, c.config.Nick)
	if err := creds.Validate(); err != nil {
		return err
	}

	if c.history != nil {
		c.history.SetChannel(channel)
	}
	c.controller.Join(creds)
	return nil
}

// Reconnect re-joins the last known channel. Without one it is a no-op.
func (c *Chat) Reconnect() error {
	if c.config.Channel == "" {
		c.log.Info("No channel to reconnect to")
		return nil
	}
	return c.Join(c.config.Channel)
}

// Leave tears down the current session, if any.
func (c *Chat) Leave() {
	c.controller.Leave()
}

// Send enqueues one chat line, best effort. Before the first Join it is
// a silent no-op.
func (c *Chat) Send(text string) {
	c.controller.Send(text)
}

// Receive blocks until the next message arrives on the durable channel.
// It only errors when ctx is canceled; connection loss is silent.
func (c *Chat) Receive(ctx context.Context) (domain.Message, error) {
	select {
	case msg := <-c.controller.Messages():
		return msg, nil
	case <-ctx.Done():
		return domain.Message{}, ctx.Err()
	}
}

// FetchAuthToken runs the browser capture flow and stores the result in
// the snapshot.
func (c *Chat) FetchAuthToken(ctx context.Context) error {
	token, err := auth.FetchToken(ctx, c.log)
	if err != nil {
		return err
	}
	c.config.OAuth = token
	c.log.Info("Auth token has been set")
	return nil
}
