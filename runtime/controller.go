package runtime

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"ttv-chat/contract"
	"ttv-chat/domain"
	apperrors "ttv-chat/errors"
	"ttv-chat/moderation"
)

// channelCapacity sizes every internal queue. Generous on purpose: a
// bursty caller blocks on a full queue instead of losing lines.
const channelCapacity = 128

// Controller supervises session generations. It owns the durable inbound
// channel, so a caller blocked in receive never sees a channel identity
// change across reconnects, and the shared slot through which sends reach
// whichever session is currently live.
//
// A session that dies on its own is not restarted. Only Join starts a new
// generation.
type Controller struct {
	log     *slog.Logger
	dial    contract.Dialer
	durable chan domain.Message
	filter  *moderation.MuteFilter
	sinks   []contract.MessageSink

	// The slot and the cancel handle always refer to the same generation;
	// they are replaced together under mu.
	mu         sync.Mutex
	generation uuid.UUID
	outgoing   chan<- string
	cancel     context.CancelFunc
}

func NewController(
	log *slog.Logger,
	dial contract.Dialer,
	filter *moderation.MuteFilter,
	sinks ...contract.MessageSink,
) *Controller {
	return &Controller{
		log:     log,
		dial:    dial,
		durable: make(chan domain.Message, channelCapacity),
		filter:  filter,
		sinks:   sinks,
	}
}

// Messages exposes the durable inbound channel. Its identity is stable
// for the controller's whole lifetime.
func (c *Controller) Messages() <-chan domain.Message {
	return c.durable
}

// Send enqueues one outgoing chat line for the current session. With no
// session installed it is a silent no-op. A send racing a Join may reach
// either generation; that is the accepted best-effort semantic.
func (c *Controller) Send(text string) {
	c.mu.Lock()
	outgoing := c.outgoing
	c.mu.Unlock()

	if outgoing == nil {
		c.log.Debug("No session installed, dropping outgoing line")
		return
	}
	outgoing <- text
}

// Join replaces the current session generation with a fresh one. A live
// session is canceled abruptly, without waiting for it to wind down.
func (c *Controller) Join(creds domain.Credentials) {
	genCtx, cancel := context.WithCancel(context.Background())
	generation := uuid.New()

	incoming := make(chan domain.Message, channelCapacity)
	outgoing := make(chan string, channelCapacity)

	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	c.generation = generation
	c.outgoing = outgoing
	c.cancel = cancel
	c.mu.Unlock()

	c.log.Info("Starting session", "channel", creds.Channel, "generation", generation)

	go c.proxy(incoming)
	go c.supervise(genCtx, generation, NewSession(c.log, c.dial, creds, incoming, outgoing))
}

// Leave cancels the current generation and clears the slot. The durable
// channel keeps any buffered, undelivered messages. Safe with no session.
func (c *Controller) Leave() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
	}
	c.cancel = nil
	c.outgoing = nil
}

// supervise runs one session to completion, containing panics. No restart
// here: a dead session stays dead until the next Join. On exit it releases
// the send slot if its generation is still the installed one, so later
// sends drop instead of filling a buffer nobody drains.
func (c *Controller) supervise(ctx context.Context, generation uuid.UUID, session *Session) {
	name := contract.GetWorkerName(session)

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = apperrors.ErrSessionPanic
			}
		}()
		return session.Run(ctx)
	}()

	c.mu.Lock()
	if c.generation == generation {
		c.outgoing = nil
		c.cancel = nil
	}
	c.mu.Unlock()

	switch {
	case err == nil:
		c.log.Info("Worker finished", "name", name)
	case ctx.Err() != nil:
		c.log.Info("Worker stopped (context canceled)", "name", name)
	default:
		c.log.Warn("Worker failed", "name", name, "error", err)
	}
}

// proxy republishes one generation's messages onto the durable channel,
// masking muted terms and fanning out to the configured sinks on the way.
// It ends when the session closes its incoming channel.
func (c *Controller) proxy(incoming <-chan domain.Message) {
	for msg := range incoming {
		if c.filter != nil {
			msg = c.filter.Apply(msg)
		}
		for _, sink := range c.sinks {
			if err := sink.Consume(msg); err != nil {
				c.log.Warn("Message sink failed", "error", err)
			}
		}
		c.durable <- msg
	}
}
