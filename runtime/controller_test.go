package runtime

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"ttv-chat/contract"
	"ttv-chat/domain"
	"ttv-chat/mocks"
	"ttv-chat/moderation"
)

// stubTransport is a scriptable socket: frames pushed into feed come
// back from ReadMessage, Close unblocks any pending read.
type stubTransport struct {
	feed chan []byte
	down chan struct{}

	mu        sync.Mutex
	writes    []string
	closeOnce sync.Once
}

func newStubTransport() *stubTransport {
	return &stubTransport{feed: make(chan []byte), down: make(chan struct{})}
}

func (s *stubTransport) ReadMessage() ([]byte, error) {
	select {
	case frame := <-s.feed:
		return frame, nil
	case <-s.down:
		return nil, io.EOF
	}
}

func (s *stubTransport) WriteText(line string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes = append(s.writes, line)
	return nil
}

func (s *stubTransport) Close() error {
	s.closeOnce.Do(func() { close(s.down) })
	return nil
}

func (s *stubTransport) closed() bool {
	select {
	case <-s.down:
		return true
	default:
		return false
	}
}

func (s *stubTransport) written() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.writes...)
}

// stubDialer hands out one stubTransport per session generation.
type stubDialer struct {
	mu    sync.Mutex
	conns []*stubTransport
}

func (d *stubDialer) dial(context.Context, string) (contract.Transport, error) {
	conn := newStubTransport()
	d.mu.Lock()
	defer d.mu.Unlock()
	d.conns = append(d.conns, conn)
	return conn, nil
}

func (d *stubDialer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.conns)
}

func (d *stubDialer) conn(t *testing.T, i int) *stubTransport {
	t.Helper()
	require.Eventually(t, func() bool {
		d.mu.Lock()
		defer d.mu.Unlock()
		return len(d.conns) > i
	}, time.Second, 5*time.Millisecond)

	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conns[i]
}

func waitHandshake(t *testing.T, conn *stubTransport) {
	t.Helper()
	require.Eventually(t, func() bool {
		return len(conn.written()) >= 4
	}, time.Second, 5*time.Millisecond)
}

func TestController_JoinSupersedesRunningSession(t *testing.T) {
	req := require.New(t)
	dialer := &stubDialer{}
	c := NewController(slog.Default(), dialer.dial, nil)

	c.Join(domain.NewCredentials("first", "", ""))
	first := dialer.conn(t, 0)
	waitHandshake(t, first)
	req.Contains(first.written(), "JOIN #first")

	first.feed <- []byte(":alice!x@y PRIVMSG #first :one\r\n")
	msg := <-c.Messages()
	req.Equal("alice", msg.Author)

	// A second join replaces the generation: the old socket is torn down
	// and the new channel is joined.
	c.Join(domain.NewCredentials("second", "", ""))
	second := dialer.conn(t, 1)
	waitHandshake(t, second)
	req.Contains(second.written(), "JOIN #second")
	req.Eventually(first.closed, time.Second, 5*time.Millisecond)

	// Messages from the new generation land on the same durable channel.
	second.feed <- []byte(":bob!x@y PRIVMSG #second :two\r\n")
	msg = <-c.Messages()
	req.Equal("bob", msg.Author)
	req.Equal("two", msg.Content)

	c.Leave()
}

func TestController_SendReachesCurrentSession(t *testing.T) {
	req := require.New(t)
	dialer := &stubDialer{}
	c := NewController(slog.Default(), dialer.dial, nil)

	c.Join(domain.NewCredentials("somewhere", "", ""))
	conn := dialer.conn(t, 0)
	waitHandshake(t, conn)

	c.Send("hi there")
	req.Eventually(func() bool {
		return strings.Contains(strings.Join(conn.written(), "\n"), "PRIVMSG #somewhere :hi there")
	}, time.Second, 5*time.Millisecond)

	c.Leave()
}

func TestController_SendWithoutSessionIsNoop(t *testing.T) {
	c := NewController(slog.Default(), (&stubDialer{}).dial, nil)
	c.Send("into the void") // must not block or panic
}

func TestController_LeaveThenSendIsNoop(t *testing.T) {
	req := require.New(t)
	dialer := &stubDialer{}
	c := NewController(slog.Default(), dialer.dial, nil)

	c.Join(domain.NewCredentials("somewhere", "", ""))
	conn := dialer.conn(t, 0)
	waitHandshake(t, conn)

	// A message delivered before leaving stays buffered for the caller.
	conn.feed <- []byte(":alice!x@y PRIVMSG #somewhere :kept\r\n")
	req.Eventually(func() bool { return len(c.Messages()) == 1 }, time.Second, 5*time.Millisecond)

	c.Leave()
	req.Eventually(conn.closed, time.Second, 5*time.Millisecond)

	c.Send("late")
	time.Sleep(100 * time.Millisecond)
	req.Len(conn.written(), 4, "no line may reach a socket after leave")

	msg := <-c.Messages()
	req.Equal("kept", msg.Content)

	// Leave with nothing running stays a safe no-op.
	c.Leave()
}

// slotEmpty reports whether the outgoing slot has been released.
func (c *Controller) slotEmpty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.outgoing == nil
}

func TestController_DeadSessionIsNotRedialed(t *testing.T) {
	req := require.New(t)
	dialer := &stubDialer{}
	c := NewController(slog.Default(), dialer.dial, nil)

	c.Join(domain.NewCredentials("somewhere", "", ""))
	first := dialer.conn(t, 0)
	waitHandshake(t, first)

	// The connection drops from the far side; the session winds down.
	first.Close()
	req.Eventually(c.slotEmpty, time.Second, 5*time.Millisecond)

	// No redial on its own, ever.
	time.Sleep(100 * time.Millisecond)
	req.Equal(1, dialer.count())

	// Only an explicit join starts the next generation.
	c.Join(domain.NewCredentials("somewhere", "", ""))
	second := dialer.conn(t, 1)
	waitHandshake(t, second)
	req.Equal(2, dialer.count())

	c.Leave()
}

func TestController_SendAfterSessionDeathIsNoop(t *testing.T) {
	req := require.New(t)
	dialer := &stubDialer{}
	c := NewController(slog.Default(), dialer.dial, nil)

	c.Join(domain.NewCredentials("somewhere", "", ""))
	conn := dialer.conn(t, 0)
	waitHandshake(t, conn)

	conn.Close()
	req.Eventually(c.slotEmpty, time.Second, 5*time.Millisecond)

	// Well past the queue capacity; a stale slot would block here.
	for i := 0; i < 2*channelCapacity; i++ {
		c.Send("late")
	}
	time.Sleep(50 * time.Millisecond)
	req.Len(conn.written(), 4, "no line may reach a dead socket")
}

func TestController_ProxyMasksAndRecords(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	filter, err := moderation.NewMuteFilter([]string{"badword"})
	req.NoError(err)

	sink := mocks.NewMockMessageSink(ctrl)
	sink.EXPECT().
		Consume(domain.Message{Author: "nick", Content: "*******"}).
		Return(nil).
		Times(1)

	dialer := &stubDialer{}
	c := NewController(slog.Default(), dialer.dial, filter, sink)

	c.Join(domain.NewCredentials("somewhere", "", ""))
	conn := dialer.conn(t, 0)
	waitHandshake(t, conn)

	conn.feed <- []byte(":nick!x@y PRIVMSG #somewhere :badword\r\n")
	msg := <-c.Messages()
	req.Equal("*******", msg.Content)

	c.Leave()
}
