package collector

import (
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wtask/collector/internal/collector/queue"
)

// startServer - builds server on an OS-chosen port and brings it into
// the listening state with a running accept loop.
func startServer(t *testing.T, options ...serverOption) *Server {
	t.Helper()
	options = append([]serverOption{WithAddress("127.0.0.1"), WithOutput(io.Discard)}, options...)
	s, err := New(0, options...)
	require.NoError(t, err)
	require.NoError(t, s.Bind())
	require.NoError(t, s.Listen())
	go s.AcceptLoop()
	return s
}

func receive(t *testing.T, sink <-chan queue.Message, timeout time.Duration) queue.Message {
	t.Helper()
	select {
	case m := <-sink:
		return m
	case <-time.After(timeout):
		t.Fatal("no message was reported in", timeout)
		return queue.Message{}
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool, details string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition was not met in", timeout, "-", details)
}

func TestServer_ReportsClientMessages(t *testing.T) {
	sink := make(chan queue.Message, 16)
	s := startServer(t, WithSink(func(m queue.Message) { sink <- m }))
	defer s.Shutdown(time.Second)
	addr := s.Addr().String()

	clientA, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer clientA.Close()
	_, err = clientA.Write([]byte("hello\n"))
	require.NoError(t, err)
	first := receive(t, sink, time.Second)
	assert.Equal(t, uint64(1), first.ClientID)
	assert.Equal(t, "hello\n", string(first.Payload))

	clientB, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer clientB.Close()
	_, err = clientB.Write([]byte("world\n"))
	require.NoError(t, err)
	second := receive(t, sink, time.Second)
	assert.Equal(t, uint64(2), second.ClientID)
	assert.Equal(t, "world\n", string(second.Payload))

	lines := s.Tail(2)
	assert.Contains(t, lines, "Message from Client 1: hello")
	assert.Contains(t, lines, "Message from Client 2: world")

	clientA.Close()
	clientB.Close()
	waitFor(t, 2*time.Second, func() bool { return s.CountActive() == 0 }, "registry is not empty")
}

func TestServer_FIFOPerConnection(t *testing.T) {
	var mu sync.Mutex
	received := strings.Builder{}
	s := startServer(t, WithSink(func(m queue.Message) {
		mu.Lock()
		received.Write(m.Payload)
		mu.Unlock()
	}))
	defer s.Shutdown(time.Second)

	conn, err := net.Dial("tcp", s.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	expected := strings.Builder{}
	for i := 0; i < 50; i++ {
		chunk := fmt.Sprintf("message-%02d;", i)
		expected.WriteString(chunk)
		_, err := conn.Write([]byte(chunk))
		require.NoError(t, err)
	}

	// single producer, so arrival order equals send order even if the
	// stream was split or coalesced across reads
	waitFor(t, 2*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return received.Len() == expected.Len()
	}, "not all bytes were reported")
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, expected.String(), received.String())
}

func TestServer_ConcurrentClientsNoLoss(t *testing.T) {
	const clients, messages = 5, 20

	var mu sync.Mutex
	received := map[uint64][]byte{}
	s := startServer(t, WithSink(func(m queue.Message) {
		mu.Lock()
		received[m.ClientID] = append(received[m.ClientID], m.Payload...)
		mu.Unlock()
	}))
	defer s.Shutdown(time.Second)
	addr := s.Addr().String()

	expected := make([]string, 0, clients)
	expectedTotal := 0
	for i := 0; i < clients; i++ {
		full := strings.Builder{}
		for j := 0; j < messages; j++ {
			full.WriteString(fmt.Sprintf("client-%d-message-%02d;", i, j))
		}
		expected = append(expected, full.String())
		expectedTotal += full.Len()
	}

	wg := sync.WaitGroup{}
	for i := 0; i < clients; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			conn, err := net.Dial("tcp", addr)
			if err != nil {
				t.Error("dial:", err)
				return
			}
			defer conn.Close()
			for j := 0; j < messages; j++ {
				if _, err := fmt.Fprintf(conn, "client-%d-message-%02d;", i, j); err != nil {
					t.Error("write:", err)
					return
				}
			}
		}(i)
	}
	wg.Wait()

	waitFor(t, 5*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		total := 0
		for _, b := range received {
			total += len(b)
		}
		return total == expectedTotal
	}, "not all bytes were reported")

	mu.Lock()
	defer mu.Unlock()
	streams := make([]string, 0, len(received))
	for _, b := range received {
		streams = append(streams, string(b))
	}
	// no loss, no duplication, no cross-connection interleaving
	assert.ElementsMatch(t, expected, streams)
}

func TestServer_PeerCloseClearsRegistry(t *testing.T) {
	sink := make(chan queue.Message, 1)
	s := startServer(t, WithSink(func(m queue.Message) { sink <- m }))
	defer s.Shutdown(time.Second)

	conn, err := net.Dial("tcp", s.Addr().String())
	require.NoError(t, err)
	_, err = conn.Write([]byte("bye\n"))
	require.NoError(t, err)
	receive(t, sink, time.Second)
	assert.Equal(t, 1, s.CountActive())

	conn.Close()
	waitFor(t, 2*time.Second, func() bool { return s.CountActive() == 0 }, "registry entry was not removed")
}

func TestServer_RefusesOverLimit(t *testing.T) {
	s := startServer(t, WithMaxClients(1))
	defer s.Shutdown(time.Second)
	addr := s.Addr().String()

	first, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer first.Close()
	waitFor(t, 2*time.Second, func() bool { return s.CountActive() == 1 }, "first client was not registered")

	second, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer second.Close()
	require.NoError(t, second.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, err = second.Read(make([]byte, 1))
	assert.ErrorIs(t, err, io.EOF, "over-limit connection was not closed")

	waitFor(t, 2*time.Second, func() bool { return s.CountRefused() == 1 }, "refusal was not counted")
	assert.Equal(t, uint64(1), s.CountServed())
	assert.Equal(t, 1, s.CountActive())
}

func TestServer_ShutdownAndRestart(t *testing.T) {
	sink := make(chan queue.Message, 16)
	s := startServer(t, WithSink(func(m queue.Message) { sink <- m }))
	addr := s.Addr().String()

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	_, err = conn.Write([]byte("before\n"))
	require.NoError(t, err)
	receive(t, sink, time.Second)

	s.Shutdown(2 * time.Second)
	conn.Close()
	assert.Equal(t, StateStopped, s.State())
	assert.Equal(t, 0, s.CountActive())

	require.NoError(t, s.Restart())
	assert.Equal(t, StateListening, s.State())
	assert.Equal(t, addr, s.Addr().String(), "restart changed the port")
	assert.Equal(t, 0, s.queue.Len(), "restart kept a non-empty queue")
	go s.AcceptLoop()

	conn, err = net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()
	_, err = conn.Write([]byte("after\n"))
	require.NoError(t, err)
	m := receive(t, sink, time.Second)
	assert.Equal(t, "after\n", string(m.Payload))

	s.Shutdown(2 * time.Second)
	assert.Equal(t, StateStopped, s.State())
}

// blockingSink - records reported client ids and holds the consumer
// inside every sink call until gate is closed. Lets a test pin messages
// in the queue while the consumer is busy with the first one.
func blockingSink(gate <-chan struct{}) (sink func(queue.Message), entered <-chan struct{}, reported func() []uint64) {
	var mu sync.Mutex
	var ids []uint64
	in := make(chan struct{}, 1)
	return func(m queue.Message) {
			mu.Lock()
			ids = append(ids, m.ClientID)
			mu.Unlock()
			select {
			case in <- struct{}{}:
			default:
			}
			<-gate
		},
		in,
		func() []uint64 {
			mu.Lock()
			defer mu.Unlock()
			return append([]uint64{}, ids...)
		}
}

func TestServer_DrainOnStop(t *testing.T) {
	gate := make(chan struct{})
	sink, entered, reported := blockingSink(gate)
	s := startServer(t, WithSink(sink), WithStopPolicy(DrainOnStop))

	require.NoError(t, s.queue.Enqueue(queue.Message{ClientID: 1, Payload: []byte("one\n")}))
	select {
	case <-entered:
	case <-time.After(time.Second):
		t.Fatal("consumer did not pick the first message")
	}
	// the consumer is held inside the sink, these stay queued
	require.NoError(t, s.queue.Enqueue(queue.Message{ClientID: 2, Payload: []byte("two\n")}))
	require.NoError(t, s.queue.Enqueue(queue.Message{ClientID: 3, Payload: []byte("three\n")}))

	close(gate)
	s.Shutdown(2 * time.Second)

	assert.Equal(t, StateStopped, s.State())
	assert.Equal(t, []uint64{1, 2, 3}, reported(), "queued messages were not drained on shutdown")
}

func TestServer_DiscardOnStop(t *testing.T) {
	gate := make(chan struct{})
	sink, entered, reported := blockingSink(gate)
	s := startServer(t, WithSink(sink), WithStopPolicy(DiscardOnStop))

	require.NoError(t, s.queue.Enqueue(queue.Message{ClientID: 1, Payload: []byte("one\n")}))
	select {
	case <-entered:
	case <-time.After(time.Second):
		t.Fatal("consumer did not pick the first message")
	}
	require.NoError(t, s.queue.Enqueue(queue.Message{ClientID: 2, Payload: []byte("two\n")}))
	require.NoError(t, s.queue.Enqueue(queue.Message{ClientID: 3, Payload: []byte("three\n")}))

	stopped := make(chan time.Duration, 1)
	go func() {
		stopped <- s.Shutdown(2 * time.Second)
	}()
	// shutdown must throw the queued messages away before the consumer
	// is released
	waitFor(t, 2*time.Second, func() bool { return s.queue.Len() == 0 }, "queue was not discarded")
	close(gate)
	select {
	case <-stopped:
	case <-time.After(3 * time.Second):
		t.Fatal("shutdown did not finish")
	}

	assert.Equal(t, StateStopped, s.State())
	assert.Equal(t, []uint64{1}, reported(), "discarded messages were reported")
}

func TestServer_LifecycleStateErrors(t *testing.T) {
	s, err := New(0, WithOutput(io.Discard))
	require.NoError(t, err)
	assert.Equal(t, StateCreated, s.State())

	err = s.Listen()
	listenErr := &ListenError{}
	require.ErrorAs(t, err, &listenErr)
	assert.ErrorIs(t, err, ErrInvalidState)

	assert.ErrorIs(t, s.Restart(), ErrInvalidState)
	assert.ErrorIs(t, s.AcceptLoop(), ErrInvalidState)
	assert.Equal(t, time.Duration(0), s.Shutdown(time.Second))

	require.NoError(t, s.Bind())
	assert.Equal(t, StateBound, s.State())

	err = s.Bind()
	bindErr := &BindError{}
	require.ErrorAs(t, err, &bindErr)
	assert.ErrorIs(t, err, ErrInvalidState)

	require.NoError(t, s.Listen())
	assert.ErrorIs(t, s.Listen(), ErrInvalidState)

	s.Shutdown(time.Second)
	assert.Equal(t, StateStopped, s.State())
}

func TestServer_BindErrorWhenPortInUse(t *testing.T) {
	occupant, err := New(0, WithAddress("127.0.0.1"), WithOutput(io.Discard))
	require.NoError(t, err)
	require.NoError(t, occupant.Bind())
	defer occupant.Shutdown(time.Second)
	port := uint(occupant.Addr().(*net.TCPAddr).Port)

	s, err := New(port, WithAddress("127.0.0.1"), WithOutput(io.Discard))
	require.NoError(t, err)
	err = s.Bind()
	bindErr := &BindError{}
	require.ErrorAs(t, err, &bindErr)
	assert.Equal(t, port, bindErr.Port)
	assert.False(t, errors.Is(err, ErrInvalidState), "OS-level failure was reported as a state error")
	assert.Equal(t, StateCreated, s.State())
}

func TestNew_InvalidOptions(t *testing.T) {
	invalid := []serverOption{
		WithMaxClients(0),
		WithQueueCapacity(-1),
		WithQueuePolicy(queue.Policy(9)),
		WithStopPolicy(StopPolicy(9)),
		WithReadBufferSize(0),
		WithTailSize(0),
		WithOutput(nil),
		WithSink(nil),
	}
	for i, option := range invalid {
		if _, err := New(0, option); err == nil {
			t.Error("option", i, "was accepted, expected error")
		}
	}
}
