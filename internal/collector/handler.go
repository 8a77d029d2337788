package collector

import (
	"errors"
	"io"
	"net"

	"github.com/rs/zerolog"

	"github.com/wtask/collector/internal/collector/queue"
)

// handler - owns a single client connection and feeds the shared queue.
// The handler holds everything it needs by value or by owned reference,
// its lifetime is tied to the goroutine running it.
type handler struct {
	id      uint64
	conn    net.Conn
	queue   *queue.Queue
	bufSize int
	logger  zerolog.Logger
	done    chan struct{}
}

func newHandler(id uint64, conn net.Conn, q *queue.Queue, bufSize int, logger zerolog.Logger) *handler {
	return &handler{
		id:      id,
		conn:    conn,
		queue:   q,
		bufSize: bufSize,
		logger:  logger.With().Uint64("client", id).Logger(),
		done:    make(chan struct{}),
	}
}

// run - reads the connection until EOF or error, pushing every
// non-empty chunk into the queue as one message. No lock is held during
// the blocking read. Closes the connection before returning.
func (h *handler) run() {
	defer h.conn.Close()
	buf := make([]byte, h.bufSize)
	for {
		n, err := h.conn.Read(buf)
		if n > 0 {
			payload := make([]byte, n)
			copy(payload, buf[:n])
			if qErr := h.queue.Enqueue(queue.Message{ClientID: h.id, Payload: payload}); qErr != nil {
				if errors.Is(qErr, queue.ErrQueueClosed) {
					h.logger.Debug().Msg("queue closed, stop reading")
					return
				}
				// PolicyReject overflow, the chunk is dropped but the
				// connection stays up
				h.logger.Warn().Int("size", n).Msg("queue is full, chunk dropped")
			}
		}
		if err != nil {
			if err != io.EOF {
				h.logger.Debug().Err(err).Msg("read finished")
			}
			h.logger.Info().Msg("client disconnected")
			return
		}
	}
}

// stop - forces the blocking read to fail so run can finish.
func (h *handler) stop() {
	h.conn.Close()
}

// wait - blocks until the handler has fully terminated and was removed
// from the registry.
func (h *handler) wait() {
	<-h.done
}
