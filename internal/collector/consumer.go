package collector

import (
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"

	"github.com/wtask/collector/internal/collector/queue"
	"github.com/wtask/collector/internal/collector/tail"
)

// StopPolicy - decides the fate of messages still queued at shutdown.
type StopPolicy int

const (
	// DrainOnStop - remaining messages are reported before the consumer
	// terminates.
	DrainOnStop StopPolicy = iota
	// DiscardOnStop - remaining messages are thrown away.
	DiscardOnStop
)

func (p StopPolicy) String() string {
	switch p {
	case DrainOnStop:
		return "drain"
	case DiscardOnStop:
		return "discard"
	default:
		return "unknown policy"
	}
}

// ParseStopPolicy - resolves stop policy from its string representation.
func ParseStopPolicy(s string) (StopPolicy, error) {
	switch s {
	case "drain":
		return DrainOnStop, nil
	case "discard":
		return DiscardOnStop, nil
	default:
		return 0, fmt.Errorf("collector.ParseStopPolicy: unknown policy %q", s)
	}
}

// consumer - the single worker draining the shared queue. Exactly one
// consumer exists per server run, so messages are reported strictly in
// enqueue order.
type consumer struct {
	queue  *queue.Queue
	out    io.Writer
	sink   func(queue.Message)
	recent *tail.Buffer
	logger zerolog.Logger
}

func newConsumer(q *queue.Queue, out io.Writer, sink func(queue.Message), recent *tail.Buffer, logger zerolog.Logger) *consumer {
	return &consumer{
		queue:  q,
		out:    out,
		sink:   sink,
		recent: recent,
		logger: logger,
	}
}

// run - dequeues and reports messages one by one until the queue is
// closed and drained. Dequeue suspends the goroutine while the queue is
// empty, there is no polling.
func (c *consumer) run() {
	for {
		m, err := c.queue.Dequeue()
		if err != nil {
			// queue.ErrQueueClosed, nothing left to report
			c.logger.Debug().Msg("consumer finished")
			return
		}
		c.report(m)
	}
}

func (c *consumer) report(m queue.Message) {
	line := formatMessage(m)
	if _, err := io.WriteString(c.out, line); err != nil {
		c.logger.Error().Err(err).Uint64("client", m.ClientID).Msg("unable to report message")
	}
	c.recent.Push(strings.TrimSuffix(line, "\n"))
	if c.sink != nil {
		c.sink(m)
	}
}
