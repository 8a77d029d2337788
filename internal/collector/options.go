package collector

import (
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/wtask/collector/internal/collector/queue"
)

type serverOption func(s *Server) error

func setup(s *Server, options ...serverOption) error {
	if s == nil {
		return nil
	}
	for _, option := range options {
		if option == nil {
			continue
		}
		if err := option(s); err != nil {
			return err
		}
	}
	return nil
}

// WithAddress - overwrites default listening address (all interfaces).
func WithAddress(ip string) serverOption {
	return func(s *Server) error {
		s.address = ip
		return nil
	}
}

// WithLogger - attach logger to follow server events.
// Without this option the server stays silent.
func WithLogger(logger zerolog.Logger) serverOption {
	return func(s *Server) error {
		s.logger = logger
		return nil
	}
}

// WithMaxClients - overwrites default limit of concurrently served
// connections. Connections over the limit are closed at accept time,
// never queued.
func WithMaxClients(max int) serverOption {
	return func(s *Server) error {
		if max <= 0 {
			return fmt.Errorf("collector.WithMaxClients: invalid limit (%d)", max)
		}
		s.maxClients = max
		return nil
	}
}

// WithQueueCapacity - overwrites default capacity of the shared message
// queue.
func WithQueueCapacity(capacity int) serverOption {
	return func(s *Server) error {
		if capacity <= 0 {
			return fmt.Errorf("collector.WithQueueCapacity: invalid capacity (%d)", capacity)
		}
		s.queueCapacity = capacity
		return nil
	}
}

// WithQueuePolicy - overwrites default overflow policy (block) of the
// shared message queue.
func WithQueuePolicy(policy queue.Policy) serverOption {
	return func(s *Server) error {
		switch policy {
		case queue.PolicyBlock, queue.PolicyDropOldest, queue.PolicyReject:
			s.queuePolicy = policy
			return nil
		default:
			return fmt.Errorf("collector.WithQueuePolicy: unknown policy (%d)", policy)
		}
	}
}

// WithStopPolicy - decides the fate of still queued messages on
// shutdown: report them (DrainOnStop) or throw away (DiscardOnStop).
func WithStopPolicy(policy StopPolicy) serverOption {
	return func(s *Server) error {
		switch policy {
		case DrainOnStop, DiscardOnStop:
			s.stopPolicy = policy
			return nil
		default:
			return fmt.Errorf("collector.WithStopPolicy: unknown policy (%d)", policy)
		}
	}
}

// WithReadBufferSize - overwrites default size of the per-connection
// read buffer. Every successful read of up to this size becomes exactly
// one queued message.
func WithReadBufferSize(size int) serverOption {
	return func(s *Server) error {
		if size <= 0 {
			return fmt.Errorf("collector.WithReadBufferSize: invalid size (%d)", size)
		}
		s.readBufSize = size
		return nil
	}
}

// WithOutput - overwrites destination for reported messages, stdout by
// default. The writer is used by the single consumer only.
func WithOutput(out io.Writer) serverOption {
	return func(s *Server) error {
		if out == nil {
			return errors.New("collector.WithOutput: writer is nil")
		}
		s.out = out
		return nil
	}
}

// WithSink - attach func to observe every drained message right after
// it was reported.
func WithSink(sink func(queue.Message)) serverOption {
	return func(s *Server) error {
		if sink == nil {
			return errors.New("collector.WithSink: sink is nil")
		}
		s.sink = sink
		return nil
	}
}

// WithTailSize - overwrites default number of recently reported lines
// kept for inspection.
func WithTailSize(size int) serverOption {
	return func(s *Server) error {
		if size <= 0 {
			return fmt.Errorf("collector.WithTailSize: invalid size (%d)", size)
		}
		s.tailSize = size
		return nil
	}
}
