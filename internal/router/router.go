package router

import (
	"context"
	"log/slog"
	"sync"

	"github.com/bidflow/auction-client/internal/connection"
)

// Router classifies raw room messages and routes them to per-kind buffers.
type Router interface {
	// Start begins routing messages from the input channel.
	Start(ctx context.Context) error

	// Stop shuts down the router and closes its buffers.
	Stop(ctx context.Context) error

	// Buffers returns output buffers for writers to consume.
	Buffers() RouterBuffers

	// Stats returns current router statistics.
	Stats() RouterStats
}

// RouterBuffers provides access to output buffers.
type RouterBuffers struct {
	Bid         *GrowableBuffer[Event]
	Participant *GrowableBuffer[Event]
	End         *GrowableBuffer[Event]
	Rejected    *GrowableBuffer[Event]
}

// RouterStats contains runtime statistics.
type RouterStats struct {
	MessagesReceived  int64
	EventsRouted      int64
	ParseErrors       int64
	UnknownMessages   int64
	BidBuffer         BufferStats
	ParticipantBuffer BufferStats
	EndBuffer         BufferStats
	RejectedBuffer    BufferStats
}

type router struct {
	cfg    RouterConfig
	logger *slog.Logger

	input <-chan connection.Message

	bidBuf         *GrowableBuffer[Event]
	participantBuf *GrowableBuffer[Event]
	endBuf         *GrowableBuffer[Event]
	rejectedBuf    *GrowableBuffer[Event]

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.RWMutex
	received    int64
	routed      int64
	parseErrors int64
	unknown     int64
}

// NewRouter creates a router reading from input.
func NewRouter(cfg RouterConfig, input <-chan connection.Message, logger *slog.Logger) Router {
	if logger == nil {
		logger = slog.Default()
	}

	return &router{
		cfg:            cfg,
		logger:         logger,
		input:          input,
		bidBuf:         NewGrowableBuffer[Event](cfg.BidBufferSize),
		participantBuf: NewGrowableBuffer[Event](cfg.ParticipantBufferSize),
		endBuf:         NewGrowableBuffer[Event](cfg.EndBufferSize),
		rejectedBuf:    NewGrowableBuffer[Event](cfg.RejectedBufferSize),
	}
}

// Start begins routing messages.
func (r *router) Start(ctx context.Context) error {
	r.ctx, r.cancel = context.WithCancel(ctx)

	r.wg.Add(1)
	go r.routeLoop()

	r.logger.Info("message router started",
		"bid_buffer", r.cfg.BidBufferSize,
		"participant_buffer", r.cfg.ParticipantBufferSize,
	)
	return nil
}

// Stop shuts down the router. Buffers are closed after the routing goroutine
// exits, so writers still drain what was routed.
func (r *router) Stop(ctx context.Context) error {
	r.logger.Info("stopping message router")

	if r.cancel != nil {
		r.cancel()
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("message router stopped")
	case <-ctx.Done():
		r.logger.Warn("message router stop timed out")
	}

	r.bidBuf.Close()
	r.participantBuf.Close()
	r.endBuf.Close()
	r.rejectedBuf.Close()

	return nil
}

// Buffers returns output buffers.
func (r *router) Buffers() RouterBuffers {
	return RouterBuffers{
		Bid:         r.bidBuf,
		Participant: r.participantBuf,
		End:         r.endBuf,
		Rejected:    r.rejectedBuf,
	}
}

// Stats returns current statistics.
func (r *router) Stats() RouterStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return RouterStats{
		MessagesReceived:  r.received,
		EventsRouted:      r.routed,
		ParseErrors:       r.parseErrors,
		UnknownMessages:   r.unknown,
		BidBuffer:         r.bidBuf.Stats(),
		ParticipantBuffer: r.participantBuf.Stats(),
		EndBuffer:         r.endBuf.Stats(),
		RejectedBuffer:    r.rejectedBuf.Stats(),
	}
}

func (r *router) routeLoop() {
	defer r.wg.Done()

	for {
		select {
		case <-r.ctx.Done():
			r.drain()
			return
		case msg, ok := <-r.input:
			if !ok {
				r.logger.Info("input channel closed")
				return
			}
			r.route(msg)
		}
	}
}

// drain routes messages already queued on the input without waiting for more.
func (r *router) drain() {
	for {
		select {
		case msg, ok := <-r.input:
			if !ok {
				return
			}
			r.route(msg)
		default:
			return
		}
	}
}

// route classifies one message and sends each event to its buffer.
func (r *router) route(msg connection.Message) {
	r.mu.Lock()
	r.received++
	r.mu.Unlock()

	events, err := ClassifyMessage(msg.Body, msg.Destination, msg.ReceivedAt)
	if err != nil {
		r.logger.Warn("failed to classify room message",
			"destination", msg.Destination,
			"error", err,
		)
		r.mu.Lock()
		r.parseErrors++
		r.mu.Unlock()
		return
	}

	if len(events) == 0 {
		r.logger.Debug("skipping unrecognised room message", "destination", msg.Destination)
		r.mu.Lock()
		r.unknown++
		r.mu.Unlock()
		return
	}

	var routed int64
	for _, ev := range events {
		if r.bufferFor(ev.Kind).Send(ev) {
			routed++
		}
	}

	r.mu.Lock()
	r.routed += routed
	r.mu.Unlock()
}

func (r *router) bufferFor(kind Kind) *GrowableBuffer[Event] {
	switch kind {
	case KindParticipant:
		return r.participantBuf
	case KindEnd:
		return r.endBuf
	case KindRejected:
		return r.rejectedBuf
	default:
		return r.bidBuf
	}
}
