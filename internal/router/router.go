package router

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/agentwire/agentwire/internal/errors"
	"github.com/agentwire/agentwire/internal/message"
)

const (
	// DefaultQueueSize is the conversation queue capacity.
	DefaultQueueSize = 64

	// DefaultHandlerTimeout is the inbound request handling deadline.
	DefaultHandlerTimeout = 60 * time.Second
)

// Transport is the minimal surface the router needs. Satisfied by
// process.Handle and by in-package mocks.
type Transport interface {
	ReadMessages(ctx context.Context) (<-chan []byte, <-chan error)
	SendMessage(ctx context.Context, data []byte) error
}

// Item is one entry on the conversation queue: a decoded message or an
// error. A terminal error is the last item before the queue closes.
type Item struct {
	Message message.Message
	Err     error
}

// Config tunes a Router.
type Config struct {
	// QueueSize is the conversation queue capacity. Zero uses the default.
	QueueSize int

	// HandlerTimeout is the default inbound handling deadline. Zero uses
	// the default.
	HandlerTimeout time.Duration
}

// Router multiplexes the agent's stdout stream: control responses resolve
// pending requests, control requests dispatch to registered handlers, and
// conversation messages flow to the queue in arrival order.
type Router struct {
	log       *slog.Logger
	transport Transport

	state atomic.Int32

	handlerTimeout time.Duration

	pendingMu sync.Mutex
	pending   map[string]*pendingRequest

	inFlightMu sync.Mutex
	inFlight   map[string]*inFlightOp

	handlersMu sync.RWMutex
	handlers   map[string]registration

	conversation chan Item

	errMu    sync.RWMutex
	fatalErr error

	closeOnce   sync.Once
	done        chan struct{}
	closingOnce sync.Once
	closing     chan struct{}
	wg          sync.WaitGroup
}

// pendingRequest is the single-resolution slot for an outbound request.
// The channel has capacity 1 and is claimed under pendingMu, so each id
// resolves at most once.
type pendingRequest struct {
	subtype  string
	response chan *Response
}

// inFlightOp tracks one inbound request being handled. reply guards the
// wire so exactly one response goes out per request id.
type inFlightOp struct {
	subtype   string
	cancel    context.CancelFunc
	completed bool
	reply     sync.Once
}

// registration pairs a handler with its optional deadline resolver.
type registration struct {
	handler HandlerFunc
	timeout TimeoutFunc
}

// New creates a Router. The transport must be started before Start.
func New(log *slog.Logger, transport Transport, cfg Config) *Router {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}

	if cfg.HandlerTimeout <= 0 {
		cfg.HandlerTimeout = DefaultHandlerTimeout
	}

	return &Router{
		log:            log.With("component", "router"),
		transport:      transport,
		handlerTimeout: cfg.HandlerTimeout,
		pending:        make(map[string]*pendingRequest, 10),
		inFlight:       make(map[string]*inFlightOp, 10),
		handlers:       make(map[string]registration, 10),
		conversation:   make(chan Item, cfg.QueueSize),
		done:           make(chan struct{}),
		closing:        make(chan struct{}),
	}
}

// State returns the current lifecycle phase.
func (r *Router) State() State {
	return State(r.state.Load())
}

// advance moves the state forward. Backward transitions are refused so a
// Closed router stays closed.
func (r *Router) advance(to State) bool {
	for {
		cur := r.state.Load()
		if State(cur) >= to {
			return false
		}

		if r.state.CompareAndSwap(cur, int32(to)) {
			r.log.Debug("Router state transition", "from", State(cur).String(), "to", to.String())

			return true
		}
	}
}

// MarkActive records a completed initialize handshake.
func (r *Router) MarkActive() { r.advance(StateActive) }

// MarkDraining records end of input; output continues until the process
// exits.
func (r *Router) MarkDraining() { r.advance(StateDraining) }

func (r *Router) closeDone() {
	r.closeOnce.Do(func() { close(r.done) })
}

// Done returns a channel closed when the router stops.
func (r *Router) Done() <-chan struct{} { return r.done }

// FatalError returns the terminal error, if any.
func (r *Router) FatalError() error {
	r.errMu.RLock()
	defer r.errMu.RUnlock()

	return r.fatalErr
}

// Conversation returns the ordered conversation queue. The channel closes
// after the terminal item (if any) is delivered.
func (r *Router) Conversation() <-chan Item { return r.conversation }

// Start begins reading from the transport and routing messages.
func (r *Router) Start(ctx context.Context) error {
	if !r.advance(StateConnecting) {
		return errors.ErrRouterClosed
	}

	r.log.Debug("Starting router")

	lines, errs := r.transport.ReadMessages(ctx)

	r.wg.Add(1)

	go r.readLoop(ctx, lines, errs)

	r.log.Info("Router started")

	return nil
}

// Close shuts the router down: pending requests resolve with the fatal
// error (or ErrRouterClosed), in-flight handlers are cancelled, and the
// read loop is awaited. Safe to call more than once.
func (r *Router) Close() {
	r.log.Debug("Stopping router")

	r.advance(StateClosed)
	r.closeDone()
	r.closingOnce.Do(func() { close(r.closing) })
	r.cancelAllInFlight()
	r.wg.Wait()
	r.log.Info("Router stopped")
}

// RegisterHandler registers a handler for inbound requests of the given
// subtype. A second registration for the same subtype replaces the first.
func (r *Router) RegisterHandler(subtype string, handler HandlerFunc) {
	r.RegisterHandlerWithTimeout(subtype, handler, nil)
}

// RegisterHandlerWithTimeout registers a handler with a per-request
// deadline resolver. A nil resolver (or a zero duration) falls back to the
// router default.
func (r *Router) RegisterHandlerWithTimeout(subtype string, handler HandlerFunc, timeout TimeoutFunc) {
	r.handlersMu.Lock()
	defer r.handlersMu.Unlock()

	r.log.Debug("Registering control request handler", "subtype", subtype)
	r.handlers[subtype] = registration{handler: handler, timeout: timeout}
}

// SendRequest sends a control request and waits for its response.
//
// A unique correlation id is generated per request. The call resolves when
// the matching response arrives, the timeout expires, the context is
// cancelled, or the router stops.
func (r *Router) SendRequest(
	ctx context.Context,
	subtype string,
	payload map[string]any,
	timeout time.Duration,
) (*Response, error) {
	if r.State() == StateClosed {
		if err := r.FatalError(); err != nil {
			return nil, err
		}

		return nil, errors.ErrRouterClosed
	}

	requestID := ulid.Make().String()

	r.log.Debug("Sending control request", "request_id", requestID, "subtype", subtype)

	pending := &pendingRequest{
		subtype:  subtype,
		response: make(chan *Response, 1),
	}

	r.pendingMu.Lock()
	r.pending[requestID] = pending
	r.pendingMu.Unlock()

	requestPayload := map[string]any{"subtype": subtype}
	maps.Copy(requestPayload, payload)

	req := &Request{
		Type:      "control_request",
		RequestID: requestID,
		Request:   requestPayload,
	}

	data, err := json.Marshal(req)
	if err != nil {
		r.abandonPending(requestID)

		return nil, fmt.Errorf("marshal request: %w", err)
	}

	if err := r.transport.SendMessage(ctx, data); err != nil {
		r.abandonPending(requestID)
		r.log.Error("Failed to send control request", "request_id", requestID, "error", err)

		return nil, fmt.Errorf("send request: %w", err)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case resp := <-pending.response:
		if resp.IsError() {
			errMsg := resp.ErrorMessage()
			r.log.Warn("Control request returned error", "request_id", requestID, "error", errMsg)

			return nil, fmt.Errorf("request error: %s", errMsg)
		}

		r.log.Debug("Received control response", "request_id", requestID)

		return resp, nil

	case <-r.done:
		r.abandonPending(requestID)

		if err := r.FatalError(); err != nil {
			r.log.Warn("Router failed during request", "request_id", requestID, "error", err)

			return nil, err
		}

		r.log.Debug("Router stopped during request", "request_id", requestID)

		return nil, errors.ErrRouterClosed

	case <-timer.C:
		r.abandonPending(requestID)
		r.log.Warn("Control request timed out", "request_id", requestID, "timeout", timeout)

		return nil, fmt.Errorf("%w after %s", errors.ErrRequestTimeout, timeout)

	case <-ctx.Done():
		r.abandonPending(requestID)
		r.log.Debug("Control request cancelled", "request_id", requestID)

		return nil, ctx.Err()
	}
}

// abandonPending removes a pending slot when the waiter gives up.
func (r *Router) abandonPending(requestID string) {
	r.pendingMu.Lock()
	delete(r.pending, requestID)
	r.pendingMu.Unlock()
}

// readLoop consumes raw lines and transport errors until either channel
// closes or a terminal error occurs.
func (r *Router) readLoop(ctx context.Context, lines <-chan []byte, errs <-chan error) {
	defer r.wg.Done()
	defer close(r.conversation)
	defer r.advance(StateClosed)
	defer r.closeDone()
	defer r.log.Debug("Router read loop stopped")

	for {
		select {
		case line, ok := <-lines:
			if !ok {
				r.log.Debug("Line channel closed")

				return
			}

			if terminal := r.route(ctx, line); terminal {
				return
			}

		case err, ok := <-errs:
			if !ok {
				r.log.Debug("Error channel closed")

				return
			}

			if err != nil {
				r.log.Debug("Transport error", "error", err)
				r.terminate(ctx, err)

				return
			}

		case <-r.done:
			r.log.Debug("Router stop signal received")

			return

		case <-ctx.Done():
			r.log.Debug("Context cancelled in router read loop")

			return
		}
	}
}

// route classifies one line by its type field and dispatches it. Returns
// true when the line was unparseable, which is terminal for the session.
func (r *Router) route(ctx context.Context, line []byte) bool {
	var env struct {
		Type string `json:"type"`
	}

	if err := json.Unmarshal(line, &env); err != nil {
		perr := &errors.ProtocolError{RawLine: string(line), Err: err}
		r.log.Error("Unparseable line from agent", "error", err)
		r.terminate(ctx, perr)

		return true
	}

	switch env.Type {
	case "control_response":
		r.resolvePending(line)

	case "control_request":
		r.dispatchInbound(ctx, line)

	case "control_cancel_request":
		r.handleCancel(ctx, line)

	default:
		r.deliverConversation(ctx, line)
	}

	return false
}

// terminate records the fatal error, force-resolves all pending requests,
// and delivers the terminal item before the queue closes.
func (r *Router) terminate(ctx context.Context, err error) {
	r.errMu.Lock()

	if r.fatalErr == nil {
		r.fatalErr = err
	}

	r.errMu.Unlock()

	r.advance(StateClosed)

	// Waking done resolves every pending SendRequest with the fatal error.
	r.closeDone()
	r.cancelAllInFlight()

	// The send may not block forever: Close() may already have detached
	// the consumer.
	select {
	case r.conversation <- Item{Err: err}:
	case <-r.closing:
	case <-ctx.Done():
	}
}

// deliverConversation decodes a conversation message and queues it,
// blocking for backpressure when the queue is full. Unknown message types
// are skipped; decode failures are delivered as non-terminal errors.
func (r *Router) deliverConversation(ctx context.Context, line []byte) {
	item := Item{}

	msg, err := message.Decode(r.log, line)

	switch {
	case stderrors.Is(err, errors.ErrUnknownMessageType):
		return
	case err != nil:
		item.Err = err
	default:
		item.Message = msg
	}

	select {
	case r.conversation <- item:
	case <-r.done:
	case <-ctx.Done():
	}
}

// resolvePending claims the pending slot for a response and resolves it.
// A response with no pending slot (already resolved, timed out, or never
// sent) is a logged no-op.
func (r *Router) resolvePending(line []byte) {
	var resp Response
	if err := json.Unmarshal(line, &resp); err != nil {
		r.log.Warn("Malformed control response", "error", err)

		return
	}

	requestID := resp.RequestID()
	if requestID == "" {
		r.log.Warn("Control response missing request_id")

		return
	}

	r.pendingMu.Lock()

	pending, exists := r.pending[requestID]
	if exists {
		delete(r.pending, requestID)
	}

	r.pendingMu.Unlock()

	if !exists {
		r.log.Warn("No pending request for control response", "request_id", requestID)

		return
	}

	r.log.Debug("Resolving pending request",
		"request_id", requestID, "subtype", pending.subtype)

	// Claimed above; the buffered channel makes this send non-blocking.
	pending.response <- &resp
}

// dispatchInbound runs the registered handler for an agent-originated
// request on its own goroutine. Exactly one response goes out per request
// id: normal completion, handler error, cancellation, and deadline expiry
// all funnel through the op's reply guard.
func (r *Router) dispatchInbound(ctx context.Context, line []byte) {
	var req Request
	if err := json.Unmarshal(line, &req); err != nil {
		r.log.Warn("Malformed control request", "error", err)

		return
	}

	if req.RequestID == "" {
		r.log.Warn("Control request missing request_id")

		return
	}

	subtype := req.Subtype()

	r.log.Debug("Received control request from agent",
		"request_id", req.RequestID, "subtype", subtype)

	r.handlersMu.RLock()
	reg, exists := r.handlers[subtype]
	r.handlersMu.RUnlock()

	if !exists {
		r.log.Warn("No handler registered for control request subtype", "subtype", subtype)
		r.writeErrorResponse(ctx, req.RequestID, "no handler registered")

		return
	}

	deadline := r.handlerTimeout
	if reg.timeout != nil {
		if d := reg.timeout(&req); d > 0 {
			deadline = d
		}
	}

	opCtx, cancel := context.WithTimeout(ctx, deadline)

	op := &inFlightOp{subtype: subtype, cancel: cancel}

	r.inFlightMu.Lock()
	r.inFlight[req.RequestID] = op
	r.inFlightMu.Unlock()

	// Handler runs off the read loop so cancel requests stay routable.
	r.wg.Go(func() {
		defer func() {
			r.inFlightMu.Lock()
			op.completed = true
			delete(r.inFlight, req.RequestID)
			r.inFlightMu.Unlock()

			cancel()
		}()

		type handlerResult struct {
			payload map[string]any
			err     error
		}

		result := make(chan handlerResult, 1)

		go func() {
			payload, err := reg.handler(opCtx, &req)
			result <- handlerResult{payload: payload, err: err}
		}()

		select {
		case res := <-result:
			if res.err != nil {
				r.log.Warn("Handler returned error",
					"request_id", req.RequestID, "error", res.err.Error())
				op.reply.Do(func() {
					r.writeErrorResponse(ctx, req.RequestID, res.err.Error())
				})

				return
			}

			op.reply.Do(func() {
				r.writeSuccessResponse(ctx, req.RequestID, res.payload)
			})

		case <-opCtx.Done():
			msg := errors.ErrOperationCancelled.Error()

			if opCtx.Err() == context.DeadlineExceeded {
				msg = errors.ErrHandlerTimeout.Error()
				r.log.Warn("Handler deadline expired",
					"request_id", req.RequestID, "subtype", subtype, "timeout", deadline)
			} else {
				r.log.Debug("Handler was cancelled", "request_id", req.RequestID)
			}

			op.reply.Do(func() {
				r.writeErrorResponse(ctx, req.RequestID, msg)
			})
		}
	})
}

func (r *Router) writeSuccessResponse(ctx context.Context, requestID string, payload map[string]any) {
	resp := &Response{
		Type: "control_response",
		Response: map[string]any{
			"subtype":    "success",
			"request_id": requestID,
			"response":   payload,
		},
	}

	data, err := json.Marshal(resp)
	if err != nil {
		r.log.Error("Failed to marshal control response", "error", err)

		return
	}

	if err := r.transport.SendMessage(ctx, data); err != nil {
		r.log.Error("Failed to send control response", "error", err)
	}
}

func (r *Router) writeErrorResponse(ctx context.Context, requestID, errMsg string) {
	resp := &Response{
		Type: "control_response",
		Response: map[string]any{
			"subtype":    "error",
			"request_id": requestID,
			"error":      errMsg,
		},
	}

	data, err := json.Marshal(resp)
	if err != nil {
		r.log.Error("Failed to marshal error response", "error", err)

		return
	}

	if err := r.transport.SendMessage(ctx, data); err != nil {
		if ctx.Err() != nil {
			r.log.Debug("Could not send error response during shutdown", "error", err)

			return
		}

		r.log.Error("Failed to send error response", "error", err)
	}
}

// handleCancel cancels the named in-flight operation and acknowledges it
// either way.
func (r *Router) handleCancel(ctx context.Context, line []byte) {
	var cancelReq CancelRequest
	if err := json.Unmarshal(line, &cancelReq); err != nil {
		r.log.Warn("Malformed cancel request", "error", err)

		return
	}

	if cancelReq.RequestID == "" {
		r.log.Warn("Cancel request missing request_id")

		return
	}

	r.log.Debug("Received cancel request", "request_id", cancelReq.RequestID)

	r.inFlightMu.Lock()

	op, exists := r.inFlight[cancelReq.RequestID]
	if !exists {
		r.inFlightMu.Unlock()
		r.log.Debug("Cancel request for unknown operation", "request_id", cancelReq.RequestID)
		r.writeCancelAck(ctx, cancelReq.RequestID, false, false)

		return
	}

	alreadyCompleted := op.completed
	if !alreadyCompleted {
		op.cancel()
	}

	r.inFlightMu.Unlock()

	r.log.Debug("Cancel request processed",
		"request_id", cancelReq.RequestID,
		"already_completed", alreadyCompleted,
	)

	r.writeCancelAck(ctx, cancelReq.RequestID, true, alreadyCompleted)
}

func (r *Router) writeCancelAck(ctx context.Context, requestID string, found, alreadyCompleted bool) {
	resp := &Response{
		Type: "control_response",
		Response: map[string]any{
			"subtype":           "cancel_acknowledgment",
			"request_id":        requestID,
			"found":             found,
			"already_completed": alreadyCompleted,
		},
	}

	data, err := json.Marshal(resp)
	if err != nil {
		r.log.Error("Failed to marshal cancel acknowledgment", "error", err)

		return
	}

	if err := r.transport.SendMessage(ctx, data); err != nil {
		r.log.Error("Failed to send cancel acknowledgment", "error", err)
	}
}

// cancelAllInFlight cancels every in-flight handler during shutdown.
func (r *Router) cancelAllInFlight() {
	r.inFlightMu.Lock()
	defer r.inFlightMu.Unlock()

	for _, op := range r.inFlight {
		if !op.completed {
			op.cancel()
		}
	}
}
