package stream

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/xrplwatch/valtrack/logging/fields"
	"github.com/xrplwatch/valtrack/monitoring/metrics"
)

// Phase is the connection lifecycle state, exposed for diagnostics.
type Phase int32

const (
	PhaseConnecting Phase = iota
	PhaseOpen
	PhaseClosing
	PhaseClosed
)

func (p Phase) String() string {
	switch p {
	case PhaseConnecting:
		return "connecting"
	case PhaseOpen:
		return "open"
	case PhaseClosing:
		return "closing"
	case PhaseClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ErrHeartbeatTimeout marks a liveness failure, distinct from a remote close.
var ErrHeartbeatTimeout = errors.New("heartbeat timeout: no liveness signal within deadline")

const (
	defaultPingInterval  = 15 * time.Second
	defaultLatencyMargin = 4 * time.Second
	writeTimeout         = 10 * time.Second
	maxMessageSize       = int64(1 << 20)
)

// Options configures one stream connection.
//
// SubscribeManifests stays off by default: upstream nodes deliver revocation
// manifests the decoder chokes on, so the manifests stream must not be
// enabled without re-validating that defect.
type Options struct {
	Address            string
	HeartbeatEnabled   bool
	PingInterval       time.Duration
	LatencyMargin      time.Duration
	SubscribeManifests bool
}

func (o *Options) applyDefaults() {
	if o.PingInterval == 0 {
		o.PingInterval = defaultPingInterval
	}
	if o.LatencyMargin == 0 {
		o.LatencyMargin = defaultLatencyMargin
	}
}

// Callbacks deliver classified events. OnClose fires exactly once per
// connection lifetime, with a nil error for a deliberate local close, a
// *websocket.CloseError for a remote close, or a synthesized error for
// heartbeat and protocol failures.
type Callbacks struct {
	OnValidation func(*ValidationMessage)
	OnManifest   func(*ManifestMessage)
	OnClose      func(error)
}

// Stream owns a single websocket connection to one upstream node. There is no
// reconnection: once closed, a stream is done.
type Stream struct {
	logger *zap.Logger
	id     string
	opts   Options
	cb     Callbacks

	conn *websocket.Conn

	phase       atomic.Int32
	pendingAcks atomic.Int64
	nextReqID   atomic.Uint64

	alive chan struct{}
	done  chan struct{}

	writeMu   sync.Mutex
	closeOnce sync.Once
}

func New(logger *zap.Logger, opts Options, cb Callbacks) *Stream {
	opts.applyDefaults()
	id := uuid.New().String()
	s := &Stream{
		logger: logger.With(fields.Address(opts.Address), fields.ConnectionID(id)),
		id:     id,
		opts:   opts,
		cb:     cb,
		alive:  make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	s.phase.Store(int32(PhaseConnecting))
	return s
}

// ID returns the connection id used in logs.
func (s *Stream) ID() string {
	return s.id
}

// Phase returns the current connection phase.
func (s *Stream) Phase() Phase {
	return Phase(s.phase.Load())
}

// PendingAcks returns the number of subscribe commands not yet acknowledged.
func (s *Stream) PendingAcks() int64 {
	return s.pendingAcks.Load()
}

// Address returns the upstream address this stream is bound to.
func (s *Stream) Address() string {
	return s.opts.Address
}

// Connect dials the upstream node, sends the subscribe handshake and starts
// the read and heartbeat loops. A dial failure is returned directly and does
// not trigger OnClose.
func (s *Stream) Connect() error {
	conn, _, err := websocket.DefaultDialer.Dial(s.opts.Address, nil)
	if err != nil {
		s.phase.Store(int32(PhaseClosed))
		return errors.Wrapf(err, "could not dial %s", s.opts.Address)
	}
	s.conn = conn
	conn.SetReadLimit(maxMessageSize)
	conn.SetPongHandler(func(string) error {
		s.touch()
		return nil
	})

	if err := s.subscribe(); err != nil {
		s.phase.Store(int32(PhaseClosed))
		_ = conn.Close()
		return err
	}
	s.phase.Store(int32(PhaseOpen))
	metrics.ReportStreamOpened()
	s.logger.Info("stream opened")

	go s.readLoop()
	if s.opts.HeartbeatEnabled {
		go s.heartbeatLoop()
	}
	return nil
}

func (s *Stream) subscribe() error {
	streams := []string{"validations"}
	if s.opts.SubscribeManifests {
		streams = append(streams, "manifests")
	}
	req := subscribeRequest{
		ID:      s.nextReqID.Add(1),
		Command: "subscribe",
		Streams: streams,
	}
	if err := s.writeJSON(req); err != nil {
		return errors.Wrap(err, "could not send subscribe command")
	}
	s.pendingAcks.Add(1)
	s.logger.Debug("subscribe command sent", fields.RequestID(req.ID), zap.Strings("streams", streams))
	return nil
}

func (s *Stream) writeJSON(v interface{}) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return s.conn.WriteJSON(v)
}

func (s *Stream) readLoop() {
	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			s.terminate(closeCause(err))
			return
		}
		s.touch()
		s.dispatch(raw)
	}
}

// closeCause keeps remote close codes intact and wraps transport errors.
func closeCause(err error) error {
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		return closeErr
	}
	return errors.Wrap(err, "read failed")
}

func (s *Stream) heartbeatLoop() {
	deadline := s.opts.PingInterval + s.opts.LatencyMargin
	ticker := time.NewTicker(s.opts.PingInterval)
	defer ticker.Stop()
	timer := time.NewTimer(deadline)
	defer timer.Stop()

	for {
		select {
		case <-s.alive:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(deadline)
		case <-timer.C:
			s.logger.Warn("heartbeat deadline expired", fields.Duration(deadline))
			s.terminate(ErrHeartbeatTimeout)
			return
		case <-ticker.C:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				s.logger.Debug("could not send ping", zap.Error(err))
			}
		case <-s.done:
			return
		}
	}
}

// touch records an inbound liveness signal.
func (s *Stream) touch() {
	select {
	case s.alive <- struct{}{}:
	default:
	}
}

func (s *Stream) dispatch(raw []byte) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		s.logger.Warn("could not parse inbound message", zap.Error(err))
		return
	}

	if env.Error != "" {
		// An error reply to one of our commands still settles the ack.
		if env.Type == msgTypeResponse {
			s.pendingAcks.Add(-1)
		}
		if env.Error == errUnknownStream {
			s.terminate(errors.Errorf("fatal server error: %s", env.Error))
			return
		}
		s.logger.Warn("server error", zap.String("error", env.Error), fields.RequestID(env.ID))
		return
	}

	switch env.Type {
	case msgTypeValidation:
		var msg ValidationMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			s.logger.Warn("could not parse validation message", zap.Error(err))
			return
		}
		metrics.ReportStreamInbound(s.opts.Address, msgTypeValidation)
		if s.cb.OnValidation != nil {
			s.cb.OnValidation(&msg)
		}
	case msgTypeManifest:
		var msg ManifestMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			s.logger.Warn("could not parse manifest message", zap.Error(err))
			return
		}
		metrics.ReportStreamInbound(s.opts.Address, msgTypeManifest)
		if s.cb.OnManifest != nil {
			s.cb.OnManifest(&msg)
		}
	case msgTypeResponse:
		s.pendingAcks.Add(-1)
		if env.Status != "" && env.Status != "success" {
			s.logger.Warn("subscribe command rejected", fields.RequestID(env.ID), zap.String("status", env.Status))
		}
	default:
		s.logger.Debug("ignoring message", fields.MessageType(env.Type))
	}
}

// Close performs a deliberate local close: best effort close frame, then
// teardown. OnClose receives a nil error. Closing a stream that never reached
// the open phase is a no-op; OnClose only ever fires for an opened connection.
func (s *Stream) Close() error {
	if Phase(s.phase.Load()) != PhaseOpen {
		// Never opened, or terminate already ran. Either way there is
		// nothing to tear down and no OnClose to deliver.
		if Phase(s.phase.Load()) == PhaseConnecting {
			s.phase.Store(int32(PhaseClosed))
		}
		return nil
	}
	s.writeMu.Lock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	_ = s.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	s.writeMu.Unlock()
	s.terminate(nil)
	return nil
}

// terminate tears the connection down abruptly. It is safe to call from any
// goroutine and any number of times; only the first call has effect.
func (s *Stream) terminate(cause error) {
	s.closeOnce.Do(func() {
		s.phase.Store(int32(PhaseClosing))
		close(s.done)
		if s.conn != nil {
			_ = s.conn.Close()
		}
		s.phase.Store(int32(PhaseClosed))
		metrics.ReportStreamClosed(closeReason(cause))

		var closeErr *websocket.CloseError
		switch {
		case cause == nil:
			s.logger.Info("stream closed")
		case errors.As(cause, &closeErr):
			s.logger.Info("stream closed by remote",
				fields.CloseCode(closeErr.Code), zap.String("reason", closeErr.Text))
		default:
			s.logger.Warn("stream terminated", zap.Error(cause))
		}

		if s.cb.OnClose != nil {
			s.cb.OnClose(cause)
		}
	})
}

func closeReason(cause error) string {
	var closeErr *websocket.CloseError
	switch {
	case cause == nil:
		return "local"
	case errors.Is(cause, ErrHeartbeatTimeout):
		return "heartbeat"
	case errors.As(cause, &closeErr):
		return "remote"
	default:
		return "error"
	}
}
