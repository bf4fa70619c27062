package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// The /ws/state feed pushes JSON text frames shaped {type, ts, data}:
//
//	state_init    once per connection, built from a daemon snapshot
//	rate_changed  every presenter frame, at most one per wsRateCoalesceWindow
//	unit_changed  every unit switch, never delayed behind a rate frame
//
// Watchers are read-only. Incoming frames are discarded.

const (
	writeWait  = 5 * time.Second
	pongWait   = 30 * time.Second
	pingPeriod = 20 * time.Second

	wsRateCoalesceWindow = 50 * time.Millisecond
)

// wsStateData is the payload of state_init and rate_changed.
// Value and FrequencyHz are omitted while the rate is unknown.
type wsStateData struct {
	State       string   `json:"state"`
	Unit        string   `json:"unit"`
	Suffix      string   `json:"suffix"`
	Text        string   `json:"text"`
	Value       *float64 `json:"value,omitempty"`
	FrequencyHz *float64 `json:"frequency_hz,omitempty"`
	Seq         uint16   `json:"seq"`
}

// wsStateInitData adds the answer a "?" query would get right now.
type wsStateInitData struct {
	wsStateData
	RateText string `json:"rate_text"`
}

type wsUnitChangedData struct {
	Unit   string `json:"unit"`
	Index  int    `json:"index"`
	Suffix string `json:"suffix"`
}

type stateMessage struct {
	Type string    `json:"type"`
	Ts   time.Time `json:"ts"`
	Data any       `json:"data,omitempty"`
}

func finiteOrNil(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func frameData(f Frame) wsStateData {
	return wsStateData{
		State:       f.State.String(),
		Unit:        f.Unit.String(),
		Suffix:      f.Unit.Suffix(),
		Text:        f.Text,
		Value:       finiteOrNil(f.Value),
		FrequencyHz: finiteOrNil(f.FreqHz),
		Seq:         f.Seq,
	}
}

func snapshotData(s StateSnapshot) wsStateInitData {
	d := frameData(s.Frame)
	// The last frame may predate a unit switch.
	d.Unit = s.Unit.String()
	d.Suffix = s.Unit.Suffix()
	return wsStateInitData{wsStateData: d, RateText: s.RateText}
}

func encodeStateMessage(typ string, at time.Time, data any) ([]byte, error) {
	if at.IsZero() {
		at = time.Now()
	}
	return json.Marshal(stateMessage{Type: typ, Ts: at.UTC(), Data: data})
}

// StateHub fans encoded state messages out to every connected watcher. A watcher
// whose queue is full when a message arrives is dropped.
type StateHub struct {
	logger *slog.Logger

	frames chan []byte

	mu       sync.Mutex
	watchers map[*watcher]struct{}

	queueLen int
}

type StateHubConfig struct {
	QueueLen int // per-watcher outbound queue, default 32
	FanOut   int // hub inbound queue, default 128
}

func NewStateHub(logger *slog.Logger, cfg StateHubConfig) *StateHub {
	if cfg.QueueLen <= 0 {
		cfg.QueueLen = 32
	}
	if cfg.FanOut <= 0 {
		cfg.FanOut = 128
	}
	return &StateHub{
		logger:   logger,
		frames:   make(chan []byte, cfg.FanOut),
		watchers: make(map[*watcher]struct{}),
		queueLen: cfg.QueueLen,
	}
}

// Run fans out published messages until ctx is canceled, then drops everyone.
func (h *StateHub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.dropAll()
			return

		case msg := <-h.frames:
			var lagging []*watcher
			h.mu.Lock()
			for w := range h.watchers {
				select {
				case w.out <- msg:
				default:
					lagging = append(lagging, w)
				}
			}
			h.mu.Unlock()

			for _, w := range lagging {
				h.drop(w, "lagging")
			}
		}
	}
}

// Watchers returns the number of connected watchers.
func (h *StateHub) Watchers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.watchers)
}

// Publish queues an encoded message for every watcher. It drops the message
// rather than block when the hub is behind.
func (h *StateHub) Publish(msg []byte) {
	select {
	case h.frames <- msg:
	default:
		h.logger.Warn("state hub behind; message dropped", "bytes", len(msg))
	}
}

func (h *StateHub) add(w *watcher) {
	h.mu.Lock()
	h.watchers[w] = struct{}{}
	n := len(h.watchers)
	h.mu.Unlock()
	h.logger.Info("state watcher joined", "remote_addr", w.addr, "watchers", n)
}

// deliver queues msg for w alone. It is a no-op once w has been dropped.
func (h *StateHub) deliver(w *watcher, msg []byte) {
	h.mu.Lock()
	_, member := h.watchers[w]
	queued := false
	if member {
		select {
		case w.out <- msg:
			queued = true
		default:
		}
	}
	h.mu.Unlock()

	if member && !queued {
		h.drop(w, "lagging")
	}
}

func (h *StateHub) dropAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for w := range h.watchers {
		w.shut()
		delete(h.watchers, w)
	}
}

func (h *StateHub) drop(w *watcher, reason string) {
	h.mu.Lock()
	_, ok := h.watchers[w]
	delete(h.watchers, w)
	n := len(h.watchers)
	h.mu.Unlock()

	if !ok {
		return
	}
	w.shut()
	h.logger.Info("state watcher gone", "remote_addr", w.addr, "reason", reason, "watchers", n)
}

// watcher is one /ws/state connection.
type watcher struct {
	hub  *StateHub
	conn *websocket.Conn // nil in hub tests
	addr string

	out      chan []byte
	shutOnce sync.Once
}

func newWatcher(hub *StateHub, conn *websocket.Conn, addr string) *watcher {
	return &watcher{
		hub:  hub,
		conn: conn,
		addr: addr,
		out:  make(chan []byte, hub.queueLen),
	}
}

// shut closes the connection and the queue; writeLoop exits when out closes.
func (w *watcher) shut() {
	w.shutOnce.Do(func() {
		if w.conn != nil {
			_ = w.conn.Close()
		}
		close(w.out)
	})
}

func (w *watcher) logEnd(loop string, err error) {
	var ce *websocket.CloseError
	switch {
	case errors.Is(err, websocket.ErrCloseSent), errors.Is(err, net.ErrClosed):
	case errors.As(err, &ce):
		w.hub.logger.Debug("state watcher closed", "loop", loop, "remote_addr", w.addr, "code", ce.Code, "reason", ce.Text)
	default:
		w.hub.logger.Debug("state watcher failed", "loop", loop, "remote_addr", w.addr, "error", err)
	}
}

func (w *watcher) writeLoop() {
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case msg, ok := <-w.out:
			_ = w.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = w.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := w.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				w.logEnd("write", err)
				return
			}

		case <-ping.C:
			_ = w.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := w.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				w.logEnd("ping", err)
				return
			}
		}
	}
}

// readLoop keeps the pong deadline alive and reports the watcher gone on any read error.
func (w *watcher) readLoop() {
	_ = w.conn.SetReadDeadline(time.Now().Add(pongWait))
	w.conn.SetPongHandler(func(string) error {
		return w.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := w.conn.ReadMessage(); err != nil {
			w.logEnd("read", err)
			w.hub.drop(w, "left")
			return
		}
	}
}

// StateServer upgrades /ws/state requests and greets each watcher with state_init.
type StateServer struct {
	logger *slog.Logger
	hub    *StateHub
	events chan<- Event // snapshot requests go through the daemon loop
}

// NewStateServer builds the server. Run Hub().Run and RunBroadcaster alongside it.
func NewStateServer(logger *slog.Logger, events chan<- Event, cfg StateHubConfig) *StateServer {
	return &StateServer{
		logger: logger,
		hub:    NewStateHub(logger, cfg),
		events: events,
	}
}

func (s *StateServer) Hub() *StateHub { return s.hub }

func (s *StateServer) Register(mux *http.ServeMux, path string) {
	if mux == nil {
		return
	}
	mux.HandleFunc(path, s.serveWatcher)
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (s *StateServer) serveWatcher(rw http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(rw, r, nil)
	if err != nil {
		s.logger.Warn("state websocket upgrade failed", "error", err)
		return
	}

	w := newWatcher(s.hub, conn, r.RemoteAddr)
	s.hub.add(w)

	// The loops outlive this handler; the hub and the connection end them.
	go w.writeLoop()
	go w.readLoop()

	if s.events == nil {
		return
	}
	snap, err := s.requestSnapshot(r.Context())
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			s.logger.Warn("state snapshot for new watcher failed", "error", err)
		}
		return
	}
	msg, err := encodeStateMessage("state_init", snap.At, snapshotData(snap))
	if err != nil {
		s.logger.Warn("encode state_init failed", "error", err)
		return
	}
	s.hub.deliver(w, msg)
}

func (s *StateServer) requestSnapshot(ctx context.Context) (StateSnapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	reply := make(chan StateSnapshot, 1)
	select {
	case s.events <- RequestStateSnapshot{Reply: reply}:
	case <-ctx.Done():
		return StateSnapshot{}, ctx.Err()
	}
	select {
	case snap := <-reply:
		return snap, nil
	case <-ctx.Done():
		return StateSnapshot{}, ctx.Err()
	}
}

// RunBroadcaster encodes daemon broadcasts and publishes them on hub. Rate frames
// are held for wsRateCoalesceWindow and only the newest is sent; any other
// broadcast first releases the held rate frame so order is preserved.
func RunBroadcaster(ctx context.Context, hub *StateHub, src <-chan StateBroadcast, logger *slog.Logger) {
	var (
		held  []byte
		flush <-chan time.Time
	)
	release := func() {
		if held != nil {
			hub.Publish(held)
		}
		held, flush = nil, nil
	}

	for {
		select {
		case <-ctx.Done():
			release()
			return

		case <-flush:
			release()

		case b, ok := <-src:
			if !ok {
				release()
				return
			}
			typ, at, data, ok := describeBroadcast(b)
			if !ok {
				continue
			}
			msg, err := encodeStateMessage(typ, at, data)
			if err != nil {
				logger.Warn("encode state broadcast failed", "type", typ, "error", err)
				continue
			}

			if typ == "rate_changed" {
				held = msg
				if flush == nil {
					flush = time.After(wsRateCoalesceWindow)
				}
				continue
			}
			release()
			hub.Publish(msg)
		}
	}
}

func describeBroadcast(b StateBroadcast) (typ string, at time.Time, data any, ok bool) {
	switch ev := b.(type) {
	case BroadcastRateChanged:
		return "rate_changed", ev.At, frameData(ev.Frame), true
	case BroadcastUnitChanged:
		return "unit_changed", ev.At, wsUnitChangedData{
			Unit:   ev.Unit.String(),
			Index:  int(ev.Unit),
			Suffix: ev.Unit.Suffix(),
		}, true
	}
	return "", time.Time{}, nil, false
}
