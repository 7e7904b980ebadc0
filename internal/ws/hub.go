package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/AungKyawPhyo1142/be-sentria/internal/repository"
	"github.com/AungKyawPhyo1142/be-sentria/pkg/logger"
	"github.com/AungKyawPhyo1142/be-sentria/pkg/metrics"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 16
)

// Emitter pushes live updates to connected clients. Implemented by Hub;
// consumers depend on this interface so delivery can be faked in tests.
type Emitter interface {
	// EmitToRoom sends the event to every socket subscribed to the room
	EmitToRoom(room, event string, data any)

	// EmitToSocket sends the event to one socket; reports whether the socket
	// was connected. Delivery is best-effort either way.
	EmitToSocket(socketID, event string, data any) bool

	// EmitToAll broadcasts the event to every connected socket
	EmitToAll(event string, data any)
}

// serverMessage is the wire envelope for server-to-client events
type serverMessage struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// clientMessage is the wire envelope for client-to-server actions
type clientMessage struct {
	Action    string  `json:"action"`
	ReportID  string  `json:"reportId,omitempty"`
	Longitude float64 `json:"longitude,omitempty"`
	Latitude  float64 `json:"latitude,omitempty"`
}

type socket struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// Hub tracks connected websocket clients, their per-report subscriptions and
// their positions in the geospatial index. Sockets subscribe to a report's
// room to receive fact-check updates, and report their position to receive
// proximity alerts.
type Hub struct {
	log       *logrus.Entry
	m         *metrics.Metrics
	locations repository.LocationRepository
	upgrader  websocket.Upgrader

	mu      sync.RWMutex
	sockets map[string]*socket
	rooms   map[string]map[string]bool
}

// NewHub creates a new hub
func NewHub(log *logger.Logger, m *metrics.Metrics, locations repository.LocationRepository) *Hub {
	return &Hub{
		log:       log.WithComponent("ws"),
		m:         m,
		locations: locations,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		sockets: make(map[string]*socket),
		rooms:   make(map[string]map[string]bool),
	}
}

// ServeHTTP upgrades the request and runs the connection until it drops
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Error("failed to upgrade websocket connection")
		return
	}

	s := &socket{
		id:   uuid.New().String(),
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}

	h.mu.Lock()
	h.sockets[s.id] = s
	h.mu.Unlock()
	if h.m != nil {
		h.m.ConnectedSockets.Inc()
	}
	h.log.WithField("socket_id", s.id).Info("socket connected")

	go h.writePump(s)
	h.emit(s, "connection_ack", map[string]string{"socketId": s.id, "message": "connected"})
	h.readPump(r.Context(), s)
}

func (h *Hub) readPump(ctx context.Context, s *socket) {
	defer h.disconnect(ctx, s)

	s.conn.SetReadLimit(4096)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.WithField("socket_id", s.id).WithError(err).Warn("socket read error")
			}
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			h.log.WithField("socket_id", s.id).Warn("ignoring malformed client message")
			continue
		}
		h.handleClientMessage(ctx, s, msg)
	}
}

func (h *Hub) handleClientMessage(ctx context.Context, s *socket, msg clientMessage) {
	switch msg.Action {
	case "subscribe_to_report":
		if msg.ReportID == "" {
			h.emit(s, "subscription_ack", map[string]string{"status": "invalid_reportId"})
			return
		}
		h.join(msg.ReportID, s.id)
		h.log.WithFields(logrus.Fields{"socket_id": s.id, "report_id": msg.ReportID}).Info("socket subscribed to report")
		h.emit(s, "subscription_ack", map[string]string{"status": "subscribed_to_" + msg.ReportID})

	case "unsubscribe_from_report":
		if msg.ReportID == "" {
			h.emit(s, "subscription_ack", map[string]string{"status": "invalid_reportId"})
			return
		}
		h.leave(msg.ReportID, s.id)
		h.log.WithFields(logrus.Fields{"socket_id": s.id, "report_id": msg.ReportID}).Info("socket unsubscribed from report")
		h.emit(s, "subscription_ack", map[string]string{"status": "unsubscribed_from_" + msg.ReportID})

	case "location_update":
		if err := h.locations.Upsert(ctx, s.id, msg.Longitude, msg.Latitude); err != nil {
			h.log.WithField("socket_id", s.id).WithError(err).Error("failed to update socket location")
			return
		}
		h.log.WithField("socket_id", s.id).Info("socket location updated")

	default:
		h.log.WithFields(logrus.Fields{"socket_id": s.id, "action": msg.Action}).Warn("unknown client action")
	}
}

func (h *Hub) writePump(s *socket) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case raw, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// disconnect removes the socket from all rooms and from the geospatial index.
// A socket already removed (hub shutdown racing a read-pump exit) is a no-op
// so the gauge and the index see each disconnect once.
func (h *Hub) disconnect(ctx context.Context, s *socket) {
	h.mu.Lock()
	_, ok := h.sockets[s.id]
	if ok {
		delete(h.sockets, s.id)
		close(s.send)
		for room, members := range h.rooms {
			delete(members, s.id)
			if len(members) == 0 {
				delete(h.rooms, room)
			}
		}
	}
	h.mu.Unlock()
	if !ok {
		return
	}

	if h.m != nil {
		h.m.ConnectedSockets.Dec()
	}
	if err := h.locations.Remove(ctx, s.id); err != nil {
		h.log.WithField("socket_id", s.id).WithError(err).Error("failed to remove socket location")
	}
	h.log.WithField("socket_id", s.id).Info("socket disconnected")
}

func (h *Hub) join(room, socketID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[string]bool)
	}
	h.rooms[room][socketID] = true
}

func (h *Hub) leave(room, socketID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if members, ok := h.rooms[room]; ok {
		delete(members, socketID)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
}

func (h *Hub) emit(s *socket, event string, data any) {
	raw, err := json.Marshal(serverMessage{Event: event, Data: data})
	if err != nil {
		h.log.WithField("event", event).WithError(err).Error("failed to marshal server message")
		return
	}
	select {
	case s.send <- raw:
	default:
		// Slow consumer; drop the message rather than block the pipeline.
		h.log.WithField("socket_id", s.id).Warn("send buffer full, dropping message")
	}
}

// EmitToRoom sends the event to every socket subscribed to the room
func (h *Hub) EmitToRoom(room, event string, data any) {
	h.mu.RLock()
	members := make([]*socket, 0, len(h.rooms[room]))
	for id := range h.rooms[room] {
		if s, ok := h.sockets[id]; ok {
			members = append(members, s)
		}
	}
	h.mu.RUnlock()

	for _, s := range members {
		h.emit(s, event, data)
	}
	h.log.WithFields(logrus.Fields{"room": room, "event": event, "sockets": len(members)}).Info("emitted room event")
}

// EmitToSocket sends the event to a single socket if it is still connected
func (h *Hub) EmitToSocket(socketID, event string, data any) bool {
	h.mu.RLock()
	s, ok := h.sockets[socketID]
	h.mu.RUnlock()
	if !ok {
		return false
	}
	h.emit(s, event, data)
	return true
}

// EmitToAll broadcasts the event to every connected socket
func (h *Hub) EmitToAll(event string, data any) {
	h.mu.RLock()
	all := make([]*socket, 0, len(h.sockets))
	for _, s := range h.sockets {
		all = append(all, s)
	}
	h.mu.RUnlock()

	for _, s := range all {
		h.emit(s, event, data)
	}
}

// Close disconnects every socket; used during shutdown
func (h *Hub) Close() {
	h.mu.Lock()
	sockets := make([]*socket, 0, len(h.sockets))
	for _, s := range h.sockets {
		sockets = append(sockets, s)
	}
	h.sockets = make(map[string]*socket)
	h.rooms = make(map[string]map[string]bool)
	h.mu.Unlock()

	for _, s := range sockets {
		close(s.send)
	}
}
