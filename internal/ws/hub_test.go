package ws

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AungKyawPhyo1142/be-sentria/pkg/logger"
)

// mockLocationRepo implements repository.LocationRepository for testing
type mockLocationRepo struct {
	upsertFunc func(ctx context.Context, socketID string, lon, lat float64) error
	removeFunc func(ctx context.Context, socketID string) error
}

func (m *mockLocationRepo) Upsert(ctx context.Context, socketID string, lon, lat float64) error {
	if m.upsertFunc != nil {
		return m.upsertFunc(ctx, socketID, lon, lat)
	}
	return nil
}

func (m *mockLocationRepo) Remove(ctx context.Context, socketID string) error {
	if m.removeFunc != nil {
		return m.removeFunc(ctx, socketID)
	}
	return nil
}

func (m *mockLocationRepo) Nearby(context.Context, float64, float64, float64) ([]string, error) {
	return nil, nil
}
func (m *mockLocationRepo) MarkEventProcessed(context.Context, string) error { return nil }
func (m *mockLocationRepo) IsEventProcessed(context.Context, string) (bool, error) {
	return false, nil
}

func newTestHub(locations *mockLocationRepo) *Hub {
	if locations == nil {
		locations = &mockLocationRepo{}
	}
	return NewHub(logger.NewLogger("test"), nil, locations)
}

// addSocket registers a fake connection without a network conn behind it
func addSocket(h *Hub, id string) *socket {
	s := &socket{id: id, send: make(chan []byte, sendBuffer)}
	h.mu.Lock()
	h.sockets[id] = s
	h.mu.Unlock()
	return s
}

func receivedEvent(t *testing.T, s *socket) serverMessage {
	t.Helper()
	select {
	case raw := <-s.send:
		var msg serverMessage
		require.NoError(t, json.Unmarshal(raw, &msg))
		return msg
	default:
		t.Fatal("expected a queued message")
		return serverMessage{}
	}
}

func TestHub_EmitToSocket(t *testing.T) {
	h := newTestHub(nil)
	s := addSocket(h, "sock-1")

	t.Run("connected socket receives the event", func(t *testing.T) {
		ok := h.EmitToSocket("sock-1", "earthquake_alert", map[string]string{"id": "ev-1"})
		assert.True(t, ok)

		msg := receivedEvent(t, s)
		assert.Equal(t, "earthquake_alert", msg.Event)
	})

	t.Run("unknown socket reports false", func(t *testing.T) {
		assert.False(t, h.EmitToSocket("nope", "earthquake_alert", nil))
	})
}

func TestHub_Rooms(t *testing.T) {
	h := newTestHub(nil)
	a := addSocket(h, "a")
	b := addSocket(h, "b")
	c := addSocket(h, "c")

	h.join("report-1", "a")
	h.join("report-1", "b")

	h.EmitToRoom("report-1", "report_factcheck_update", map[string]string{"reportId": "report-1"})

	msgA := receivedEvent(t, a)
	msgB := receivedEvent(t, b)
	assert.Equal(t, "report_factcheck_update", msgA.Event)
	assert.Equal(t, "report_factcheck_update", msgB.Event)
	assert.Empty(t, c.send, "non-member must not receive room events")

	t.Run("leaving the room stops delivery", func(t *testing.T) {
		h.leave("report-1", "b")
		h.EmitToRoom("report-1", "report_factcheck_update", nil)

		receivedEvent(t, a)
		assert.Empty(t, b.send)
	})

	t.Run("empty rooms are dropped", func(t *testing.T) {
		h.leave("report-1", "a")
		h.mu.RLock()
		_, exists := h.rooms["report-1"]
		h.mu.RUnlock()
		assert.False(t, exists)
	})
}

func TestHub_EmitToAll(t *testing.T) {
	h := newTestHub(nil)
	a := addSocket(h, "a")
	b := addSocket(h, "b")

	h.EmitToAll("announcement", "hello")
	assert.Equal(t, "announcement", receivedEvent(t, a).Event)
	assert.Equal(t, "announcement", receivedEvent(t, b).Event)
}

func TestHub_SlowConsumerDropsMessages(t *testing.T) {
	h := newTestHub(nil)
	s := addSocket(h, "slow")

	for i := 0; i < sendBuffer+5; i++ {
		h.EmitToSocket("slow", "flood", i)
	}

	// Overflow is dropped instead of blocking the emitter.
	assert.Len(t, s.send, sendBuffer)
}

func TestHub_DisconnectOnce(t *testing.T) {
	ctx := context.Background()

	t.Run("repeated disconnect removes the location once", func(t *testing.T) {
		removes := 0
		locations := &mockLocationRepo{
			removeFunc: func(_ context.Context, socketID string) error {
				assert.Equal(t, "sock-1", socketID)
				removes++
				return nil
			},
		}
		h := newTestHub(locations)
		s := addSocket(h, "sock-1")

		h.disconnect(ctx, s)
		h.disconnect(ctx, s)
		assert.Equal(t, 1, removes)
	})

	t.Run("disconnect after shutdown is a no-op", func(t *testing.T) {
		locations := &mockLocationRepo{
			removeFunc: func(context.Context, string) error {
				t.Fatal("must not touch the index after shutdown removed the socket")
				return nil
			},
		}
		h := newTestHub(locations)
		s := addSocket(h, "sock-1")

		h.Close()
		h.disconnect(ctx, s)
	})
}

func TestHub_LocationUpdate(t *testing.T) {
	var gotSocket string
	var gotLon, gotLat float64
	locations := &mockLocationRepo{
		upsertFunc: func(_ context.Context, socketID string, lon, lat float64) error {
			gotSocket = socketID
			gotLon = lon
			gotLat = lat
			return nil
		},
	}
	h := newTestHub(locations)
	s := addSocket(h, "sock-1")

	h.handleClientMessage(context.Background(), s, clientMessage{
		Action:    "location_update",
		Longitude: 96.13,
		Latitude:  16.84,
	})

	assert.Equal(t, "sock-1", gotSocket)
	assert.InDelta(t, 96.13, gotLon, 0.001)
	assert.InDelta(t, 16.84, gotLat, 0.001)
}

func TestHub_SubscribeActions(t *testing.T) {
	h := newTestHub(nil)
	s := addSocket(h, "sock-1")
	ctx := context.Background()

	t.Run("subscribe joins the room and acks", func(t *testing.T) {
		h.handleClientMessage(ctx, s, clientMessage{Action: "subscribe_to_report", ReportID: "report-1"})

		h.mu.RLock()
		member := h.rooms["report-1"]["sock-1"]
		h.mu.RUnlock()
		assert.True(t, member)

		msg := receivedEvent(t, s)
		assert.Equal(t, "subscription_ack", msg.Event)
	})

	t.Run("subscribe without a report id is rejected", func(t *testing.T) {
		h.handleClientMessage(ctx, s, clientMessage{Action: "subscribe_to_report"})
		msg := receivedEvent(t, s)
		assert.Equal(t, "subscription_ack", msg.Event)

		data, ok := msg.Data.(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "invalid_reportId", data["status"])
	})

	t.Run("unsubscribe leaves the room", func(t *testing.T) {
		h.handleClientMessage(ctx, s, clientMessage{Action: "unsubscribe_from_report", ReportID: "report-1"})

		h.mu.RLock()
		_, exists := h.rooms["report-1"]
		h.mu.RUnlock()
		assert.False(t, exists)
	})
}
