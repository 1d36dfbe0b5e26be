package viewer

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/df-mc/dragonfly/server/block/cube"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/oriumgames/mecs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dial(t *testing.T, h *Hub) *websocket.Conn {
	t.Helper()
	s := httptest.NewServer(h)
	t.Cleanup(s.Close)

	u := "ws" + strings.TrimPrefix(s.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.Eventually(t, func() bool { return h.Clients() == 1 }, time.Second, 10*time.Millisecond)
	return conn
}

func read(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestHubSnapshotThenUpdates(t *testing.T) {
	h := NewHub(nil)
	id := uuid.New()
	h.ViewMachine(mecs.Update{ID: id, Kind: "bronze_boiler", Pos: cube.Pos{1, 2, 3}, Tick: 4, Data: map[string]any{"isActive": uint8(0)}})

	conn := dial(t, h)

	msg := read(t, conn)
	assert.Equal(t, "snapshot", msg.Type)
	assert.Equal(t, id.String(), msg.ID)
	assert.Equal(t, [3]int{1, 2, 3}, msg.Pos)
	assert.Equal(t, uint64(4), msg.Tick)

	h.ViewMachine(mecs.Update{ID: id, Kind: "bronze_boiler", Pos: cube.Pos{1, 2, 3}, Tick: 9, Data: map[string]any{"isActive": uint8(1)}})
	msg = read(t, conn)
	assert.Equal(t, "update", msg.Type)
	assert.Equal(t, "bronze_boiler", msg.Kind)
	assert.Equal(t, uint64(9), msg.Tick)
	// JSON numbers decode as float64.
	assert.Equal(t, float64(1), msg.Data["isActive"])
}

func TestHubWithManager(t *testing.T) {
	h := NewHub(nil)
	conn := dial(t, h)

	m, err := mecs.NewBuilder().
		Manual().
		Viewer(h).
		Bundle(mecs.NewBundle("test").Machine("crate", func(*mecs.Machine) {}).Build()).
		Init()
	require.NoError(t, err)
	defer m.Shutdown()

	mc, err := m.NewMachine("crate", nil, cube.Pos{0, 10, 0})
	require.NoError(t, err)
	mc.RequestSync()
	m.Step()

	msg := read(t, conn)
	assert.Equal(t, mc.ID().String(), msg.ID)
	assert.Equal(t, "crate", msg.Kind)
	assert.Equal(t, uint64(1), msg.Tick)
}

func TestHubClose(t *testing.T) {
	h := NewHub(nil)
	conn := dial(t, h)

	h.Close()
	assert.Zero(t, h.Clients())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)

	// Updates after close are dropped.
	h.ViewMachine(mecs.Update{ID: uuid.New()})
	assert.Empty(t, h.last)
}
