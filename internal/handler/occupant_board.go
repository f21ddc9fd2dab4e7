package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/phuttachad/dormcore/internal/domain"
)

// boardConn serializes data writes to one websocket connection. gorilla/websocket
// allows a single concurrent writer, and broadcasts arrive from many request
// goroutines at once.
type boardConn struct {
	ws *websocket.Conn

	writeMu sync.Mutex
}

func (c *boardConn) write(payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteMessage(websocket.TextMessage, payload)
}

// OccupantBoard pushes a room's occupant list over WebSocket whenever it
// changes. It implements service.OccupancyListener, so the admission service
// drives broadcasts without knowing about transports.
type OccupantBoard struct {
	occupancy      domain.OccupancyRepository
	logger         *slog.Logger
	allowedOrigins []string

	mu    sync.Mutex
	rooms map[string]map[*boardConn]struct{}
}

func NewOccupantBoard(occupancy domain.OccupancyRepository, logger *slog.Logger, allowedOrigins []string) *OccupantBoard {
	return &OccupantBoard{
		occupancy:      occupancy,
		logger:         logger,
		allowedOrigins: allowedOrigins,
		rooms:          map[string]map[*boardConn]struct{}{},
	}
}

// upgrader is built per-request to use the instance's allowed origins.
func (b *OccupantBoard) getUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				// Allow non-browser clients with no origin header.
				return true
			}
			for _, allowed := range b.allowedOrigins {
				if origin == allowed {
					return true
				}
			}
			b.logger.Warn("websocket origin rejected", slog.String("origin", origin))
			return false
		},
	}
}

// ServeHTTP handles GET /ws/rooms/{id}/occupants.
func (b *OccupantBoard) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("id")
	if roomID == "" {
		http.Error(w, "missing room id", http.StatusBadRequest)
		return
	}

	upgrader := b.getUpgrader()
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.logger.Error("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer ws.Close()

	conn := &boardConn{ws: ws}
	b.register(roomID, conn)
	defer b.unregister(roomID, conn)

	// Initial snapshot so the client does not wait for the first change.
	if payload, err := b.snapshot(r.Context(), roomID); err == nil {
		conn.write(payload)
	}

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				_ = ws.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(5*time.Second))
			case <-done:
				return
			}
		}
	}()
	defer close(done)

	// Read loop exists only to notice the peer closing.
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				b.logger.Debug("websocket closed", slog.String("room_id", roomID))
			}
			return
		}
	}
}

// OccupancyChanged broadcasts the fresh occupant list to every subscriber of
// the room. Called by the admission service after each admit and checkout.
func (b *OccupantBoard) OccupancyChanged(roomID string) {
	b.mu.Lock()
	conns := make([]*boardConn, 0, len(b.rooms[roomID]))
	for c := range b.rooms[roomID] {
		conns = append(conns, c)
	}
	b.mu.Unlock()

	if len(conns) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	payload, err := b.snapshot(ctx, roomID)
	if err != nil {
		b.logger.Error("failed to build occupant snapshot",
			slog.String("room_id", roomID),
			slog.String("error", err.Error()),
		)
		return
	}

	for _, c := range conns {
		if err := c.write(payload); err != nil {
			b.unregister(roomID, c)
			c.ws.Close()
		}
	}
}

func (b *OccupantBoard) snapshot(ctx context.Context, roomID string) ([]byte, error) {
	tenants, err := b.occupancy.CurrentOccupants(ctx, roomID)
	if err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		RoomID    string             `json:"roomId"`
		Occupants []OccupantResponse `json:"occupants"`
	}{RoomID: roomID, Occupants: toOccupantResponses(tenants)})
}

func (b *OccupantBoard) register(roomID string, conn *boardConn) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.rooms[roomID] == nil {
		b.rooms[roomID] = map[*boardConn]struct{}{}
	}
	b.rooms[roomID][conn] = struct{}{}
}

func (b *OccupantBoard) unregister(roomID string, conn *boardConn) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.rooms[roomID], conn)
	if len(b.rooms[roomID]) == 0 {
		delete(b.rooms, roomID)
	}
}
