package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/phuttachad/dormcore/internal/domain"
)

// staticOccupancy serves a fixed occupant list so broadcasts can run
// concurrently without the fake itself being under test.
type staticOccupancy struct {
	tenants []*domain.Tenant
}

func (s staticOccupancy) Admit(ctx context.Context, tenantID, roomID string, checkIn time.Time) (*domain.OccupancyRecord, error) {
	return nil, domain.NewNotFoundError("room", roomID)
}

func (s staticOccupancy) AdmitNewTenant(ctx context.Context, tenant *domain.Tenant, roomID string, checkIn time.Time) (*domain.OccupancyRecord, error) {
	return nil, domain.NewNotFoundError("room", roomID)
}

func (s staticOccupancy) GetByID(ctx context.Context, occupancyID string) (*domain.OccupancyRecord, error) {
	return nil, domain.NewNotFoundError("occupancy", occupancyID)
}

func (s staticOccupancy) CheckOut(ctx context.Context, occupancyID string, checkOut time.Time) error {
	return domain.NewNotFoundError("occupancy", occupancyID)
}

func (s staticOccupancy) CurrentOccupants(ctx context.Context, roomID string) ([]*domain.Tenant, error) {
	return s.tenants, nil
}

func (s staticOccupancy) CurrentCount(ctx context.Context, roomID string) (int, error) {
	return len(s.tenants), nil
}

func dialBoard(t *testing.T, board *OccupantBoard, roomID string) (*websocket.Conn, func()) {
	t.Helper()

	mux := http.NewServeMux()
	mux.Handle("GET /ws/rooms/{id}/occupants", board)
	srv := httptest.NewServer(mux)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/rooms/" + roomID + "/occupants"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		srv.Close()
		t.Fatalf("dial: %v", err)
	}
	return ws, func() {
		ws.Close()
		srv.Close()
	}
}

func TestOccupantBoardSendsInitialSnapshot(t *testing.T) {
	occ := staticOccupancy{tenants: []*domain.Tenant{
		{ID: "ten-1", FirstName: "Ploy", LastName: "S.", Residents: domain.ResidentPrimary},
	}}
	board := NewOccupantBoard(occ, testLogger(), nil)

	ws, cleanup := dialBoard(t, board, "room-1")
	defer cleanup()

	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("read snapshot: %v", err)
	}

	var msg struct {
		RoomID    string             `json:"roomId"`
		Occupants []OccupantResponse `json:"occupants"`
	}
	if err := json.Unmarshal(payload, &msg); err != nil {
		t.Fatalf("unmarshal snapshot: %v", err)
	}
	if msg.RoomID != "room-1" {
		t.Errorf("roomId = %q, want room-1", msg.RoomID)
	}
	if len(msg.Occupants) != 1 || msg.Occupants[0].ID != "ten-1" {
		t.Errorf("occupants = %+v, want ten-1", msg.Occupants)
	}
}

// Admissions and checkouts hit OccupancyChanged from many request goroutines
// at once; every frame the subscriber receives must still parse.
func TestOccupantBoardConcurrentBroadcasts(t *testing.T) {
	occ := staticOccupancy{tenants: []*domain.Tenant{
		{ID: "ten-1", FirstName: "Ploy", LastName: "S.", Residents: domain.ResidentPrimary},
	}}
	board := NewOccupantBoard(occ, testLogger(), nil)

	ws, cleanup := dialBoard(t, board, "room-1")
	defer cleanup()

	const broadcasts = 100

	received := make(chan error, 1)
	go func() {
		ws.SetReadDeadline(time.Now().Add(5 * time.Second))
		for i := 0; i < broadcasts+1; i++ { // initial snapshot plus broadcasts
			_, payload, err := ws.ReadMessage()
			if err != nil {
				received <- err
				return
			}
			var msg struct {
				RoomID string `json:"roomId"`
			}
			if err := json.Unmarshal(payload, &msg); err != nil {
				received <- err
				return
			}
		}
		received <- nil
	}()

	// Let the connection register before broadcasting.
	deadline := time.Now().Add(2 * time.Second)
	for {
		board.mu.Lock()
		n := len(board.rooms["room-1"])
		board.mu.Unlock()
		if n == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("subscriber never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	var wg sync.WaitGroup
	for i := 0; i < broadcasts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			board.OccupancyChanged("room-1")
		}()
	}
	wg.Wait()

	if err := <-received; err != nil {
		t.Fatalf("subscriber read failed: %v", err)
	}
}

func TestOccupantBoardNoSubscribersIsNoop(t *testing.T) {
	board := NewOccupantBoard(staticOccupancy{}, testLogger(), nil)
	board.OccupancyChanged("room-empty")
}
