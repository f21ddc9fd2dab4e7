package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/phuttachad/dormcore/internal/domain"
)

// memOccupancyRepo mirrors the Postgres ledger's guarantees in memory: one
// mutex stands in for the per-room row lock, so the capacity check and the
// insert stay atomic under concurrency.
type memOccupancyRepo struct {
	mu      sync.Mutex
	rooms   map[string]*domain.Room
	tenants map[string]*domain.Tenant
	records map[string]*domain.OccupancyRecord
	nextID  int
	seq     int
}

func newMemOccupancyRepo(rooms ...*domain.Room) *memOccupancyRepo {
	m := &memOccupancyRepo{
		rooms:   map[string]*domain.Room{},
		tenants: map[string]*domain.Tenant{},
		records: map[string]*domain.OccupancyRecord{},
	}
	for _, r := range rooms {
		m.rooms[r.ID] = r
	}
	return m
}

func (m *memOccupancyRepo) addTenant(t *domain.Tenant) *domain.Tenant {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.ID == "" {
		m.nextID++
		t.ID = fmt.Sprintf("t-%d", m.nextID)
	}
	m.seq++
	t.CreatedAt = time.Unix(int64(m.seq), 0)
	m.tenants[t.ID] = t
	return t
}

func (m *memOccupancyRepo) Admit(ctx context.Context, tenantID, roomID string, checkIn time.Time) (*domain.OccupancyRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.admitLocked(tenantID, roomID, checkIn)
}

func (m *memOccupancyRepo) AdmitNewTenant(ctx context.Context, tenant *domain.Tenant, roomID string, checkIn time.Time) (*domain.OccupancyRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	room, ok := m.rooms[roomID]
	if !ok {
		return nil, domain.NewNotFoundError("room", roomID)
	}
	if m.countLocked(roomID) >= room.Capacity {
		return nil, domain.ErrRoomFull(roomID, room.Capacity)
	}
	m.nextID++
	tenant.ID = fmt.Sprintf("t-%d", m.nextID)
	m.seq++
	tenant.CreatedAt = time.Unix(int64(m.seq), 0)
	m.tenants[tenant.ID] = tenant
	return m.admitLocked(tenant.ID, roomID, checkIn)
}

func (m *memOccupancyRepo) admitLocked(tenantID, roomID string, checkIn time.Time) (*domain.OccupancyRecord, error) {
	room, ok := m.rooms[roomID]
	if !ok {
		return nil, domain.NewNotFoundError("room", roomID)
	}
	if _, ok := m.tenants[tenantID]; !ok {
		return nil, domain.NewNotFoundError("tenant", tenantID)
	}
	for _, rec := range m.records {
		if rec.TenantID == tenantID && rec.IsCurrent {
			return nil, domain.ErrDuplicateCurrentOccupancy(tenantID)
		}
	}
	if m.countLocked(roomID) >= room.Capacity {
		return nil, domain.ErrRoomFull(roomID, room.Capacity)
	}
	m.nextID++
	m.seq++
	rec := &domain.OccupancyRecord{
		ID:          fmt.Sprintf("o-%d", m.nextID),
		TenantID:    tenantID,
		RoomID:      roomID,
		CheckInDate: checkIn,
		IsCurrent:   true,
		CreatedAt:   time.Unix(int64(m.seq), 0),
	}
	m.records[rec.ID] = rec
	return rec, nil
}

func (m *memOccupancyRepo) countLocked(roomID string) int {
	n := 0
	for _, rec := range m.records {
		if rec.RoomID == roomID && rec.IsCurrent {
			n++
		}
	}
	return n
}

func (m *memOccupancyRepo) GetByID(ctx context.Context, occupancyID string) (*domain.OccupancyRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[occupancyID]
	if !ok {
		return nil, domain.NewNotFoundError("occupancy", occupancyID)
	}
	return rec, nil
}

func (m *memOccupancyRepo) CheckOut(ctx context.Context, occupancyID string, checkOut time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[occupancyID]
	if !ok || !rec.IsCurrent {
		return domain.NewNotFoundError("occupancy", occupancyID)
	}
	rec.IsCurrent = false
	rec.CheckOutDate = &checkOut
	return nil
}

func (m *memOccupancyRepo) CurrentOccupants(ctx context.Context, roomID string) ([]*domain.Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var recs []*domain.OccupancyRecord
	for _, rec := range m.records {
		if rec.RoomID == roomID && rec.IsCurrent {
			recs = append(recs, rec)
		}
	}
	// Primaries before dependents, each group in admission order.
	sort.Slice(recs, func(i, j int) bool {
		ti := m.tenants[recs[i].TenantID]
		tj := m.tenants[recs[j].TenantID]
		pi := ti.Residents == domain.ResidentPrimary
		pj := tj.Residents == domain.ResidentPrimary
		if pi != pj {
			return pi
		}
		return recs[i].CreatedAt.Before(recs[j].CreatedAt)
	})
	out := make([]*domain.Tenant, 0, len(recs))
	for _, rec := range recs {
		out = append(out, m.tenants[rec.TenantID])
	}
	return out, nil
}

func (m *memOccupancyRepo) CurrentCount(ctx context.Context, roomID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.countLocked(roomID), nil
}

type memRoomRepo struct {
	rooms map[string]*domain.Room
}

func (m *memRoomRepo) GetByID(ctx context.Context, id string) (*domain.Room, error) {
	if r, ok := m.rooms[id]; ok {
		return r, nil
	}
	return nil, domain.NewNotFoundError("room", id)
}

func (m *memRoomRepo) List(ctx context.Context) ([]*domain.Room, error) {
	out := []*domain.Room{}
	for _, r := range m.rooms {
		out = append(out, r)
	}
	return out, nil
}

func newAdmissionFixture(capacity int) (*AdmissionService, *memOccupancyRepo) {
	room := &domain.Room{ID: "room-1", RoomNumber: "101", Status: "vacant", Capacity: capacity}
	occ := newMemOccupancyRepo(room)
	svc := NewAdmissionService(&memRoomRepo{rooms: occ.rooms}, occ, nil, nil)
	return svc, occ
}

func TestConcurrentAdmissionsNeverExceedCapacity(t *testing.T) {
	const capacity = 3
	const contenders = 20
	svc, occ := newAdmissionFixture(capacity)

	ids := make([]string, contenders)
	for i := range ids {
		ids[i] = occ.addTenant(&domain.Tenant{FirstName: "T", LastName: fmt.Sprint(i)}).ID
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	denied := 0
	for _, id := range ids {
		wg.Add(1)
		go func(tenantID string) {
			defer wg.Done()
			_, err := svc.Admit(context.Background(), AdmitRequest{RoomID: "room-1", TenantID: tenantID})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				allowed++
				return
			}
			if domain.ConflictReason(err) != domain.ReasonRoomFull {
				t.Errorf("unexpected denial: %v", err)
			}
			denied++
		}(id)
	}
	wg.Wait()

	if allowed != capacity {
		t.Fatalf("expected exactly %d admissions, got %d", capacity, allowed)
	}
	if denied != contenders-capacity {
		t.Fatalf("expected %d denials, got %d", contenders-capacity, denied)
	}
	if n, _ := occ.CurrentCount(context.Background(), "room-1"); n != capacity {
		t.Fatalf("ledger count = %d, want %d", n, capacity)
	}
}

func TestCheckoutFreesSlotImmediately(t *testing.T) {
	svc, occ := newAdmissionFixture(1)
	a := occ.addTenant(&domain.Tenant{FirstName: "A", LastName: "A"})
	b := occ.addTenant(&domain.Tenant{FirstName: "B", LastName: "B"})

	rec, err := svc.Admit(context.Background(), AdmitRequest{RoomID: "room-1", TenantID: a.ID})
	if err != nil {
		t.Fatalf("first admit failed: %v", err)
	}
	if _, err := svc.Admit(context.Background(), AdmitRequest{RoomID: "room-1", TenantID: b.ID}); domain.ConflictReason(err) != domain.ReasonRoomFull {
		t.Fatalf("expected room_full, got %v", err)
	}

	if err := svc.CheckOut(context.Background(), rec.ID, time.Now()); err != nil {
		t.Fatalf("checkout failed: %v", err)
	}
	if _, err := svc.Admit(context.Background(), AdmitRequest{RoomID: "room-1", TenantID: b.ID}); err != nil {
		t.Fatalf("admit after checkout failed: %v", err)
	}
}

func TestCheckoutTwiceIsNotFound(t *testing.T) {
	svc, occ := newAdmissionFixture(2)
	a := occ.addTenant(&domain.Tenant{FirstName: "A", LastName: "A"})
	rec, err := svc.Admit(context.Background(), AdmitRequest{RoomID: "room-1", TenantID: a.ID})
	if err != nil {
		t.Fatalf("admit failed: %v", err)
	}
	if err := svc.CheckOut(context.Background(), rec.ID, time.Now()); err != nil {
		t.Fatalf("checkout failed: %v", err)
	}
	if err := svc.CheckOut(context.Background(), rec.ID, time.Now()); !domain.IsKind(err, domain.KindNotFound) {
		t.Fatalf("expected not_found on second checkout, got %v", err)
	}
}

func TestDuplicateCurrentOccupancyDenied(t *testing.T) {
	svc, occ := newAdmissionFixture(4)
	a := occ.addTenant(&domain.Tenant{FirstName: "A", LastName: "A"})

	if _, err := svc.Admit(context.Background(), AdmitRequest{RoomID: "room-1", TenantID: a.ID}); err != nil {
		t.Fatalf("admit failed: %v", err)
	}
	_, err := svc.Admit(context.Background(), AdmitRequest{RoomID: "room-1", TenantID: a.ID})
	if domain.ConflictReason(err) != domain.ReasonDuplicateCurrentOccupancy {
		t.Fatalf("expected duplicate_current_occupancy, got %v", err)
	}
}

func TestOccupantOrderingPrimariesFirst(t *testing.T) {
	svc, occ := newAdmissionFixture(4)
	a := occ.addTenant(&domain.Tenant{FirstName: "A", LastName: "A", Residents: domain.ResidentDependent})
	b := occ.addTenant(&domain.Tenant{FirstName: "B", LastName: "B", Residents: domain.ResidentPrimary, Address: "x"})
	c := occ.addTenant(&domain.Tenant{FirstName: "C", LastName: "C", Residents: domain.ResidentDependent})
	d := occ.addTenant(&domain.Tenant{FirstName: "D", LastName: "D", Residents: domain.ResidentPrimary, Address: "y"})

	for _, id := range []string{a.ID, b.ID, c.ID, d.ID} {
		if _, err := svc.Admit(context.Background(), AdmitRequest{RoomID: "room-1", TenantID: id}); err != nil {
			t.Fatalf("admit %s failed: %v", id, err)
		}
	}

	occupants, err := svc.CurrentOccupants(context.Background(), "room-1")
	if err != nil {
		t.Fatalf("occupants failed: %v", err)
	}
	want := []string{"B", "D", "A", "C"}
	if len(occupants) != len(want) {
		t.Fatalf("got %d occupants, want %d", len(occupants), len(want))
	}
	for i, name := range want {
		if occupants[i].FirstName != name {
			t.Fatalf("occupant %d = %s, want %s", i, occupants[i].FirstName, name)
		}
	}
}

func TestTwoPrimariesInOneRoomAllowed(t *testing.T) {
	svc, occ := newAdmissionFixture(4)
	p1 := occ.addTenant(&domain.Tenant{FirstName: "P1", LastName: "X", Residents: domain.ResidentPrimary, Address: "x"})
	p2 := occ.addTenant(&domain.Tenant{FirstName: "P2", LastName: "Y", Residents: domain.ResidentPrimary, Address: "y"})

	if _, err := svc.Admit(context.Background(), AdmitRequest{RoomID: "room-1", TenantID: p1.ID}); err != nil {
		t.Fatalf("first primary denied: %v", err)
	}
	if _, err := svc.Admit(context.Background(), AdmitRequest{RoomID: "room-1", TenantID: p2.ID}); err != nil {
		t.Fatalf("second primary denied: %v", err)
	}
}

func TestAdmitValidation(t *testing.T) {
	svc, occ := newAdmissionFixture(2)
	a := occ.addTenant(&domain.Tenant{FirstName: "A", LastName: "A"})

	cases := []struct {
		name string
		req  AdmitRequest
	}{
		{"missing room", AdmitRequest{TenantID: a.ID}},
		{"neither tenant nor payload", AdmitRequest{RoomID: "room-1"}},
		{"both tenant and payload", AdmitRequest{RoomID: "room-1", TenantID: a.ID, NewTenant: &domain.Tenant{FirstName: "X", LastName: "Y"}}},
		{"new tenant missing name", AdmitRequest{RoomID: "room-1", NewTenant: &domain.Tenant{LastName: "Y"}}},
		{"primary without address", AdmitRequest{RoomID: "room-1", NewTenant: &domain.Tenant{FirstName: "X", LastName: "Y", Residents: domain.ResidentPrimary}}},
	}
	for _, tc := range cases {
		if _, err := svc.Admit(context.Background(), tc.req); !domain.IsKind(err, domain.KindValidation) {
			t.Errorf("%s: expected validation error, got %v", tc.name, err)
		}
	}
}

func TestAdmitNewTenantCreatesRecordAndAdmits(t *testing.T) {
	svc, occ := newAdmissionFixture(2)

	rec, err := svc.Admit(context.Background(), AdmitRequest{
		RoomID:    "room-1",
		NewTenant: &domain.Tenant{FirstName: "New", LastName: "Tenant"},
	})
	if err != nil {
		t.Fatalf("admit failed: %v", err)
	}
	if rec.TenantID == "" {
		t.Fatalf("expected tenant id on record")
	}
	if _, ok := occ.tenants[rec.TenantID]; !ok {
		t.Fatalf("tenant record was not created")
	}
}

type recordingListener struct {
	mu    sync.Mutex
	rooms []string
}

func (l *recordingListener) OccupancyChanged(roomID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rooms = append(l.rooms, roomID)
}

func TestListenerNotifiedOnAdmitAndCheckout(t *testing.T) {
	room := &domain.Room{ID: "room-1", RoomNumber: "101", Capacity: 2}
	occ := newMemOccupancyRepo(room)
	listener := &recordingListener{}
	svc := NewAdmissionService(&memRoomRepo{rooms: occ.rooms}, occ, listener, nil)
	a := occ.addTenant(&domain.Tenant{FirstName: "A", LastName: "A"})

	rec, err := svc.Admit(context.Background(), AdmitRequest{RoomID: "room-1", TenantID: a.ID})
	if err != nil {
		t.Fatalf("admit failed: %v", err)
	}
	if err := svc.CheckOut(context.Background(), rec.ID, time.Now()); err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	listener.mu.Lock()
	defer listener.mu.Unlock()
	if len(listener.rooms) != 2 || listener.rooms[0] != "room-1" || listener.rooms[1] != "room-1" {
		t.Fatalf("expected 2 notifications for room-1, got %v", listener.rooms)
	}
}
