package lot

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/openlot/parkd/core/model"
)

var (
	// ErrSpaceNotFound is returned when a space id is unknown to the lot.
	ErrSpaceNotFound = errors.New("space not found")
	// ErrSpaceOccupied is returned when a commit targets a space that is
	// already taken.
	ErrSpaceOccupied = errors.New("space already occupied")
	// ErrSpaceFree is returned when releasing a space that holds no vehicle.
	ErrSpaceFree = errors.New("space is not occupied")
	// ErrVehicleAllocated is returned when a vehicle already holds a space.
	ErrVehicleAllocated = errors.New("vehicle already allocated")
	// ErrVehicleNotFound is returned when a release names an unknown vehicle.
	ErrVehicleNotFound = errors.New("vehicle not found")
)

// Filter narrows List results. Zero values match everything.
type Filter struct {
	Section    string
	FreeOnly   bool
	GroupsOnly bool
}

// Store is the occupancy state of a monitored lot. Implementations must be
// safe for concurrent use; the allocation manager serializes its
// read-decide-commit cycle on top of it.
type Store interface {
	Snapshot() map[string]model.ParkingSpace
	Get(id string) (model.ParkingSpace, bool)
	List(f Filter) []model.ParkingSpace
	Occupy(spaceID, vehicleID string, at time.Time) error
	ReleaseVehicle(vehicleID string, at time.Time) ([]string, error)
	ReleaseSpace(spaceID string, at time.Time) (string, error)
	SetState(spaceID string, occupied bool, vehicleID string, at time.Time) (bool, error)
	Find(vehicleID string) (model.ParkingSpace, bool)
	Reset(at time.Time)
	Stats() model.LotStats
}

// MemoryStore keeps the lot state in memory.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]model.ParkingSpace
}

// NewMemoryStore builds a store over the given spaces. Records are copied;
// invalid records are rejected.
func NewMemoryStore(spaces []model.ParkingSpace) (*MemoryStore, error) {
	data := make(map[string]model.ParkingSpace, len(spaces))
	for _, sp := range spaces {
		if err := sp.Validate(); err != nil {
			return nil, err
		}
		if _, dup := data[sp.ID]; dup {
			return nil, fmt.Errorf("duplicate space id %s", sp.ID)
		}
		data[sp.ID] = copySpace(sp)
	}
	for _, sp := range data {
		for _, m := range sp.MemberSpaces {
			if _, ok := data[m]; !ok {
				return nil, fmt.Errorf("group %s: unknown member space %s", sp.ID, m)
			}
		}
	}
	return &MemoryStore{data: data}, nil
}

func copySpace(sp model.ParkingSpace) model.ParkingSpace {
	if sp.MemberSpaces != nil {
		members := make([]string, len(sp.MemberSpaces))
		copy(members, sp.MemberSpaces)
		sp.MemberSpaces = members
	}
	return sp
}

// Snapshot returns a deep copy of the lot state. The engine scores
// snapshots so the store is never read mid-decision.
func (s *MemoryStore) Snapshot() map[string]model.ParkingSpace {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]model.ParkingSpace, len(s.data))
	for id, sp := range s.data {
		out[id] = copySpace(sp)
	}
	return out
}

// Get returns one space by id.
func (s *MemoryStore) Get(id string) (model.ParkingSpace, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sp, ok := s.data[id]
	return copySpace(sp), ok
}

// List returns the spaces matching the filter, sorted by id.
func (s *MemoryStore) List(f Filter) []model.ParkingSpace {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]model.ParkingSpace, 0, len(s.data))
	for _, sp := range s.data {
		if f.Section != "" && sp.Section != f.Section {
			continue
		}
		if f.FreeOnly && sp.Occupied {
			continue
		}
		if f.GroupsOnly && !sp.IsGroup {
			continue
		}
		res = append(res, copySpace(sp))
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res
}

// Occupy commits an allocation. Group spaces take all their members with
// them; partially taken groups are rejected.
func (s *MemoryStore) Occupy(spaceID, vehicleID string, at time.Time) error {
	if vehicleID == "" {
		return fmt.Errorf("vehicle id must not be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sp, ok := s.data[spaceID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrSpaceNotFound, spaceID)
	}
	if sp.Occupied {
		return fmt.Errorf("%w: %s", ErrSpaceOccupied, spaceID)
	}
	for _, other := range s.data {
		if other.VehicleID == vehicleID {
			return fmt.Errorf("%w: %s holds %s", ErrVehicleAllocated, vehicleID, other.ID)
		}
	}
	for _, m := range sp.MemberSpaces {
		if s.data[m].Occupied {
			return fmt.Errorf("%w: group %s member %s", ErrSpaceOccupied, spaceID, m)
		}
	}
	s.setOccupied(sp.ID, vehicleID, at)
	for _, m := range sp.MemberSpaces {
		s.setOccupied(m, vehicleID, at)
	}
	return nil
}

func (s *MemoryStore) setOccupied(id, vehicleID string, at time.Time) {
	sp := s.data[id]
	sp.Occupied = true
	sp.VehicleID = vehicleID
	sp.LastStateChange = at
	s.data[id] = sp
}

func (s *MemoryStore) setFree(id string, at time.Time) {
	sp := s.data[id]
	sp.Occupied = false
	sp.VehicleID = ""
	sp.LastStateChange = at
	s.data[id] = sp
}

// ReleaseVehicle frees every space held by the vehicle and returns their
// ids sorted.
func (s *MemoryStore) ReleaseVehicle(vehicleID string, at time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var freed []string
	for id, sp := range s.data {
		if sp.VehicleID == vehicleID {
			s.setFree(id, at)
			freed = append(freed, id)
		}
	}
	if len(freed) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrVehicleNotFound, vehicleID)
	}
	sort.Strings(freed)
	return freed, nil
}

// ReleaseSpace frees one space (and its members for groups) and returns
// the vehicle that held it.
func (s *MemoryStore) ReleaseSpace(spaceID string, at time.Time) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sp, ok := s.data[spaceID]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrSpaceNotFound, spaceID)
	}
	if !sp.Occupied {
		return "", fmt.Errorf("%w: %s", ErrSpaceFree, spaceID)
	}
	vehicleID := sp.VehicleID
	s.setFree(spaceID, at)
	for _, m := range sp.MemberSpaces {
		if s.data[m].VehicleID == vehicleID {
			s.setFree(m, at)
		}
	}
	return vehicleID, nil
}

// SetState applies a sensor-observed state transition and reports whether
// anything changed. Sensors are authoritative, so no occupancy checks are
// made beyond the id lookup.
func (s *MemoryStore) SetState(spaceID string, occupied bool, vehicleID string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sp, ok := s.data[spaceID]
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrSpaceNotFound, spaceID)
	}
	if sp.Occupied == occupied && sp.VehicleID == vehicleID {
		return false, nil
	}
	if occupied {
		s.setOccupied(spaceID, vehicleID, at)
	} else {
		s.setFree(spaceID, at)
	}
	return true, nil
}

// Find returns the space holding the vehicle. Group parents win over
// their members so an oversized vehicle resolves to its group record.
func (s *MemoryStore) Find(vehicleID string) (model.ParkingSpace, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var found model.ParkingSpace
	var ok bool
	for _, sp := range s.data {
		if sp.VehicleID != vehicleID {
			continue
		}
		if sp.IsGroup {
			return copySpace(sp), true
		}
		if !ok || sp.ID < found.ID {
			found = sp
			ok = true
		}
	}
	return copySpace(found), ok
}

// Reset frees every space.
func (s *MemoryStore) Reset(at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, sp := range s.data {
		if sp.Occupied {
			s.setFree(id, at)
		}
	}
}

// Stats summarizes occupancy. Group parents are aggregates, so only
// physical spaces are counted; vehicles are counted once even when they
// hold a whole group.
func (s *MemoryStore) Stats() model.LotStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := model.LotStats{
		Timestamp: time.Now(),
		Sections:  map[string]model.SectionStats{},
	}
	vehicles := map[string]struct{}{}
	for _, sp := range s.data {
		if sp.VehicleID != "" {
			vehicles[sp.VehicleID] = struct{}{}
		}
		if sp.IsGroup {
			continue
		}
		st.TotalSpaces++
		sec := st.Sections[sp.Section]
		sec.Total++
		if sp.Occupied {
			st.OccupiedSpaces++
			sec.Occupied++
		} else {
			st.FreeSpaces++
		}
		st.Sections[sp.Section] = sec
	}
	if st.TotalSpaces > 0 {
		st.OccupancyRate = float64(st.OccupiedSpaces) / float64(st.TotalSpaces)
	}
	st.ActiveVehicles = len(vehicles)
	return st
}
