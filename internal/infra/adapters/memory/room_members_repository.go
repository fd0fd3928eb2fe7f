package memory

import "sync"

// RoomMembersRepository groups the players connected through this process by
// room, so the gateway can fan events out to a room.
type RoomMembersRepository interface {
	AddMember(roomID, playerID string)
	RemoveMember(roomID, playerID string)
	RemoveRoom(roomID string)

	GetMembers(roomID string) []string
}

type roomMembersRepository struct {
	members map[string]map[string]struct{}
	mu      sync.RWMutex
}

func NewRoomMembersRepository() RoomMembersRepository {
	return &roomMembersRepository{
		members: make(map[string]map[string]struct{}),
	}
}

func (r *roomMembersRepository) AddMember(roomID, playerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.members[roomID]; !ok {
		r.members[roomID] = make(map[string]struct{})
	}

	r.members[roomID][playerID] = struct{}{}
}

func (r *roomMembersRepository) RemoveMember(roomID, playerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.members[roomID]; !ok {
		return
	}

	delete(r.members[roomID], playerID)

	if len(r.members[roomID]) == 0 {
		delete(r.members, roomID)
	}
}

func (r *roomMembersRepository) RemoveRoom(roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.members, roomID)
}

func (r *roomMembersRepository) GetMembers(roomID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	playerIDs := make([]string, 0, len(r.members[roomID]))

	for playerID := range r.members[roomID] {
		playerIDs = append(playerIDs, playerID)
	}

	return playerIDs
}
