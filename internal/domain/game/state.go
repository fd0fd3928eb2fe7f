package game

// Player is one seat in a room. Join order is preserved: the slice index is
// the seat position. A seat survives transient disconnects while a game is
// running.
type Player struct {
	PlayerID    string `json:"playerId"`
	PlayerName  string `json:"playerName"`
	IsConnected bool   `json:"isConnected"`
}

// RoomState is the per-room lifecycle document.
type RoomState struct {
	RoomID      string   `json:"roomId"`
	GameStarted bool     `json:"gameStarted"`
	NextMove    string   `json:"nextMove"`
	GridSize    string   `json:"gridSize"`
	Host        string   `json:"host"`
	Players     []Player `json:"players"`
}

// NewRoomState builds the state of a freshly created room with the creator
// as host and sole seated player.
func NewRoomState(roomID, playerID, playerName, gridSize string) *RoomState {
	return &RoomState{
		RoomID:      roomID,
		GameStarted: false,
		NextMove:    "",
		GridSize:    gridSize,
		Host:        playerID,
		Players: []Player{
			{
				PlayerID:    playerID,
				PlayerName:  playerName,
				IsConnected: true,
			},
		},
	}
}

// Seat returns the seat index of playerID, or -1 if the player is not seated.
func (s *RoomState) Seat(playerID string) int {
	for i, p := range s.Players {
		if p.PlayerID == playerID {
			return i
		}
	}
	return -1
}

// HasPlayer reports whether playerID holds a seat.
func (s *RoomState) HasPlayer(playerID string) bool {
	return s.Seat(playerID) != -1
}

// AddPlayer appends a connected seat for the player.
func (s *RoomState) AddPlayer(playerID, playerName string) {
	s.Players = append(s.Players, Player{
		PlayerID:    playerID,
		PlayerName:  playerName,
		IsConnected: true,
	})
}

// RemovePlayer drops the player's seat, keeping the remaining order. It is a
// no-op when the player is not seated.
func (s *RoomState) RemovePlayer(playerID string) {
	remaining := s.Players[:0]
	for _, p := range s.Players {
		if p.PlayerID != playerID {
			remaining = append(remaining, p)
		}
	}
	s.Players = remaining
}

// ConnectedCount returns the number of seats currently marked connected.
func (s *RoomState) ConnectedCount() int {
	n := 0
	for _, p := range s.Players {
		if p.IsConnected {
			n++
		}
	}
	return n
}

// SetConnected flips the connected flag of the player's seat. It reports
// whether the player was seated.
func (s *RoomState) SetConnected(playerID string, connected bool) bool {
	i := s.Seat(playerID)
	if i == -1 {
		return false
	}
	s.Players[i].IsConnected = connected
	return true
}

// NextConnected returns the id of the next connected player after the seat
// of from, wrapping around. The search is bounded to one full pass: if no
// other seat is connected it falls back to from itself, so turn advancement
// always terminates. ok is false when from is not seated.
func (s *RoomState) NextConnected(from string) (string, bool) {
	start := s.Seat(from)
	if start == -1 {
		return "", false
	}

	total := len(s.Players)
	for step := 1; step <= total; step++ {
		p := s.Players[(start+step)%total]
		if p.IsConnected {
			return p.PlayerID, true
		}
	}

	return from, true
}
