package game

// SelectedLine is one drawn line in play order.
type SelectedLine struct {
	LineID   string `json:"lineId"`
	PlayerID string `json:"playerId"`
}

// CapturedBox is one completed box in play order.
type CapturedBox struct {
	BoxID    string `json:"boxId"`
	PlayerID string `json:"playerId"`
}

// GameProgress is the per-room append-only move log. It exists alongside
// RoomState and is deleted together with it.
type GameProgress struct {
	SelectedLines []SelectedLine `json:"selectedLines"`
	CapturedBoxes []CapturedBox  `json:"capturedBoxes"`
}

// NewGameProgress returns an empty move log.
func NewGameProgress() *GameProgress {
	return &GameProgress{
		SelectedLines: []SelectedLine{},
		CapturedBoxes: []CapturedBox{},
	}
}

// Record appends a drawn line and the boxes it completed.
func (g *GameProgress) Record(playerID, lineID string, boxIDs []string) {
	g.SelectedLines = append(g.SelectedLines, SelectedLine{
		LineID:   lineID,
		PlayerID: playerID,
	})

	for _, boxID := range boxIDs {
		g.CapturedBoxes = append(g.CapturedBoxes, CapturedBox{
			BoxID:    boxID,
			PlayerID: playerID,
		})
	}
}
