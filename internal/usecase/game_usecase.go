package usecase

import (
	"context"
	"fmt"

	"github.com/thearjunkv/dots-and-boxes-backend/internal/application/config"
	"github.com/thearjunkv/dots-and-boxes-backend/internal/domain/game"
	"github.com/thearjunkv/dots-and-boxes-backend/internal/infra/repository"
)

// GameUsecase is the session manager: one operation per room lifecycle
// event. Every operation is a stateless read-modify-write cycle against the
// store; operations on the same room are serialized by a per-room lock.
// A nil state with a nil error means the room was deleted.
type GameUsecase interface {
	CreateRoom(ctx context.Context, playerID, playerName, gridSize string) (*game.RoomState, error)
	JoinRoom(ctx context.Context, playerID, playerName, roomID string) (*game.RoomState, error)
	RejoinRoom(ctx context.Context, playerID, playerName, roomID, gridSize string) (*game.RoomState, error)
	LeaveRoom(ctx context.Context, playerID, roomID string) (*game.RoomState, error)
	KickPlayer(ctx context.Context, playerID, roomID, targetPlayerID string) (*game.RoomState, error)

	StartGame(ctx context.Context, playerID, roomID string) (*game.RoomState, error)
	SaveGameProgress(ctx context.Context, roomID, playerID, nextMove, lineID string, boxIDs []string) (*game.RoomState, error)
	ResetRoom(ctx context.Context, roomID string) error

	PlayerDisconnect(ctx context.Context, playerID, roomID string) (*game.RoomState, error)
	LeaveGame(ctx context.Context, playerID, roomID string) (*game.RoomState, error)
	ReconnectGame(ctx context.Context, playerID, roomID string) (*game.RoomState, *game.GameProgress, error)
}

type gameUsecase struct {
	cfg      *config.Config
	roomRepo repository.RoomRepository
	locks    *roomLocks
}

func NewGameUsecase(cfg *config.Config, roomRepo repository.RoomRepository) GameUsecase {
	return &gameUsecase{
		cfg:      cfg,
		roomRepo: roomRepo,
		locks:    newRoomLocks(),
	}
}

func (uc *gameUsecase) CreateRoom(ctx context.Context, playerID, playerName, gridSize string) (*game.RoomState, error) {
	roomID, err := uc.freshRoomID(ctx)
	if err != nil {
		return nil, err
	}

	release := uc.locks.Acquire(roomID)
	defer release()

	state := game.NewRoomState(roomID, playerID, playerName, gridSize)

	if err := uc.roomRepo.SaveState(ctx, state); err != nil {
		return nil, fmt.Errorf("create room: %w", err)
	}

	if err := uc.roomRepo.SaveProgress(ctx, roomID, game.NewGameProgress()); err != nil {
		return nil, fmt.Errorf("create room progress: %w", err)
	}

	return state, nil
}

// freshRoomID retries generation until the code is unused in the store.
func (uc *gameUsecase) freshRoomID(ctx context.Context) (string, error) {
	for {
		roomID, err := newRoomID(uc.cfg.Room.IDLength)
		if err != nil {
			return "", game.WrapError(game.KindInternalServerError, err)
		}

		exists, err := uc.roomRepo.RoomExists(ctx, roomID)
		if err != nil {
			return "", err
		}
		if !exists {
			return roomID, nil
		}
	}
}

func (uc *gameUsecase) JoinRoom(ctx context.Context, playerID, playerName, roomID string) (*game.RoomState, error) {
	release := uc.locks.Acquire(roomID)
	defer release()

	state, err := uc.roomRepo.GetState(ctx, roomID)
	if err != nil {
		return nil, err
	}

	if state.GameStarted {
		return nil, game.ErrGameStarted
	}
	if len(state.Players) >= uc.cfg.Room.MaxPlayers {
		return nil, game.ErrRoomFull
	}

	state.AddPlayer(playerID, playerName)

	if err := uc.roomRepo.SaveState(ctx, state); err != nil {
		return nil, err
	}

	return state, nil
}

func (uc *gameUsecase) RejoinRoom(ctx context.Context, playerID, playerName, roomID, gridSize string) (*game.RoomState, error) {
	release := uc.locks.Acquire(roomID)
	defer release()

	exists, err := uc.roomRepo.RoomExists(ctx, roomID)
	if err != nil {
		return nil, err
	}

	// The room may have been torn down between the player's disconnect and
	// their return. Recreate it from scratch so the returning player is not
	// stranded.
	if !exists {
		state := game.NewRoomState(roomID, playerID, playerName, gridSize)

		if err := uc.roomRepo.SaveState(ctx, state); err != nil {
			return nil, err
		}
		if err := uc.roomRepo.SaveProgress(ctx, roomID, game.NewGameProgress()); err != nil {
			return nil, err
		}

		return state, nil
	}

	state, err := uc.roomRepo.GetState(ctx, roomID)
	if err != nil {
		return nil, err
	}

	// Already seated: nothing to do.
	if state.HasPlayer(playerID) {
		return state, nil
	}

	if state.GameStarted {
		return nil, game.ErrGameStarted
	}
	if len(state.Players) >= uc.cfg.Room.MaxPlayers {
		return nil, game.ErrRoomFull
	}

	state.AddPlayer(playerID, playerName)

	if err := uc.roomRepo.SaveState(ctx, state); err != nil {
		return nil, err
	}

	return state, nil
}

func (uc *gameUsecase) LeaveRoom(ctx context.Context, playerID, roomID string) (*game.RoomState, error) {
	release := uc.locks.Acquire(roomID)
	defer release()

	state, err := uc.roomRepo.GetState(ctx, roomID)
	if err != nil {
		return nil, err
	}

	if len(state.Players) <= 1 {
		if err := uc.roomRepo.DeleteRoom(ctx, roomID); err != nil {
			return nil, err
		}
		return nil, nil
	}

	if !state.HasPlayer(playerID) {
		return nil, game.ErrPlayerNotFound
	}

	wasHost := state.Host == playerID
	state.RemovePlayer(playerID)

	if wasHost {
		state.Host = state.Players[0].PlayerID
	}

	if err := uc.roomRepo.SaveState(ctx, state); err != nil {
		return nil, err
	}

	return state, nil
}

func (uc *gameUsecase) KickPlayer(ctx context.Context, playerID, roomID, targetPlayerID string) (*game.RoomState, error) {
	release := uc.locks.Acquire(roomID)
	defer release()

	state, err := uc.roomRepo.GetState(ctx, roomID)
	if err != nil {
		return nil, err
	}

	if !state.HasPlayer(playerID) {
		return nil, game.ErrPlayerNotFound
	}
	if state.Host != playerID {
		return nil, game.ErrPermissionDenied
	}

	state.RemovePlayer(targetPlayerID)

	if err := uc.roomRepo.SaveState(ctx, state); err != nil {
		return nil, err
	}

	return state, nil
}

func (uc *gameUsecase) StartGame(ctx context.Context, playerID, roomID string) (*game.RoomState, error) {
	release := uc.locks.Acquire(roomID)
	defer release()

	state, err := uc.roomRepo.GetState(ctx, roomID)
	if err != nil {
		return nil, err
	}

	if !state.HasPlayer(playerID) {
		return nil, game.ErrPlayerNotFound
	}
	if state.Host != playerID {
		return nil, game.ErrPermissionDenied
	}
	if len(state.Players) < 2 {
		return nil, game.ErrPlayerCountLow
	}

	// The starter is always the first joined player.
	state.GameStarted = true
	state.NextMove = state.Players[0].PlayerID

	if err := uc.roomRepo.SaveState(ctx, state); err != nil {
		return nil, err
	}

	return state, nil
}

// SaveGameProgress appends the move to the log and advances the turn. Move
// legality is the clients' concern; the server only checks room and player
// existence. An empty nextMove advances to the next connected seat after
// the mover.
func (uc *gameUsecase) SaveGameProgress(ctx context.Context, roomID, playerID, nextMove, lineID string, boxIDs []string) (*game.RoomState, error) {
	release := uc.locks.Acquire(roomID)
	defer release()

	state, err := uc.roomRepo.GetState(ctx, roomID)
	if err != nil {
		return nil, err
	}

	if !state.GameStarted {
		return nil, game.ErrGameNotStarted
	}
	if !state.HasPlayer(playerID) {
		return nil, game.ErrPlayerNotFound
	}

	if nextMove == "" {
		nextMove, _ = state.NextConnected(playerID)
	} else if !state.HasPlayer(nextMove) {
		return nil, game.ErrPlayerNotFound
	}

	progress, err := uc.roomRepo.GetProgress(ctx, roomID)
	if err != nil {
		return nil, err
	}

	progress.Record(playerID, lineID, boxIDs)
	state.NextMove = nextMove

	if err := uc.roomRepo.SaveProgress(ctx, roomID, progress); err != nil {
		return nil, err
	}
	if err := uc.roomRepo.SaveState(ctx, state); err != nil {
		return nil, err
	}

	return state, nil
}

// ResetRoom is the terminal action after a finished game: both documents
// are deleted outright.
func (uc *gameUsecase) ResetRoom(ctx context.Context, roomID string) error {
	release := uc.locks.Acquire(roomID)
	defer release()

	if _, err := uc.roomRepo.GetState(ctx, roomID); err != nil {
		return err
	}

	return uc.roomRepo.DeleteRoom(ctx, roomID)
}

func (uc *gameUsecase) PlayerDisconnect(ctx context.Context, playerID, roomID string) (*game.RoomState, error) {
	release := uc.locks.Acquire(roomID)
	defer release()

	state, err := uc.roomRepo.GetState(ctx, roomID)
	if err != nil {
		return nil, err
	}

	if !state.GameStarted {
		// Before the game a disconnect is a plain leave.
		if len(state.Players) <= 1 {
			if err := uc.roomRepo.DeleteRoom(ctx, roomID); err != nil {
				return nil, err
			}
			return nil, nil
		}

		wasHost := state.Host == playerID
		state.RemovePlayer(playerID)

		if wasHost {
			state.Host = state.Players[0].PlayerID
		}

		if err := uc.roomRepo.SaveState(ctx, state); err != nil {
			return nil, err
		}

		return state, nil
	}

	return uc.markDisconnected(ctx, state, playerID)
}

func (uc *gameUsecase) LeaveGame(ctx context.Context, playerID, roomID string) (*game.RoomState, error) {
	release := uc.locks.Acquire(roomID)
	defer release()

	state, err := uc.roomRepo.GetState(ctx, roomID)
	if err != nil {
		return nil, err
	}

	if !state.GameStarted {
		return nil, game.ErrGameNotStarted
	}

	return uc.markDisconnected(ctx, state, playerID)
}

// markDisconnected keeps the seat but flips it disconnected, so turn order
// and progress survive the outage. An abandoned game (zero connected seats)
// tears the room down.
func (uc *gameUsecase) markDisconnected(ctx context.Context, state *game.RoomState, playerID string) (*game.RoomState, error) {
	state.SetConnected(playerID, false)

	if state.ConnectedCount() == 0 {
		if err := uc.roomRepo.DeleteRoom(ctx, state.RoomID); err != nil {
			return nil, err
		}
		return nil, nil
	}

	if err := uc.roomRepo.SaveState(ctx, state); err != nil {
		return nil, err
	}

	return state, nil
}

func (uc *gameUsecase) ReconnectGame(ctx context.Context, playerID, roomID string) (*game.RoomState, *game.GameProgress, error) {
	release := uc.locks.Acquire(roomID)
	defer release()

	state, err := uc.roomRepo.GetState(ctx, roomID)
	if err != nil {
		return nil, nil, err
	}

	// Reconnection only makes sense mid-game.
	if !state.GameStarted {
		return nil, nil, game.ErrDisconnected
	}

	if !state.SetConnected(playerID, true) {
		return nil, nil, game.ErrPlayerNotFound
	}

	if err := uc.roomRepo.SaveState(ctx, state); err != nil {
		return nil, nil, err
	}

	progress, err := uc.roomRepo.GetProgress(ctx, roomID)
	if err != nil {
		return nil, nil, err
	}

	return state, progress, nil
}
