package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/thearjunkv/dots-and-boxes-backend/internal/domain/game"
)

// Store is the minimal key-value contract the room repository needs. The
// backing store provides no transactions and no optimistic locking.
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// RoomRepository persists the two per-room documents. Serialization happens
// only at this boundary; callers never see raw encoded text.
type RoomRepository interface {
	RoomExists(ctx context.Context, roomID string) (bool, error)
	GetState(ctx context.Context, roomID string) (*game.RoomState, error)
	SaveState(ctx context.Context, state *game.RoomState) error
	GetProgress(ctx context.Context, roomID string) (*game.GameProgress, error)
	SaveProgress(ctx context.Context, roomID string, progress *game.GameProgress) error
	DeleteRoom(ctx context.Context, roomID string) error
}

type roomRepo struct {
	store Store
}

func NewRoomRepo(store Store) RoomRepository {
	return &roomRepo{store: store}
}

func stateKey(roomID string) string {
	return "room:" + roomID + ":gameState"
}

func progressKey(roomID string) string {
	return "room:" + roomID + ":savedGameProgress"
}

func (r *roomRepo) RoomExists(ctx context.Context, roomID string) (bool, error) {
	ok, err := r.store.Exists(ctx, stateKey(roomID))
	if err != nil {
		return false, game.WrapError(game.KindInternalServerError, err)
	}
	return ok, nil
}

func (r *roomRepo) GetState(ctx context.Context, roomID string) (*game.RoomState, error) {
	raw, ok, err := r.store.Get(ctx, stateKey(roomID))
	if err != nil {
		return nil, game.WrapError(game.KindInternalServerError, err)
	}
	if !ok {
		return nil, game.ErrRoomNotFound
	}

	var state game.RoomState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return nil, game.WrapError(game.KindInternalServerError, fmt.Errorf("decode room state: %w", err))
	}

	return &state, nil
}

func (r *roomRepo) SaveState(ctx context.Context, state *game.RoomState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return game.WrapError(game.KindInternalServerError, fmt.Errorf("encode room state: %w", err))
	}

	if err := r.store.Set(ctx, stateKey(state.RoomID), string(raw)); err != nil {
		return game.WrapError(game.KindInternalServerError, err)
	}

	return nil
}

func (r *roomRepo) GetProgress(ctx context.Context, roomID string) (*game.GameProgress, error) {
	raw, ok, err := r.store.Get(ctx, progressKey(roomID))
	if err != nil {
		return nil, game.WrapError(game.KindInternalServerError, err)
	}
	if !ok {
		return nil, game.ErrRoomNotFound
	}

	var progress game.GameProgress
	if err := json.Unmarshal([]byte(raw), &progress); err != nil {
		return nil, game.WrapError(game.KindInternalServerError, fmt.Errorf("decode game progress: %w", err))
	}

	return &progress, nil
}

func (r *roomRepo) SaveProgress(ctx context.Context, roomID string, progress *game.GameProgress) error {
	raw, err := json.Marshal(progress)
	if err != nil {
		return game.WrapError(game.KindInternalServerError, fmt.Errorf("encode game progress: %w", err))
	}

	if err := r.store.Set(ctx, progressKey(roomID), string(raw)); err != nil {
		return game.WrapError(game.KindInternalServerError, err)
	}

	return nil
}

func (r *roomRepo) DeleteRoom(ctx context.Context, roomID string) error {
	if err := r.store.Delete(ctx, stateKey(roomID), progressKey(roomID)); err != nil {
		return game.WrapError(game.KindInternalServerError, err)
	}
	return nil
}
