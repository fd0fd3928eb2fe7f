package usecase

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thearjunkv/dots-and-boxes-backend/internal/application/config"
	"github.com/thearjunkv/dots-and-boxes-backend/internal/domain/game"
	"github.com/thearjunkv/dots-and-boxes-backend/internal/infra/adapters/memory"
	"github.com/thearjunkv/dots-and-boxes-backend/internal/infra/repository"
)

func newTestUsecase(maxPlayers int) (GameUsecase, repository.RoomRepository) {
	cfg := &config.Config{
		Room: config.RoomConfig{MaxPlayers: maxPlayers, IDLength: 6},
	}
	repo := repository.NewRoomRepo(memory.NewStore())

	return NewGameUsecase(cfg, repo), repo
}

func createRoomWith(t *testing.T, uc GameUsecase, playerIDs ...string) *game.RoomState {
	t.Helper()
	ctx := context.Background()

	state, err := uc.CreateRoom(ctx, playerIDs[0], "name-"+playerIDs[0], "6")
	require.NoError(t, err)

	for _, id := range playerIDs[1:] {
		state, err = uc.JoinRoom(ctx, id, "name-"+id, state.RoomID)
		require.NoError(t, err)
	}

	return state
}

func TestCreateRoom(t *testing.T) {
	uc, repo := newTestUsecase(4)
	ctx := context.Background()

	state, err := uc.CreateRoom(ctx, "p1", "Alice", "6")
	require.NoError(t, err)

	assert.Len(t, state.RoomID, 6)
	assert.Equal(t, "p1", state.Host)
	assert.False(t, state.GameStarted)
	assert.Empty(t, state.NextMove)
	assert.Equal(t, "6", state.GridSize)
	require.Len(t, state.Players, 1)
	assert.True(t, state.Players[0].IsConnected)

	// Both documents exist together from creation on.
	exists, err := repo.RoomExists(ctx, state.RoomID)
	require.NoError(t, err)
	assert.True(t, exists)

	progress, err := repo.GetProgress(ctx, state.RoomID)
	require.NoError(t, err)
	assert.Empty(t, progress.SelectedLines)
	assert.Empty(t, progress.CapturedBoxes)
}

func TestCreateRoomRetriesOnCollision(t *testing.T) {
	cfg := &config.Config{Room: config.RoomConfig{MaxPlayers: 4, IDLength: 6}}
	repo := &collidingRepo{
		RoomRepository: repository.NewRoomRepo(memory.NewStore()),
		collisions:     3,
	}
	uc := NewGameUsecase(cfg, repo)

	state, err := uc.CreateRoom(context.Background(), "p1", "Alice", "6")
	require.NoError(t, err)

	assert.Len(t, repo.checked, 4)
	assert.Equal(t, state.RoomID, repo.checked[3])
}

func TestJoinRoom(t *testing.T) {
	uc, _ := newTestUsecase(4)
	ctx := context.Background()

	state := createRoomWith(t, uc, "p1")

	joined, err := uc.JoinRoom(ctx, "p2", "Bob", state.RoomID)
	require.NoError(t, err)
	require.Len(t, joined.Players, 2)
	assert.Equal(t, "p2", joined.Players[1].PlayerID)
	assert.False(t, joined.GameStarted)
}

func TestJoinRoomNotFound(t *testing.T) {
	uc, _ := newTestUsecase(4)

	_, err := uc.JoinRoom(context.Background(), "p1", "Alice", "MISSING")
	assert.ErrorIs(t, err, game.ErrRoomNotFound)
}

func TestJoinRoomAfterStart(t *testing.T) {
	uc, _ := newTestUsecase(4)
	ctx := context.Background()

	state := createRoomWith(t, uc, "p1", "p2")
	_, err := uc.StartGame(ctx, "p1", state.RoomID)
	require.NoError(t, err)

	_, err = uc.JoinRoom(ctx, "p3", "Carol", state.RoomID)
	assert.ErrorIs(t, err, game.ErrGameStarted)
}

func TestJoinRoomFull(t *testing.T) {
	uc, _ := newTestUsecase(2)
	ctx := context.Background()

	state := createRoomWith(t, uc, "p1", "p2")

	_, err := uc.JoinRoom(ctx, "p3", "Carol", state.RoomID)
	assert.ErrorIs(t, err, game.ErrRoomFull)

	// Capacity never yields, no matter how often it is probed.
	_, err = uc.JoinRoom(ctx, "p4", "Dave", state.RoomID)
	assert.ErrorIs(t, err, game.ErrRoomFull)
}

func TestConcurrentJoinsRespectCapacity(t *testing.T) {
	uc, repo := newTestUsecase(2)
	ctx := context.Background()

	state := createRoomWith(t, uc, "p1")

	const contenders = 8

	var wg sync.WaitGroup
	errs := make([]error, contenders)

	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, errs[n] = uc.JoinRoom(ctx, string(rune('a'+n)), "player", state.RoomID)
		}(i)
	}
	wg.Wait()

	admitted := 0
	for _, err := range errs {
		if err == nil {
			admitted++
		} else {
			assert.ErrorIs(t, err, game.ErrRoomFull)
		}
	}
	assert.Equal(t, 1, admitted)

	final, err := repo.GetState(ctx, state.RoomID)
	require.NoError(t, err)
	assert.Len(t, final.Players, 2)
}

func TestRejoinRoomIdempotent(t *testing.T) {
	uc, _ := newTestUsecase(4)
	ctx := context.Background()

	state := createRoomWith(t, uc, "p1", "p2")

	first, err := uc.RejoinRoom(ctx, "p2", "Bob", state.RoomID, "6")
	require.NoError(t, err)
	second, err := uc.RejoinRoom(ctx, "p2", "Bob", state.RoomID, "6")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, second.Players, 2)
}

func TestRejoinRoomRecreatesTornDownRoom(t *testing.T) {
	uc, repo := newTestUsecase(4)
	ctx := context.Background()

	state, err := uc.RejoinRoom(ctx, "p1", "Alice", "GONE42", "8")
	require.NoError(t, err)

	assert.Equal(t, "GONE42", state.RoomID)
	assert.Equal(t, "8", state.GridSize)
	assert.Equal(t, "p1", state.Host)
	assert.False(t, state.GameStarted)

	progress, err := repo.GetProgress(ctx, "GONE42")
	require.NoError(t, err)
	assert.Empty(t, progress.SelectedLines)
}

func TestRejoinRoomFull(t *testing.T) {
	uc, _ := newTestUsecase(2)
	ctx := context.Background()

	state := createRoomWith(t, uc, "p1", "p2")

	_, err := uc.RejoinRoom(ctx, "p3", "Carol", state.RoomID, "6")
	assert.ErrorIs(t, err, game.ErrRoomFull)
}

func TestLeaveRoomTransfersHost(t *testing.T) {
	uc, _ := newTestUsecase(4)
	ctx := context.Background()

	state := createRoomWith(t, uc, "p1", "p2", "p3")

	after, err := uc.LeaveRoom(ctx, "p1", state.RoomID)
	require.NoError(t, err)
	require.NotNil(t, after)

	// Host moves to the first remaining seat.
	assert.Equal(t, "p2", after.Host)
	assert.Len(t, after.Players, 2)
}

func TestLeaveRoomLastPlayerDeletesRoom(t *testing.T) {
	uc, repo := newTestUsecase(4)
	ctx := context.Background()

	state := createRoomWith(t, uc, "p1")

	after, err := uc.LeaveRoom(ctx, "p1", state.RoomID)
	require.NoError(t, err)
	assert.Nil(t, after)

	exists, err := repo.RoomExists(ctx, state.RoomID)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestLeaveRoomUnknownPlayer(t *testing.T) {
	uc, _ := newTestUsecase(4)

	state := createRoomWith(t, uc, "p1", "p2")

	_, err := uc.LeaveRoom(context.Background(), "ghost", state.RoomID)
	assert.ErrorIs(t, err, game.ErrPlayerNotFound)
}

func TestKickPlayer(t *testing.T) {
	uc, _ := newTestUsecase(4)
	ctx := context.Background()

	state := createRoomWith(t, uc, "p1", "p2", "p3")

	after, err := uc.KickPlayer(ctx, "p1", state.RoomID, "p2")
	require.NoError(t, err)

	assert.Len(t, after.Players, 2)
	assert.False(t, after.HasPlayer("p2"))
	assert.Equal(t, "p1", after.Host)
}

func TestKickPlayerRequiresHost(t *testing.T) {
	uc, repo := newTestUsecase(4)
	ctx := context.Background()

	state := createRoomWith(t, uc, "p1", "p2", "p3")

	_, err := uc.KickPlayer(ctx, "p2", state.RoomID, "p3")
	assert.ErrorIs(t, err, game.ErrPermissionDenied)

	// Failed precondition leaves the document untouched.
	reloaded, err := repo.GetState(ctx, state.RoomID)
	require.NoError(t, err)
	assert.Len(t, reloaded.Players, 3)
}

func TestKickPlayerActorNotSeated(t *testing.T) {
	uc, _ := newTestUsecase(4)

	state := createRoomWith(t, uc, "p1", "p2")

	_, err := uc.KickPlayer(context.Background(), "ghost", state.RoomID, "p2")
	assert.ErrorIs(t, err, game.ErrPlayerNotFound)
}

func TestKickAbsentTargetIsNoop(t *testing.T) {
	uc, _ := newTestUsecase(4)

	state := createRoomWith(t, uc, "p1", "p2")

	after, err := uc.KickPlayer(context.Background(), "p1", state.RoomID, "ghost")
	require.NoError(t, err)
	assert.Len(t, after.Players, 2)
}

func TestStartGame(t *testing.T) {
	uc, _ := newTestUsecase(4)
	ctx := context.Background()

	state := createRoomWith(t, uc, "p1", "p2", "p3")

	started, err := uc.StartGame(ctx, "p1", state.RoomID)
	require.NoError(t, err)

	assert.True(t, started.GameStarted)
	// The starter is deterministic: always the first joined player.
	assert.Equal(t, "p1", started.NextMove)
}

func TestStartGameNonHost(t *testing.T) {
	uc, repo := newTestUsecase(4)
	ctx := context.Background()

	state := createRoomWith(t, uc, "p1", "p2")

	_, err := uc.StartGame(ctx, "p2", state.RoomID)
	assert.ErrorIs(t, err, game.ErrPermissionDenied)

	reloaded, err := repo.GetState(ctx, state.RoomID)
	require.NoError(t, err)
	assert.False(t, reloaded.GameStarted)
	assert.Empty(t, reloaded.NextMove)
}

func TestStartGameTooFewPlayers(t *testing.T) {
	uc, _ := newTestUsecase(4)

	state := createRoomWith(t, uc, "p1")

	_, err := uc.StartGame(context.Background(), "p1", state.RoomID)
	assert.ErrorIs(t, err, game.ErrPlayerCountLow)
}

func TestSaveGameProgress(t *testing.T) {
	uc, repo := newTestUsecase(4)
	ctx := context.Background()

	state := createRoomWith(t, uc, "p1", "p2")
	_, err := uc.StartGame(ctx, "p1", state.RoomID)
	require.NoError(t, err)

	after, err := uc.SaveGameProgress(ctx, state.RoomID, "p1", "p2", "line-1", []string{"box-1", "box-2"})
	require.NoError(t, err)
	assert.Equal(t, "p2", after.NextMove)

	progress, err := repo.GetProgress(ctx, state.RoomID)
	require.NoError(t, err)
	require.Len(t, progress.SelectedLines, 1)
	assert.Equal(t, game.SelectedLine{LineID: "line-1", PlayerID: "p1"}, progress.SelectedLines[0])
	require.Len(t, progress.CapturedBoxes, 2)
	assert.Equal(t, game.CapturedBox{BoxID: "box-2", PlayerID: "p1"}, progress.CapturedBoxes[1])
}

func TestSaveGameProgressAdvancesWhenNextMoveEmpty(t *testing.T) {
	uc, _ := newTestUsecase(4)
	ctx := context.Background()

	state := createRoomWith(t, uc, "p1", "p2", "p3")
	_, err := uc.StartGame(ctx, "p1", state.RoomID)
	require.NoError(t, err)

	// p2 is disconnected, so the turn passes from p1 to p3.
	_, err = uc.PlayerDisconnect(ctx, "p2", state.RoomID)
	require.NoError(t, err)

	after, err := uc.SaveGameProgress(ctx, state.RoomID, "p1", "", "line-1", nil)
	require.NoError(t, err)
	assert.Equal(t, "p3", after.NextMove)
}

func TestSaveGameProgressUnknownNextMove(t *testing.T) {
	uc, _ := newTestUsecase(4)
	ctx := context.Background()

	state := createRoomWith(t, uc, "p1", "p2")
	_, err := uc.StartGame(ctx, "p1", state.RoomID)
	require.NoError(t, err)

	_, err = uc.SaveGameProgress(ctx, state.RoomID, "p1", "ghost", "line-1", nil)
	assert.ErrorIs(t, err, game.ErrPlayerNotFound)
}

func TestSaveGameProgressBeforeStart(t *testing.T) {
	uc, _ := newTestUsecase(4)

	state := createRoomWith(t, uc, "p1", "p2")

	_, err := uc.SaveGameProgress(context.Background(), state.RoomID, "p1", "p2", "line-1", nil)
	assert.ErrorIs(t, err, game.ErrGameNotStarted)
}

func TestResetRoomDeletesBothDocuments(t *testing.T) {
	uc, repo := newTestUsecase(4)
	ctx := context.Background()

	state := createRoomWith(t, uc, "p1", "p2")

	require.NoError(t, uc.ResetRoom(ctx, state.RoomID))

	exists, err := repo.RoomExists(ctx, state.RoomID)
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = repo.GetProgress(ctx, state.RoomID)
	assert.ErrorIs(t, err, game.ErrRoomNotFound)

	assert.ErrorIs(t, uc.ResetRoom(ctx, state.RoomID), game.ErrRoomNotFound)
}

func TestPlayerDisconnectBeforeStart(t *testing.T) {
	uc, _ := newTestUsecase(4)
	ctx := context.Background()

	state := createRoomWith(t, uc, "p1", "p2")

	after, err := uc.PlayerDisconnect(ctx, "p1", state.RoomID)
	require.NoError(t, err)
	require.NotNil(t, after)

	// Pre-game the seat is dropped, not marked, and the host moves on.
	assert.False(t, after.HasPlayer("p1"))
	assert.Equal(t, "p2", after.Host)
}

func TestPlayerDisconnectDuringGameKeepsSeat(t *testing.T) {
	uc, _ := newTestUsecase(4)
	ctx := context.Background()

	state := createRoomWith(t, uc, "p1", "p2")
	_, err := uc.StartGame(ctx, "p1", state.RoomID)
	require.NoError(t, err)

	after, err := uc.PlayerDisconnect(ctx, "p1", state.RoomID)
	require.NoError(t, err)
	require.NotNil(t, after)

	require.True(t, after.HasPlayer("p1"))
	assert.False(t, after.Players[0].IsConnected)
	// The turn slot is preserved for the disconnected seat.
	assert.Equal(t, "p1", after.NextMove)
}

func TestAbandonedGameIsTornDown(t *testing.T) {
	uc, repo := newTestUsecase(4)
	ctx := context.Background()

	state := createRoomWith(t, uc, "p1", "p2")
	_, err := uc.StartGame(ctx, "p1", state.RoomID)
	require.NoError(t, err)

	after, err := uc.PlayerDisconnect(ctx, "p1", state.RoomID)
	require.NoError(t, err)
	require.NotNil(t, after)

	after, err = uc.PlayerDisconnect(ctx, "p2", state.RoomID)
	require.NoError(t, err)
	assert.Nil(t, after)

	exists, err := repo.RoomExists(ctx, state.RoomID)
	require.NoError(t, err)
	assert.False(t, exists)

	// Reconnecting into the torn-down room fails cleanly.
	_, _, err = uc.ReconnectGame(ctx, "p1", state.RoomID)
	assert.ErrorIs(t, err, game.ErrRoomNotFound)
}

func TestLeaveGame(t *testing.T) {
	uc, _ := newTestUsecase(4)
	ctx := context.Background()

	state := createRoomWith(t, uc, "p1", "p2")

	_, err := uc.LeaveGame(ctx, "p1", state.RoomID)
	assert.ErrorIs(t, err, game.ErrGameNotStarted)

	_, err = uc.StartGame(ctx, "p1", state.RoomID)
	require.NoError(t, err)

	after, err := uc.LeaveGame(ctx, "p1", state.RoomID)
	require.NoError(t, err)
	require.NotNil(t, after)
	assert.True(t, after.HasPlayer("p1"))
	assert.False(t, after.Players[0].IsConnected)
}

func TestReconnectGame(t *testing.T) {
	uc, _ := newTestUsecase(4)
	ctx := context.Background()

	state := createRoomWith(t, uc, "p1", "p2")
	_, err := uc.StartGame(ctx, "p1", state.RoomID)
	require.NoError(t, err)

	_, err = uc.SaveGameProgress(ctx, state.RoomID, "p1", "p2", "line-1", []string{"box-1"})
	require.NoError(t, err)

	_, err = uc.PlayerDisconnect(ctx, "p1", state.RoomID)
	require.NoError(t, err)

	after, progress, err := uc.ReconnectGame(ctx, "p1", state.RoomID)
	require.NoError(t, err)

	assert.True(t, after.Players[0].IsConnected)
	// The full log comes back so the client can replay history.
	require.Len(t, progress.SelectedLines, 1)
	assert.Equal(t, "line-1", progress.SelectedLines[0].LineID)
	require.Len(t, progress.CapturedBoxes, 1)
}

func TestReconnectGameBeforeStart(t *testing.T) {
	uc, _ := newTestUsecase(4)

	state := createRoomWith(t, uc, "p1", "p2")

	_, _, err := uc.ReconnectGame(context.Background(), "p1", state.RoomID)
	assert.ErrorIs(t, err, game.ErrDisconnected)
}

func TestReconnectGameUnknownPlayer(t *testing.T) {
	uc, _ := newTestUsecase(4)
	ctx := context.Background()

	state := createRoomWith(t, uc, "p1", "p2")
	_, err := uc.StartGame(ctx, "p1", state.RoomID)
	require.NoError(t, err)

	_, _, err = uc.ReconnectGame(ctx, "ghost", state.RoomID)
	assert.ErrorIs(t, err, game.ErrPlayerNotFound)
}

// The host is either gone with the room or seated, no matter the order of
// membership changes.
func TestHostInvariant(t *testing.T) {
	uc, repo := newTestUsecase(4)
	ctx := context.Background()

	state := createRoomWith(t, uc, "p1", "p2", "p3", "p4")
	roomID := state.RoomID

	_, err := uc.KickPlayer(ctx, "p1", roomID, "p3")
	require.NoError(t, err)
	assertHostSeated(t, repo, roomID)

	_, err = uc.LeaveRoom(ctx, "p1", roomID)
	require.NoError(t, err)
	assertHostSeated(t, repo, roomID)

	_, err = uc.LeaveRoom(ctx, "p2", roomID)
	require.NoError(t, err)
	assertHostSeated(t, repo, roomID)

	after, err := uc.LeaveRoom(ctx, "p4", roomID)
	require.NoError(t, err)
	assert.Nil(t, after)
}

func assertHostSeated(t *testing.T, repo repository.RoomRepository, roomID string) {
	t.Helper()

	state, err := repo.GetState(context.Background(), roomID)
	require.NoError(t, err)
	assert.True(t, state.HasPlayer(state.Host), "host %q is not seated", state.Host)
}

// The §8-style end-to-end chain: create, join, start, move, disconnects.
func TestFullSessionScenario(t *testing.T) {
	uc, repo := newTestUsecase(4)
	ctx := context.Background()

	state, err := uc.CreateRoom(ctx, "A", "Alice", "6")
	require.NoError(t, err)
	roomID := state.RoomID
	require.Len(t, state.Players, 1)
	assert.False(t, state.GameStarted)

	state, err = uc.JoinRoom(ctx, "B", "Bob", roomID)
	require.NoError(t, err)
	require.Len(t, state.Players, 2)
	assert.False(t, state.GameStarted)

	state, err = uc.StartGame(ctx, "A", roomID)
	require.NoError(t, err)
	assert.True(t, state.GameStarted)
	assert.Equal(t, "A", state.NextMove)

	state, err = uc.SaveGameProgress(ctx, roomID, "A", "B", "line-1", nil)
	require.NoError(t, err)
	assert.Equal(t, "B", state.NextMove)

	progress, err := repo.GetProgress(ctx, roomID)
	require.NoError(t, err)
	require.Len(t, progress.SelectedLines, 1)

	state, err = uc.PlayerDisconnect(ctx, "A", roomID)
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.False(t, state.Players[0].IsConnected)

	state, err = uc.PlayerDisconnect(ctx, "B", roomID)
	require.NoError(t, err)
	assert.Nil(t, state)

	exists, err := repo.RoomExists(ctx, roomID)
	require.NoError(t, err)
	assert.False(t, exists)
}

// collidingRepo reports the first few generated room ids as taken.
type collidingRepo struct {
	repository.RoomRepository

	collisions int
	checked    []string
}

func (r *collidingRepo) RoomExists(ctx context.Context, roomID string) (bool, error) {
	r.checked = append(r.checked, roomID)
	if r.collisions > 0 {
		r.collisions--
		return true, nil
	}
	return r.RoomRepository.RoomExists(ctx, roomID)
}
