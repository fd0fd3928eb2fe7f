package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/thearjunkv/dots-and-boxes-backend/internal/application/config"
	"github.com/thearjunkv/dots-and-boxes-backend/internal/application/constant"
	"github.com/thearjunkv/dots-and-boxes-backend/internal/application/metric"
	"github.com/thearjunkv/dots-and-boxes-backend/internal/domain/events"
	"github.com/thearjunkv/dots-and-boxes-backend/internal/domain/game"
	"github.com/thearjunkv/dots-and-boxes-backend/internal/infra/adapters/memory"
	"github.com/thearjunkv/dots-and-boxes-backend/internal/usecase"
)

// WebSocketHandler is the gateway between the transport and the session
// manager: it extracts typed payloads, invokes exactly one operation and
// fans the result out to the room's connected members. Errors reach only
// the originating client.
type WebSocketHandler struct {
	upgrader *websocket.Upgrader

	gameUsecase usecase.GameUsecase

	connRepo    memory.ConnectionRepository
	membersRepo memory.RoomMembersRepository
}

func NewWebSocketHandler(
	cfg *config.Config,
	gameUsecase usecase.GameUsecase,
	connRepo memory.ConnectionRepository,
	membersRepo memory.RoomMembersRepository,
) *WebSocketHandler {
	return &WebSocketHandler{
		upgrader: &websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if cfg.Debug {
					return true
				}

				return r.Header.Get("Origin") == cfg.Domain
			},
		},
		gameUsecase: gameUsecase,
		connRepo:    connRepo,
		membersRepo: membersRepo,
	}
}

// session is the per-connection context the gateway maintains on behalf of
// the client. The core never sees it.
type session struct {
	clientID   uuid.UUID
	ws         *memory.SafeConn
	playerID   string
	playerName string
	roomID     string
}

func (h *WebSocketHandler) Handle(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		slog.Error(
			"WebSocket upgrade error",
			slog.Any(constant.Error, err),
		)
		return err
	}
	defer conn.Close()

	sess := &session{
		clientID: uuid.New(),
		ws:       memory.NewSafeConn(conn),
	}

	slog.Info("WebSocket connection established", slog.String(constant.ClientID, sess.clientID.String()))

	// The request context is canceled once the connection drops; the
	// disconnect bookkeeping must still reach the store.
	defer h.handleTransportDisconnect(context.WithoutCancel(c.Request().Context()), sess)

	if err := conn.SetReadDeadline(time.Now().Add(60 * time.Second)); err != nil {
		return err
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	})

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	go func() {
		for {
			select {
			case <-ticker.C:
				if err := sess.ws.Ping(); err != nil {
					return
				}
			case <-c.Request().Context().Done():
				return
			}
		}
	}()

	for {
		select {
		case <-c.Request().Context().Done():
			return nil
		default:
			_, raw, err := conn.ReadMessage()
			if err != nil {
				h.logWebsocketError(sess, err)
				return nil
			}

			msg := new(events.Message)
			if err := json.Unmarshal(raw, &msg); err != nil {
				slog.Error("unmarshal websocket message", slog.Any(constant.Error, err))
				h.writeError(sess, game.ErrInternalServerError)
				continue
			}

			h.dispatch(c.Request().Context(), sess, msg)
		}
	}
}

// dispatch routes one client event to its session manager operation.
// Failures are reported to the caller only; broadcasts happen solely after
// a successful operation inside the individual handlers.
func (h *WebSocketHandler) dispatch(ctx context.Context, sess *session, msg *events.Message) {
	var err error

	switch msg.Type {
	case events.TypeRoomCreate:
		err = h.handleRoomCreate(ctx, sess, msg.Data)
	case events.TypeRoomJoin:
		err = h.handleRoomJoin(ctx, sess, msg.Data)
	case events.TypeRoomLeave:
		err = h.handleRoomLeave(ctx, sess)
	case events.TypeRoomKick:
		err = h.handleRoomKick(ctx, sess, msg.Data)
	case events.TypeRoomRejoin:
		err = h.handleRoomRejoin(ctx, sess, msg.Data)
	case events.TypeGameStart:
		err = h.handleGameStart(ctx, sess)
	case events.TypeGameMove:
		err = h.handleGameMove(ctx, sess, msg.Data)
	case events.TypeGameLeave:
		err = h.handleGameLeave(ctx, sess)
	case events.TypeGameReconnect:
		err = h.handleGameReconnect(ctx, sess, msg.Data)
	default:
		err = errors.New("unknown message type")
	}

	metric.RecordGameOperation(msg.Type, err)

	if err != nil {
		slog.Error(
			"handle client event",
			slog.String("event", msg.Type),
			slog.Any(constant.Error, err),
			slog.String(constant.PlayerID, sess.playerID),
			slog.String(constant.RoomID, sess.roomID),
		)
		h.writeError(sess, err)
	}
}

func (h *WebSocketHandler) handleRoomCreate(ctx context.Context, sess *session, data json.RawMessage) error {
	var ev events.RoomCreateEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return fmt.Errorf("unmarshal room create event: %w", err)
	}

	state, err := h.gameUsecase.CreateRoom(ctx, ev.PlayerID, ev.PlayerName, ev.GridSize)
	if err != nil {
		return err
	}

	h.identify(sess, ev.PlayerID, ev.PlayerName, state.RoomID)

	return h.ack(sess, events.TypeRoomCreateAck, events.GameStateEvent{GameState: state})
}

func (h *WebSocketHandler) handleRoomJoin(ctx context.Context, sess *session, data json.RawMessage) error {
	var ev events.RoomJoinEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return fmt.Errorf("unmarshal room join event: %w", err)
	}

	roomID := normalizeRoomID(ev.RoomID)

	state, err := h.gameUsecase.JoinRoom(ctx, ev.PlayerID, ev.PlayerName, roomID)
	if err != nil {
		return err
	}

	h.identify(sess, ev.PlayerID, ev.PlayerName, roomID)
	h.broadcast(roomID, events.TypeRoomRefreshPreGame, events.GameStateEvent{GameState: state})

	return h.ack(sess, events.TypeRoomJoinAck, events.GameStateEvent{GameState: state})
}

func (h *WebSocketHandler) handleRoomLeave(ctx context.Context, sess *session) error {
	roomID := sess.roomID

	state, err := h.gameUsecase.LeaveRoom(ctx, sess.playerID, roomID)
	if err != nil {
		return err
	}

	h.leaveRoomGrouping(sess)

	if err := h.ack(sess, events.TypeRoomLeaveAck, nil); err != nil {
		return err
	}

	if state != nil {
		h.broadcast(roomID, events.TypeRoomRefreshPreGame, events.GameStateEvent{GameState: state})
	} else {
		h.membersRepo.RemoveRoom(roomID)
	}

	return nil
}

func (h *WebSocketHandler) handleRoomKick(ctx context.Context, sess *session, data json.RawMessage) error {
	var ev events.RoomKickEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return fmt.Errorf("unmarshal room kick event: %w", err)
	}

	state, err := h.gameUsecase.KickPlayer(ctx, sess.playerID, sess.roomID, ev.TargetPlayerID)
	if err != nil {
		return err
	}

	// The kicked player is detached from the room grouping and told why.
	h.membersRepo.RemoveMember(sess.roomID, ev.TargetPlayerID)
	if msg, err := events.NewMessage(events.TypeRoomKicked, nil); err == nil {
		h.connRepo.Write(ev.TargetPlayerID, msg)
	}

	if err := h.ack(sess, events.TypeRoomKickAck, nil); err != nil {
		return err
	}

	h.broadcast(sess.roomID, events.TypeRoomRefreshPreGame, events.GameStateEvent{GameState: state})

	return nil
}

func (h *WebSocketHandler) handleRoomRejoin(ctx context.Context, sess *session, data json.RawMessage) error {
	var ev events.RoomRejoinEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return fmt.Errorf("unmarshal room rejoin event: %w", err)
	}

	roomID := normalizeRoomID(ev.RoomID)

	state, err := h.gameUsecase.RejoinRoom(ctx, ev.PlayerID, ev.PlayerName, roomID, ev.GridSize)
	if err != nil {
		return err
	}

	h.identify(sess, ev.PlayerID, ev.PlayerName, roomID)
	h.broadcast(roomID, events.TypeRoomRefreshPreGame, events.GameStateEvent{GameState: state})

	return h.ack(sess, events.TypeRoomRejoinAck, events.GameStateEvent{GameState: state})
}

func (h *WebSocketHandler) handleGameStart(ctx context.Context, sess *session) error {
	state, err := h.gameUsecase.StartGame(ctx, sess.playerID, sess.roomID)
	if err != nil {
		return err
	}

	h.broadcast(sess.roomID, events.TypeGameStarted, events.GameStateEvent{GameState: state})

	return h.ack(sess, events.TypeGameStartAck, nil)
}

func (h *WebSocketHandler) handleGameMove(ctx context.Context, sess *session, data json.RawMessage) error {
	var ev events.GameMoveEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return fmt.Errorf("unmarshal game move event: %w", err)
	}

	state, err := h.gameUsecase.SaveGameProgress(ctx, sess.roomID, sess.playerID, ev.NextMove, ev.SelectedLine, ev.CapturedBoxes)
	if err != nil {
		return err
	}

	h.broadcast(sess.roomID, events.TypeGameNewMove, events.NewMoveEvent{
		SelectedLine:  ev.SelectedLine,
		CapturedBoxes: ev.CapturedBoxes,
		GameState:     state,
	})

	if err := h.ack(sess, events.TypeGameMoveAck, nil); err != nil {
		return err
	}

	// A finished game tears the room down after the final move has been
	// fanned out.
	if ev.IsLastMove {
		if err := h.gameUsecase.ResetRoom(ctx, sess.roomID); err != nil {
			return err
		}
		h.membersRepo.RemoveRoom(sess.roomID)
	}

	return nil
}

func (h *WebSocketHandler) handleGameLeave(ctx context.Context, sess *session) error {
	roomID := sess.roomID

	state, err := h.gameUsecase.LeaveGame(ctx, sess.playerID, roomID)
	if err != nil {
		return err
	}

	h.leaveRoomGrouping(sess)

	if err := h.ack(sess, events.TypeRoomLeaveAck, nil); err != nil {
		return err
	}

	if state != nil {
		h.broadcast(roomID, events.TypePlayerDisconnected, events.GameStateEvent{GameState: state})
	} else {
		h.membersRepo.RemoveRoom(roomID)
	}

	return nil
}

func (h *WebSocketHandler) handleGameReconnect(ctx context.Context, sess *session, data json.RawMessage) error {
	var ev events.GameReconnectEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return fmt.Errorf("unmarshal game reconnect event: %w", err)
	}

	roomID := normalizeRoomID(ev.RoomID)

	state, progress, err := h.gameUsecase.ReconnectGame(ctx, ev.PlayerID, roomID)
	if err != nil {
		return err
	}

	playerName := ""
	if i := state.Seat(ev.PlayerID); i != -1 {
		playerName = state.Players[i].PlayerName
	}

	h.identify(sess, ev.PlayerID, playerName, roomID)
	h.broadcast(roomID, events.TypePlayerReconnected, events.GameStateEvent{GameState: state})

	return h.ack(sess, events.TypeGameReconnectAck, events.ReconnectEvent{
		GameState:    state,
		GameProgress: progress,
	})
}

// handleTransportDisconnect runs when the connection drops for any reason.
// An identified player still seated in a room is marked disconnected (or
// removed pre-game) and the room is told.
func (h *WebSocketHandler) handleTransportDisconnect(ctx context.Context, sess *session) {
	if sess.playerID == "" {
		return
	}

	defer h.connRepo.Remove(sess.playerID)

	if sess.roomID == "" {
		return
	}

	roomID := sess.roomID
	h.leaveRoomGrouping(sess)

	state, err := h.gameUsecase.PlayerDisconnect(ctx, sess.playerID, roomID)
	if err != nil {
		// The room may already be gone, torn down after the final move;
		// then there is nothing to tell anyone.
		if !errors.Is(err, game.ErrRoomNotFound) {
			slog.Error(
				"handle player disconnect",
				slog.Any(constant.Error, err),
				slog.String(constant.PlayerID, sess.playerID),
				slog.String(constant.RoomID, roomID),
			)
		}
		return
	}

	if state != nil {
		h.broadcast(roomID, events.TypePlayerDisconnected, events.GameStateEvent{GameState: state})
	} else {
		h.membersRepo.RemoveRoom(roomID)
	}
}

// identify binds the player identity and room to this connection.
func (h *WebSocketHandler) identify(sess *session, playerID, playerName, roomID string) {
	sess.playerID = playerID
	sess.playerName = playerName
	sess.roomID = roomID

	h.connRepo.Add(playerID, sess.ws)
	h.membersRepo.AddMember(roomID, playerID)
}

func (h *WebSocketHandler) leaveRoomGrouping(sess *session) {
	h.membersRepo.RemoveMember(sess.roomID, sess.playerID)
	sess.roomID = ""
}

func (h *WebSocketHandler) ack(sess *session, eventType string, payload any) error {
	msg, err := events.NewMessage(eventType, payload)
	if err != nil {
		return err
	}

	return sess.ws.WriteJSON(msg)
}

func (h *WebSocketHandler) broadcast(roomID, eventType string, payload any) {
	msg, err := events.NewMessage(eventType, payload)
	if err != nil {
		slog.Error("marshal broadcast", slog.Any(constant.Error, err))
		return
	}

	for _, playerID := range h.membersRepo.GetMembers(roomID) {
		h.connRepo.Write(playerID, msg)
	}
}

// writeError reports a failed operation to the originating client only,
// identified by the error kind rather than message text.
func (h *WebSocketHandler) writeError(sess *session, opErr error) {
	msg, err := events.NewMessage(events.TypeError, events.ErrorEvent{
		Message: string(game.KindOf(opErr)),
	})
	if err != nil {
		return
	}

	if err := sess.ws.WriteJSON(msg); err != nil {
		slog.Error("write error event", slog.Any(constant.Error, err))
	}
}

func (h *WebSocketHandler) logWebsocketError(sess *session, err error) {
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		switch closeErr.Code {
		case websocket.CloseNormalClosure, websocket.CloseGoingAway:
			slog.Info("client disconnected from websocket", slog.String(constant.ClientID, sess.clientID.String()))
		default:
			slog.Error("websocket close error", slog.Int("code", closeErr.Code))
		}
	} else {
		slog.Error(
			"websocket read",
			slog.Any(constant.Error, err),
		)
	}
}

// Room codes are case-normalized at the gateway boundary before reaching
// the core.
func normalizeRoomID(roomID string) string {
	return strings.ToUpper(strings.TrimSpace(roomID))
}
