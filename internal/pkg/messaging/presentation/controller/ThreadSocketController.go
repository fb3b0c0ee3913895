package controller

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"supportchat/internal/auth"
	"supportchat/internal/infrastructure/realtime"
	relay "supportchat/internal/infrastructure/relay/port"
	"supportchat/internal/pkg/messaging/application/usecase"
	domain "supportchat/internal/pkg/messaging/domain"
	repository "supportchat/internal/pkg/messaging/persistence/repository/port"
	"supportchat/internal/pkg/messaging/protocol"
)

// ThreadSocketController handles the websocket endpoint for realtime
// messaging traffic. Every connection is authenticated before the upgrade;
// after that the connection speaks the event protocol until it drops.
type ThreadSocketController struct {
	registry *realtime.Registry
	presence *realtime.PresenceCoordinator
	relay    relay.Relay // nil in single-process deployments
	repo     repository.MessagingRepository

	joinUC     *usecase.JoinThreadUseCase
	sendUC     *usecase.SendMessageUseCase
	markReadUC *usecase.MarkReadUseCase

	jwtSecret       string
	inflightTimeout time.Duration
}

type SocketDeps struct {
	Registry  *realtime.Registry
	Presence  *realtime.PresenceCoordinator
	Relay     relay.Relay
	Repo      repository.MessagingRepository
	Backfills usecase.BackfillScheduler
	Unread    *usecase.UnreadCounts
	JWTSecret string
	Timeout   time.Duration
}

func NewThreadSocketController(d SocketDeps) *ThreadSocketController {
	if d.Timeout <= 0 {
		d.Timeout = 5 * time.Second
	}
	var unread usecase.UnreadInvalidator
	if d.Unread != nil {
		unread = d.Unread
	}
	return &ThreadSocketController{
		registry:        d.Registry,
		presence:        d.Presence,
		relay:           d.Relay,
		repo:            d.Repo,
		joinUC:          usecase.NewJoinThreadUseCase(d.Repo),
		sendUC:          usecase.NewSendMessageUseCase(d.Repo, d.Backfills, unread),
		markReadUC:      usecase.NewMarkReadUseCase(d.Repo, d.Unread),
		jwtSecret:       d.JWTSecret,
		inflightTimeout: d.Timeout,
	}
}

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// The bearer token is the gate; origins are not restricted.
		return true
	},
}

const defaultReadTimeout = 60 * time.Second

// Handle upgrades HTTP connections to websocket and processes frames until
// the client disconnects.
func (ctl *ThreadSocketController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := auth.TokenFromRequest(c.Request)
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		claims, err := auth.ParseAccessToken(token, ctl.jwtSecret)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		ws, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// Upgrade already wrote the response; just return.
			return
		}

		conn := realtime.NewConnection(claims.PrincipalID, claims.PrincipalType, ws)
		conn.Start()
		ctl.registry.Register(conn)
		defer ctl.teardown(conn)

		if changed, _ := ctl.presence.Update(claims.PrincipalID, realtime.PresenceOnline); changed {
			ctl.fanOutPresence(c.Request.Context(), claims.PrincipalID, string(realtime.PresenceOnline))
		}

		ws.SetReadLimit(1 << 20) // 1MB payload cap
		_ = ws.SetReadDeadline(time.Now().Add(defaultReadTimeout))
		ws.SetPongHandler(func(string) error {
			return ws.SetReadDeadline(time.Now().Add(defaultReadTimeout))
		})

		for {
			_, data, err := ws.ReadMessage()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) ||
					errors.Is(err, websocket.ErrCloseSent) {
					return
				}
				return
			}

			ev, err := protocol.Decode(data)
			if err != nil {
				ctl.replyError(conn, "validation_error", err.Error())
				continue
			}
			if ev == nil {
				// Unknown event name: skip for forward compatibility.
				continue
			}

			switch frame := ev.(type) {
			case *protocol.JoinThread:
				ctl.handleJoin(c, conn, frame)
			case *protocol.LeaveThread:
				ctl.handleLeave(c, conn, frame)
			case *protocol.SendMessage:
				ctl.handleSend(c, conn, frame)
			case *protocol.MarkRead:
				ctl.handleMarkRead(c, conn, frame)
			case *protocol.PresenceUpdate:
				ctl.handlePresence(c, conn, frame)
			}
		}
	}
}

// teardown runs when the socket drops, for any reason. Room membership is
// released, and when this was the principal's last live session their
// presence falls back to offline and interested rooms hear about it.
func (ctl *ThreadSocketController) teardown(conn *realtime.Connection) {
	rooms := ctl.registry.RoomsOfPrincipal(conn.PrincipalID())
	last := ctl.registry.Deregister(conn)
	conn.Close(websocket.CloseNormalClosure, "session closed")

	if !last {
		return
	}
	if changed, _ := ctl.presence.Update(conn.PrincipalID(), realtime.PresenceOffline); changed {
		payload := protocol.MustEncode(protocol.TypePresenceChanged, protocol.PresenceChanged{
			PrincipalID: conn.PrincipalID(),
			Status:      string(realtime.PresenceOffline),
		})
		ctx, cancel := context.WithTimeout(context.Background(), ctl.inflightTimeout)
		defer cancel()
		for _, threadID := range rooms {
			ctl.registry.Broadcast(threadID, payload, conn.PrincipalID())
			ctl.publish(ctx, threadID, payload)
		}
	}
}

func (ctl *ThreadSocketController) handleJoin(c *gin.Context, conn *realtime.Connection, frame *protocol.JoinThread) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), ctl.inflightTimeout)
	defer cancel()

	err := ctl.joinUC.Execute(ctx, usecase.JoinThreadInput{
		ThreadID:    frame.ThreadID,
		PrincipalID: conn.PrincipalID(),
	})
	if err != nil {
		ctl.handleUseCaseError(conn, err)
		return
	}

	ctl.registry.JoinThread(frame.ThreadID, conn)

	payload := protocol.MustEncode(protocol.TypeUserJoined, protocol.UserJoined{
		ThreadID:    frame.ThreadID,
		PrincipalID: conn.PrincipalID(),
	})
	ctl.registry.Broadcast(frame.ThreadID, payload, "")
	ctl.publish(ctx, frame.ThreadID, payload)
}

// handleLeave releases room membership only; the participant row stays
// active. Leaving the thread for good is the REST leave endpoint.
func (ctl *ThreadSocketController) handleLeave(c *gin.Context, conn *realtime.Connection, frame *protocol.LeaveThread) {
	ctl.registry.LeaveThread(frame.ThreadID, conn)

	ctx, cancel := context.WithTimeout(c.Request.Context(), ctl.inflightTimeout)
	defer cancel()

	payload := protocol.MustEncode(protocol.TypeUserLeft, protocol.UserLeft{
		ThreadID:    frame.ThreadID,
		PrincipalID: conn.PrincipalID(),
	})
	ctl.registry.Broadcast(frame.ThreadID, payload, "")
	ctl.publish(ctx, frame.ThreadID, payload)
}

func (ctl *ThreadSocketController) handleSend(c *gin.Context, conn *realtime.Connection, frame *protocol.SendMessage) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), ctl.inflightTimeout)
	defer cancel()

	out, err := ctl.sendUC.Execute(ctx, usecase.SendMessageInput{
		ThreadID:       frame.ThreadID,
		SenderID:       conn.PrincipalID(),
		Content:        frame.Content,
		MsgType:        domain.MessageType(frame.MsgType),
		ReplyToID:      frame.ReplyToID,
		AttachmentURL:  frame.AttachmentURL,
		AttachmentMeta: frame.AttachmentMeta,
	})
	if err != nil {
		ctl.handleUseCaseError(conn, err)
		return
	}

	payload := protocol.MustEncode(protocol.TypeNewMessage, protocol.NewMessage{
		Message: protocol.MessageToPayload(*out.Message),
	})

	// Room recipients get the frame via broadcast; the sender's sessions get
	// it via unicast so the client sees its own message confirmed with the
	// server-assigned id and timestamp.
	reached := ctl.registry.Broadcast(frame.ThreadID, payload, conn.PrincipalID())
	if ctl.registry.Unicast(conn.PrincipalID(), payload) == 0 {
		_ = conn.Send(payload)
	}

	ctl.markDelivered(ctx, out.Message.ID, conn.PrincipalID(), reached)
	ctl.publish(ctx, frame.ThreadID, payload)
}

// markDelivered advances delivery records to DELIVERED for recipients who
// took the broadcast on this node. Persistence failures here are logged,
// not surfaced: the records stay SENT and the monotonic guard lets a later
// pass catch up.
func (ctl *ThreadSocketController) markDelivered(ctx context.Context, messageID, senderID string, reached []string) {
	recipients := make([]string, 0, len(reached))
	for _, id := range reached {
		if id != senderID {
			recipients = append(recipients, id)
		}
	}
	if len(recipients) == 0 {
		return
	}
	if err := ctl.repo.MarkDelivered(ctx, messageID, recipients, time.Now().UTC()); err != nil {
		log.Warn().Err(err).Str("message", messageID).Msg("socket: mark delivered failed")
	}
}

func (ctl *ThreadSocketController) handleMarkRead(c *gin.Context, conn *realtime.Connection, frame *protocol.MarkRead) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), ctl.inflightTimeout)
	defer cancel()

	out, err := ctl.markReadUC.Execute(ctx, usecase.MarkReadInput{
		ThreadID:    frame.ThreadID,
		PrincipalID: conn.PrincipalID(),
		MessageIDs:  frame.MessageIDs,
	})
	if err != nil {
		ctl.handleUseCaseError(conn, err)
		return
	}
	if out.Updated == 0 {
		return
	}

	payload := protocol.MustEncode(protocol.TypeMessagesRead, protocol.MessagesRead{
		ThreadID:    frame.ThreadID,
		RecipientID: conn.PrincipalID(),
		Timestamp:   out.ReadAt,
	})
	ctl.registry.Broadcast(frame.ThreadID, payload, conn.PrincipalID())
	ctl.publish(ctx, frame.ThreadID, payload)
}

func (ctl *ThreadSocketController) handlePresence(c *gin.Context, conn *realtime.Connection, frame *protocol.PresenceUpdate) {
	changed, err := ctl.presence.Update(conn.PrincipalID(), realtime.PresenceStatus(frame.Status))
	if err != nil {
		ctl.handleUseCaseError(conn, err)
		return
	}
	if !changed {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), ctl.inflightTimeout)
	defer cancel()
	ctl.fanOutPresence(ctx, conn.PrincipalID(), frame.Status)
}

// fanOutPresence broadcasts the change to every room any of the principal's
// sessions is joined to.
func (ctl *ThreadSocketController) fanOutPresence(ctx context.Context, principalID, status string) {
	payload := protocol.MustEncode(protocol.TypePresenceChanged, protocol.PresenceChanged{
		PrincipalID: principalID,
		Status:      status,
	})
	for _, threadID := range ctl.registry.RoomsOfPrincipal(principalID) {
		ctl.registry.Broadcast(threadID, payload, principalID)
		ctl.publish(ctx, threadID, payload)
	}
}

// publish forwards an already-encoded frame to peer nodes. Best-effort: a
// relay outage degrades to single-node fan-out, it never fails the user
// operation.
func (ctl *ThreadSocketController) publish(ctx context.Context, threadID string, payload []byte) {
	if ctl.relay == nil {
		return
	}
	if err := ctl.relay.Publish(ctx, relay.Event{Room: threadID, Payload: payload}); err != nil {
		log.Warn().Err(err).Str("thread", threadID).Msg("socket: relay publish failed")
	}
}

func (ctl *ThreadSocketController) handleUseCaseError(conn *realtime.Connection, err error) {
	switch {
	case errors.Is(err, usecase.ErrPersistence):
		ctl.replyError(conn, "internal_error", "unexpected persistence error")
	case errors.Is(err, domain.ErrAccessDenied):
		ctl.replyError(conn, "forbidden", "not a participant in this thread")
	case errors.Is(err, domain.ErrNotFound):
		ctl.replyError(conn, "not_found", "thread or message not found")
	case errors.Is(err, domain.ErrValidation):
		ctl.replyError(conn, "validation_error", err.Error())
	default:
		ctl.replyError(conn, "bad_request", err.Error())
	}
}

// replyError goes to the originating connection only, never the room.
func (ctl *ThreadSocketController) replyError(conn *realtime.Connection, code, message string) {
	_ = conn.Send(protocol.ErrorFrame(code, message))
}
