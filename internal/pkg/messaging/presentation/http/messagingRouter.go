package http

import (
	"time"

	"github.com/gin-gonic/gin"

	"supportchat/internal/auth"
	cacheport "supportchat/internal/infrastructure/cache/port"
	queueport "supportchat/internal/infrastructure/queue/port"
	"supportchat/internal/infrastructure/realtime"
	relayport "supportchat/internal/infrastructure/relay/port"
	"supportchat/internal/pkg/messaging/application/task"
	"supportchat/internal/pkg/messaging/application/usecase"
	"supportchat/internal/pkg/messaging/presentation/controller"
	repository "supportchat/internal/pkg/messaging/persistence/repository/port"
)

// Deps collects everything the messaging endpoints need. Cache, Queue and
// Relay are optional; nil disables unread caching, delivery backfill jobs
// and cross-process fan-out respectively.
type Deps struct {
	Repo      repository.MessagingRepository
	Registry  *realtime.Registry
	Presence  *realtime.PresenceCoordinator
	Relay     relayport.Relay
	Cache     cacheport.Cache
	Queue     queueport.Client
	JWTSecret string
	Timeout   time.Duration
	PageSize  int // default history page size; 0 keeps the built-in default
}

// RegisterRoutes registers messaging endpoints under the given router group.
// It constructs per-endpoint controllers and binds them directly to routes.
func RegisterRoutes(g *gin.RouterGroup, d Deps) {
	var backfills usecase.BackfillScheduler
	if d.Queue != nil {
		backfills = task.NewScheduler(d.Queue)
	}
	unread := usecase.NewUnreadCounts(d.Repo, d.Cache)

	var unreadInv usecase.UnreadInvalidator = unread
	sendUC := usecase.NewSendMessageUseCase(d.Repo, backfills, unreadInv)

	createCtl := controller.NewCreateThreadController(d.Repo)
	listCtl := controller.NewListThreadsController(usecase.NewListThreadsUseCase(d.Repo, unread))
	getMsgUC := usecase.NewGetThreadMessagesUseCase(d.Repo, backfills)
	getMsgUC.PageSize = d.PageSize
	getMsgCtl := controller.NewGetThreadMessagesController(getMsgUC)
	sendMsgCtl := controller.NewSendMessageController(sendUC, d.Repo, d.Registry, d.Relay)
	markReadCtl := controller.NewMarkReadController(usecase.NewMarkReadUseCase(d.Repo, unread), d.Registry, d.Relay)
	leaveCtl := controller.NewLeaveThreadController(usecase.NewLeaveThreadUseCase(d.Repo), d.Registry, d.Relay)
	deleteCtl := controller.NewDeleteMessageController(usecase.NewDeleteMessageUseCase(d.Repo), d.Registry, d.Relay)
	socketCtl := controller.NewThreadSocketController(controller.SocketDeps{
		Registry:  d.Registry,
		Presence:  d.Presence,
		Relay:     d.Relay,
		Repo:      d.Repo,
		Backfills: backfills,
		Unread:    unread,
		JWTSecret: d.JWTSecret,
		Timeout:   d.Timeout,
	})

	// The socket endpoint authenticates inside the handler so the token can
	// arrive as a query parameter during the websocket handshake.
	g.GET("/ws", socketCtl.Handle())

	authed := g.Group("", auth.Middleware(d.JWTSecret))
	authed.POST("/threads", createCtl.Handle())
	authed.GET("/threads", listCtl.Handle())
	authed.GET("/threads/:threadId/messages", getMsgCtl.Handle())
	authed.POST("/threads/:threadId/messages", sendMsgCtl.Handle())
	authed.POST("/threads/:threadId/read", markReadCtl.Handle())
	authed.POST("/threads/:threadId/leave", leaveCtl.Handle())
	authed.DELETE("/messages/:messageId", deleteCtl.Handle())
}
