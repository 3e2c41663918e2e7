package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vogiaan1904/listenroom/internal/auth"
	"github.com/vogiaan1904/listenroom/internal/catalog"
	"github.com/vogiaan1904/listenroom/internal/delivery/ws"
	"github.com/vogiaan1904/listenroom/internal/models"
	"github.com/vogiaan1904/listenroom/internal/service"
	"github.com/vogiaan1904/listenroom/pkg/logger"
	"github.com/vogiaan1904/listenroom/pkg/response"
)

type Handler struct {
	roomSvc  service.RoomService
	queueSvc service.QueueService
	catalog  catalog.Store
	verifier auth.Verifier
	wsServer *ws.Server
	l        logger.Logger
}

// NewHandler builds the REST surface. store may be nil, in which case song
// lookups always miss.
func NewHandler(
	roomSvc service.RoomService,
	queueSvc service.QueueService,
	store catalog.Store,
	verifier auth.Verifier,
	wsServer *ws.Server,
	l logger.Logger,
) *Handler {
	return &Handler{
		roomSvc:  roomSvc,
		queueSvc: queueSvc,
		catalog:  store,
		verifier: verifier,
		wsServer: wsServer,
		l:        l,
	}
}

func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "listenroom",
	})
}

func (h *Handler) CreateRoom(c *gin.Context) {
	var req createRoomReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errInvalidRequest)
		return
	}

	room, err := h.roomSvc.CreateRoom(c.Request.Context(), service.CreateRoomInput{
		UserID:   identity(c).UserID,
		Name:     req.Name,
		IsPublic: req.IsPublic,
		Capacity: req.Capacity,
	})
	if err != nil {
		h.fail(c, "CreateRoom", err)
		return
	}

	response.Created(c, room)
}

func (h *Handler) ListRooms(c *gin.Context) {
	var req listRoomsReq
	if err := c.ShouldBindQuery(&req); err != nil {
		response.Error(c, errInvalidRequest)
		return
	}

	out, err := h.roomSvc.ListPublic(c.Request.Context(), service.ListRoomsInput{
		Page:     req.Page,
		PageSize: req.PageSize,
	})
	if err != nil {
		h.fail(c, "ListRooms", err)
		return
	}

	response.OK(c, out)
}

func (h *Handler) GetRoom(c *gin.Context) {
	snap, err := h.roomSvc.GetSnapshot(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "GetRoom", err)
		return
	}

	response.OK(c, snap)
}

func (h *Handler) JoinRoom(c *gin.Context) {
	var req joinRoomReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errInvalidRequest)
		return
	}

	snap, err := h.roomSvc.Join(c.Request.Context(), service.JoinInput{
		Code:   req.Code,
		UserID: identity(c).UserID,
	})
	if err != nil {
		h.fail(c, "JoinRoom", err)
		return
	}

	response.OK(c, snap)
}

func (h *Handler) LeaveRoom(c *gin.Context) {
	err := h.roomSvc.Leave(c.Request.Context(), service.LeaveInput{
		RoomID: c.Param("id"),
		UserID: identity(c).UserID,
	})
	if err != nil {
		h.fail(c, "LeaveRoom", err)
		return
	}

	response.OK(c, messageResp{Message: "left the room"})
}

func (h *Handler) AddToQueue(c *gin.Context) {
	var req addToQueueReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errInvalidRequest)
		return
	}

	item, err := h.queueSvc.Add(c.Request.Context(), service.AddToQueueInput{
		RoomID: c.Param("id"),
		UserID: identity(c).UserID,
		SongID: req.SongID,
		Top:    req.Top,
	})
	if err != nil {
		h.fail(c, "AddToQueue", err)
		return
	}

	response.Created(c, item)
}

func (h *Handler) RemoveFromQueue(c *gin.Context) {
	err := h.queueSvc.Remove(c.Request.Context(), service.RemoveFromQueueInput{
		RoomID: c.Param("id"),
		UserID: identity(c).UserID,
		ItemID: c.Param("itemId"),
	})
	if err != nil {
		h.fail(c, "RemoveFromQueue", err)
		return
	}

	response.OK(c, messageResp{Message: "removed from the queue"})
}

func (h *Handler) ChangeRole(c *gin.Context) {
	var req changeRoleReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errInvalidRequest)
		return
	}

	role, err := models.ParseRole(req.Role)
	if err != nil {
		response.Error(c, h.mapHTTPError(service.ErrInvalidRole))
		return
	}

	err = h.roomSvc.ChangeRole(c.Request.Context(), service.ChangeRoleInput{
		RoomID:   c.Param("id"),
		ActorID:  identity(c).UserID,
		TargetID: c.Param("userId"),
		Role:     role,
	})
	if err != nil {
		h.fail(c, "ChangeRole", err)
		return
	}

	response.OK(c, messageResp{Message: "role updated"})
}

func (h *Handler) DeleteRoom(c *gin.Context) {
	id := identity(c)
	err := h.roomSvc.DeleteRoom(c.Request.Context(), service.DeleteRoomInput{
		RoomID:  c.Param("id"),
		ActorID: id.UserID,
		IsAdmin: id.Admin,
	})
	if err != nil {
		h.fail(c, "DeleteRoom", err)
		return
	}

	response.OK(c, messageResp{Message: "room deleted"})
}

func (h *Handler) GetSong(c *gin.Context) {
	if h.catalog == nil {
		response.Error(c, h.mapHTTPError(service.ErrSongNotFound))
		return
	}

	song, err := h.catalog.GetSong(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			err = service.ErrSongNotFound
		}
		h.fail(c, "GetSong", err)
		return
	}

	response.OK(c, song)
}

// Socket upgrades to a websocket. Browsers cannot set headers on the
// handshake, so the token travels in the query string.
func (h *Handler) Socket(c *gin.Context) {
	id, err := h.verifier.Verify(c.Request.Context(), c.Query("token"))
	if err != nil {
		response.Error(c, h.mapHTTPError(err))
		return
	}

	if err := h.wsServer.Serve(c.Writer, c.Request, id.UserID); err != nil {
		h.l.Warnf(c.Request.Context(), "delivery.http.Handler.Socket: %v", err)
	}
}

func (h *Handler) fail(c *gin.Context, op string, err error) {
	if service.Kind(err) == service.KindInternal {
		h.l.Errorf(c.Request.Context(), "delivery.http.Handler.%s: %v", op, err)
	}
	response.Error(c, h.mapHTTPError(err))
}
