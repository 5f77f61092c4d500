package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/anonroom/anonroom/internal/api/http/converter"
	"github.com/anonroom/anonroom/internal/service"
)

type RoomController struct {
	rooms service.RoomInteractor
	log   *slog.Logger
}

func NewRoomController(rooms service.RoomInteractor, log *slog.Logger) *RoomController {
	return &RoomController{rooms: rooms, log: log}
}

func (c *RoomController) Create(ctx *gin.Context) {
	type request struct {
		Name string `json:"name" binding:"required"`
	}

	var req request
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, errorEnvelope("invalid request body", codeValidation))
		return
	}

	room, err := c.rooms.CreateRoom(ctx.Request.Context(), req.Name, currentSession(ctx))
	if err != nil {
		respondError(ctx, c.log, err)
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{"room": converter.RoomToAPI(room)})
}

func (c *RoomController) Get(ctx *gin.Context) {
	room, err := c.rooms.GetRoom(ctx.Request.Context(), ctx.Param("shareToken"))
	if err != nil {
		respondError(ctx, c.log, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"room": converter.RoomToAPI(room)})
}

// List serves both pagination modes: ?cursor=RFC3339 selects cursor mode,
// otherwise ?offset applies. Cursor mode stays stable under concurrent
// inserts and is what next_cursor serves.
func (c *RoomController) List(ctx *gin.Context) {
	type query struct {
		Limit  int    `form:"limit"`
		Offset int    `form:"offset"`
		Cursor string `form:"cursor"`
	}

	var q query
	if err := ctx.ShouldBindQuery(&q); err != nil {
		ctx.JSON(http.StatusBadRequest, errorEnvelope("invalid query parameters", codeValidation))
		return
	}

	if q.Cursor != "" {
		c.listByCursor(ctx, q.Limit, q.Cursor)
		return
	}

	rooms, hasMore, err := c.rooms.ListRooms(ctx.Request.Context(), q.Limit, q.Offset)
	if err != nil {
		respondError(ctx, c.log, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"rooms": converter.RoomsToAPI(rooms),
		"pagination": gin.H{
			"limit":    q.Limit,
			"offset":   q.Offset,
			"has_more": hasMore,
		},
	})
}

func (c *RoomController) listByCursor(ctx *gin.Context, limit int, cursor string) {
	var before time.Time
	if cursor != "" {
		parsed, err := time.Parse(time.RFC3339Nano, cursor)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, errorEnvelope("invalid cursor", codeValidation))
			return
		}
		before = parsed
	}

	rooms, hasMore, next, err := c.rooms.ListRoomsBefore(ctx.Request.Context(), limit, before)
	if err != nil {
		respondError(ctx, c.log, err)
		return
	}

	pagination := gin.H{"has_more": hasMore}
	if hasMore {
		pagination["next_cursor"] = next.Format(time.RFC3339Nano)
	}

	ctx.JSON(http.StatusOK, gin.H{
		"rooms":      converter.RoomsToAPI(rooms),
		"pagination": pagination,
	})
}
