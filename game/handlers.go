package game

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/skip2/go-qrcode"
)

const (
	connectTimeout = 10 * time.Second
	qrSize         = 256
)

type GameHandler struct {
	lobby     *Lobby
	playerIds UniqueIdGenerator
	publicURL string
	upgrader  websocket.Upgrader
}

func NewGameHandler(lobby *Lobby, playerIds UniqueIdGenerator, allowedOrigins []string, publicURL string) *GameHandler {
	h := &GameHandler{
		lobby:     lobby,
		playerIds: playerIds,
		publicURL: strings.TrimRight(publicURL, "/"),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || slices.Contains(allowedOrigins, "*") || slices.Contains(allowedOrigins, origin)
		},
	}
	return h
}

func (h *GameHandler) RegisterRoutes(r gin.IRouter) {
	r.GET("/games", h.ListGamesHandler)
	rooms := r.Group("/rooms")
	rooms.GET("", h.PublicRoomsHandler)
	rooms.POST("/:kind", h.ReserveRoomHandler)
	rooms.GET("/:kind/:code/ws", h.ConnectHandler)
	rooms.GET("/:kind/:code/qr.png", h.QRCodeHandler)
}

func (h *GameHandler) ListGamesHandler(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"games": h.lobby.Kinds()})
}

func (h *GameHandler) PublicRoomsHandler(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"rooms": h.lobby.PublicRooms(ctx.Request.Context())})
}

func (h *GameHandler) ReserveRoomHandler(ctx *gin.Context) {
	kind := ctx.Param("kind")
	code, err := h.lobby.ReserveCode(ctx.Request.Context(), kind)
	if errors.Is(err, ErrUnknownKind) {
		ctx.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": ErrUnknownKind.Error()})
		return
	}
	if err != nil {
		log.Error().Err(err).Str("kind", kind).Msg("reserving room code")
		ctx.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": CodeUnavailable})
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"kind": kind, "code": code, "url": h.shareURL(kind, code)})
}

func (h *GameHandler) QRCodeHandler(ctx *gin.Context) {
	kind, code, ok := h.roomParams(ctx)
	if !ok {
		return
	}
	png, err := qrcode.Encode(h.shareURL(kind, code), qrcode.Medium, qrSize)
	if err != nil {
		log.Error().Err(err).Msg("encoding qr code")
		ctx.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "qr-failed"})
		return
	}
	ctx.Data(http.StatusOK, "image/png", png)
}

// ConnectHandler upgrades to a websocket and hands the connection to the
// room. The handler goroutine becomes the client's read pump.
func (h *GameHandler) ConnectHandler(ctx *gin.Context) {
	kind, code, ok := h.roomParams(ctx)
	if !ok {
		return
	}
	query := ctx.Request.URL.Query()
	host := query.Get("host") == "1"
	query.Del("host")

	conn, err := h.upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}
	socket := NewWebsocketConnection(conn)
	client := NewClient(h.playerIds.Generate(), socket)

	joinCtx, cancel := context.WithTimeout(ctx.Request.Context(), connectTimeout)
	err = h.lobby.Connect(joinCtx, kind, code, client, query, host)
	cancel()
	if err != nil {
		rejectConnection(socket, err)
		return
	}

	go client.WritePump()
	client.ReadPump()
}

func (h *GameHandler) roomParams(ctx *gin.Context) (string, string, bool) {
	kind := ctx.Param("kind")
	code := strings.ToUpper(ctx.Param("code"))
	if !h.lobby.HasKind(kind) {
		ctx.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": ErrUnknownKind.Error()})
		return "", "", false
	}
	if !ValidCode(code) {
		ctx.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid-code"})
		return "", "", false
	}
	return kind, code, true
}

func (h *GameHandler) shareURL(kind, code string) string {
	return h.publicURL + "/" + kind + "/" + code
}

func rejectConnection(socket Socket, err error) {
	code := ErrorCode(err)
	message := err.Error()
	switch {
	case errors.Is(err, ErrRoomNotFound):
		code, message = CodeNotFound, "room does not exist"
	case code == "":
		log.Error().Err(err).Msg("connecting client")
		code, message = CodeUnavailable, "could not join room"
	default:
		var ce *CommandError
		errors.As(err, &ce)
		message = ce.Message
	}
	if data, mErr := json.Marshal(MakePacketError(code, message)); mErr == nil {
		socket.Write(data)
	}
	socket.Close(code)
}
