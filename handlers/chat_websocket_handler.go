package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"OrgVerify/limiter"
	custommiddleware "OrgVerify/middleware"
	"OrgVerify/models"
	"OrgVerify/realtime"
	"OrgVerify/services"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	readLimit  = 64 * 1024
)

type ChatWebSocketHandler struct {
	hub        *realtime.Hub
	messages   *services.MessageService
	limiter    limiter.Limiter // 可为 nil，不限流
	upgrader   websocket.Upgrader
	sendBuffer int
}

func NewChatWebSocketHandler(hub *realtime.Hub, messages *services.MessageService, sendLimiter limiter.Limiter, allowedOrigins []string, sendBuffer int) *ChatWebSocketHandler {
	origins := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		origins[o] = true
	}
	return &ChatWebSocketHandler{
		hub:      hub,
		messages: messages,
		limiter:  sendLimiter,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || origins["*"] || origins[origin]
			},
		},
		sendBuffer: sendBuffer,
	}
}

type connectedPayload struct {
	ConnectionID string        `json:"connectionId"`
	Actor        *models.Actor `json:"actor"`
	Rooms        []string      `json:"rooms"`
}

// HandleWebSocket upgrades an already authenticated request. The auth
// middleware in front of it rejects bad credentials with 401 before any
// upgrade happens.
func (h *ChatWebSocketHandler) HandleWebSocket(c echo.Context) error {
	actor := custommiddleware.CurrentActor(c)
	if actor == nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
	}

	client := realtime.NewClient(h.sendBuffer)
	if !client.Authenticate(actor) {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
	}

	ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.hub.Disconnect(client)
		return err
	}

	if err := h.hub.Connect(client); err != nil {
		log.Error().Err(err).Str("actor", actor.Ref.String()).Msg("failed to join rooms")
		h.hub.Disconnect(client)
		ws.Close()
		return nil
	}

	log.Info().Str("conn", client.ID).Str("actor", actor.Ref.String()).Msg("websocket connected")

	client.Emit(realtime.Event{
		Type: realtime.OutConnected,
		Payload: connectedPayload{
			ConnectionID: client.ID,
			Actor:        actor,
			Rooms:        client.Rooms(),
		},
	})

	// 启动写入goroutine
	go h.writePump(client, ws)

	// 当前goroutine处理读取
	h.readPump(c.Request().Context(), client, ws)
	return nil
}

// 读取客户端消息
func (h *ChatWebSocketHandler) readPump(ctx context.Context, client *realtime.Client, ws *websocket.Conn) {
	defer func() {
		h.hub.Disconnect(client)
		ws.Close()
		log.Info().Str("conn", client.ID).Msg("websocket disconnected")
	}()

	ws.SetReadLimit(readLimit)
	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg realtime.Inbound
		if err := ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("conn", client.ID).Msg("websocket read error")
			}
			return
		}
		h.handleMessage(ctx, client, msg)
	}
}

// 向客户端写入消息
func (h *ChatWebSocketHandler) writePump(client *realtime.Client, ws *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		ws.Close()
	}()

	for {
		select {
		case <-client.Done():
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			ws.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case ev := <-client.Events():
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteJSON(ev); err != nil {
				log.Warn().Err(err).Str("conn", client.ID).Msg("websocket write error")
				return
			}

		case <-ticker.C:
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// 消息类型分发
func (h *ChatWebSocketHandler) handleMessage(ctx context.Context, client *realtime.Client, msg realtime.Inbound) {
	switch msg.Type {
	case realtime.InSendMessage:
		h.handleSendMessage(ctx, client, msg.Payload)
	case realtime.InMarkAsRead:
		h.handleMarkAsRead(ctx, client, msg.Payload)
	case realtime.InTyping:
		h.handleTyping(client, msg.Payload)
	default:
		log.Debug().Str("conn", client.ID).Str("type", msg.Type).Msg("ignoring unknown event")
	}
}

// Every send-message is answered with exactly one message-sent or error.
func (h *ChatWebSocketHandler) handleSendMessage(ctx context.Context, client *realtime.Client, raw json.RawMessage) {
	var payload realtime.SendMessagePayload
	if err := json.Unmarshal(raw, &payload); err != nil || payload.RecipientID == 0 {
		client.Emit(realtime.ErrorEvent("invalid-input"))
		return
	}
	kind, err := recipientKind(payload.RecipientType)
	if err != nil {
		client.Emit(realtime.ErrorEvent(services.ReasonUnsupportedActor))
		return
	}

	actor := client.Actor()
	if h.limiter != nil {
		allowed, err := h.limiter.Allow(ctx, actor.Ref.String())
		if err != nil {
			// Redis 故障时放行
			log.Error().Err(err).Str("actor", actor.Ref.String()).Msg("send rate limit check failed")
		} else if !allowed {
			client.Emit(realtime.ErrorEvent("rate-limited"))
			return
		}
	}

	msg, err := h.messages.Send(ctx, actor, models.ActorRef{Kind: kind, ID: payload.RecipientID}, payload.Content)
	if err != nil {
		client.Emit(realtime.ErrorEvent(reasonFor(err)))
		return
	}
	client.Emit(realtime.Event{Type: realtime.OutMessageSent, Payload: msg})
}

// Read receipts go back to the caller only.
func (h *ChatWebSocketHandler) handleMarkAsRead(ctx context.Context, client *realtime.Client, raw json.RawMessage) {
	var payload realtime.MarkAsReadPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		client.Emit(realtime.ErrorEvent("invalid-input"))
		return
	}
	updated, err := h.messages.MarkRead(ctx, client.Actor(), payload.MessageIDs)
	if err != nil {
		client.Emit(realtime.ErrorEvent(reasonFor(err)))
		return
	}
	client.Emit(realtime.Event{
		Type:    realtime.OutMessagesRead,
		Payload: realtime.MessagesReadNotice{MessageIDs: payload.MessageIDs, Updated: updated},
	})
}

// Typing is relayed as is; nobody online means it is dropped.
func (h *ChatWebSocketHandler) handleTyping(client *realtime.Client, raw json.RawMessage) {
	var payload realtime.TypingPayload
	if err := json.Unmarshal(raw, &payload); err != nil || payload.RecipientID == 0 {
		return
	}
	kind, err := recipientKind(payload.RecipientType)
	if err != nil {
		return
	}
	actor := client.Actor()
	target := models.ActorRef{Kind: kind, ID: payload.RecipientID}
	if target == actor.Ref {
		return
	}
	h.hub.DeliverToActor(target, realtime.Event{
		Type: realtime.OutTyping,
		Payload: realtime.TypingNotice{
			SenderID:   actor.Ref.ID,
			SenderType: string(actor.Ref.Kind),
			IsTyping:   payload.IsTyping,
		},
	})
}

// HTTP接口：获取在线参与者列表
func (h *ChatWebSocketHandler) GetOnlineUsers(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	actors, err := h.hub.OnlineActors(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to fetch online actors")
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "failed to fetch online users",
		})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"count":  len(actors),
		"actors": actors,
	})
}
