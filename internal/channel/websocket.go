package channel

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"coolcar/internal/domain"
	"coolcar/internal/metrics"
)

// wsChannel is the bus channel name of chat widget messages.
const wsChannel = "websocket"

// wsClient tracks a connected chat widget.
type wsClient struct {
	conn   *websocket.Conn
	chatID string
	mu     sync.Mutex
}

// WSMessage is the JSON protocol spoken with the chat widget.
type WSMessage struct {
	Type    string            `json:"type"` // "message" | "greeting" | "status" | "error"
	Content string            `json:"content,omitempty"`
	ChatID  string            `json:"chatId,omitempty"`
	Reply   *domain.ReplyMeta `json:"reply,omitempty"`
}

// handleUpgrade serves one widget connection. The widget greets the
// visitor on connect; each "message" frame is published to the bus and the
// reply arrives through the outbound handler registered in SetBus.
func (w *Web) handleUpgrade(rw http.ResponseWriter, r *http.Request) {
	if w.bus == nil {
		writeError(rw, http.StatusServiceUnavailable, "chat is not running")
		return
	}
	conn, err := w.upgrader.Upgrade(rw, r, nil)
	if err != nil {
		w.logger.Warn("websocket upgrade failed", "err", err)
		return
	}

	chatID := r.URL.Query().Get("chatId")
	if chatID == "" {
		chatID = fmt.Sprintf("ws-%d", time.Now().UnixNano())
	}
	client := &wsClient{conn: conn, chatID: chatID}

	clientID := fmt.Sprintf("%s-%p", chatID, conn)
	w.mu.Lock()
	w.clients[clientID] = client
	w.mu.Unlock()
	metrics.WebSocketClients.Inc()

	w.logger.Info("websocket client connected", "client_id", clientID, "chat_id", chatID)

	client.send(WSMessage{Type: "status", Content: "connected", ChatID: chatID})
	client.send(WSMessage{Type: "greeting", Content: w.assistant.Greeting(), ChatID: chatID})

	defer func() {
		w.mu.Lock()
		delete(w.clients, clientID)
		w.mu.Unlock()
		metrics.WebSocketClients.Dec()
		conn.Close()
		w.logger.Info("websocket client disconnected", "client_id", clientID)
	}()

	conn.SetReadLimit(maxBodySize)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				w.logger.Warn("websocket read error", "err", err)
			}
			return
		}

		var msg WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			client.send(WSMessage{Type: "error", Content: "invalid message", ChatID: chatID})
			continue
		}

		switch msg.Type {
		case "message":
			content := strings.TrimSpace(msg.Content)
			if content == "" {
				continue
			}
			w.bus.Publish(domain.InboundMessage{
				Channel:   wsChannel,
				ChatID:    chatID,
				SenderID:  chatID,
				Content:   content,
				Timestamp: time.Now(),
			})
		case "ping":
			client.send(WSMessage{Type: "status", Content: "pong", ChatID: chatID})
		}
	}
}

func (w *Web) broadcastToChat(chatID string, msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}

	w.mu.RLock()
	defer w.mu.RUnlock()
	for _, client := range w.clients {
		if client.chatID != chatID {
			continue
		}
		client.mu.Lock()
		err := client.conn.WriteMessage(websocket.TextMessage, data)
		client.mu.Unlock()
		if err != nil {
			w.logger.Debug("websocket write failed", "err", err)
		}
	}
}

func (c *wsClient) send(msg WSMessage) {
	data, _ := json.Marshal(msg)
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.WriteMessage(websocket.TextMessage, data)
}

func (w *Web) closeAllClients() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for id, client := range w.clients {
		client.conn.Close()
		delete(w.clients, id)
	}
}
