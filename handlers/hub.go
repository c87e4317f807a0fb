// handlers/hub.go
package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"opsmanager/models"
	"opsmanager/utils"
)

// The hub fans approval transitions and audit entries out to connected
// dashboard clients, partitioned by organization.

type BroadcastMessage struct {
	OrgID   string
	Message []byte
}

type Hub struct {
	clients    map[string]map[*Client]bool
	broadcast  chan BroadcastMessage
	register   chan *Client
	unregister chan *Client
	mutex      sync.Mutex
}

type Client struct {
	orgID     string
	profileID string
	role      string
	conn      *websocket.Conn
	send      chan []byte
	hub       *Hub
}

var hub = &Hub{
	clients:    make(map[string]map[*Client]bool),
	broadcast:  make(chan BroadcastMessage),
	register:   make(chan *Client),
	unregister: make(chan *Client),
}

// InitHub starts the broadcast loop; called once from main.
func InitHub() {
	go hub.Run()
}

func (h *Hub) Run() {
	log.Println("WebSocket hub started")
	for {
		select {
		case client := <-h.register:
			h.mutex.Lock()
			if _, ok := h.clients[client.orgID]; !ok {
				h.clients[client.orgID] = make(map[*Client]bool)
			}
			h.clients[client.orgID][client] = true
			h.mutex.Unlock()

		case client := <-h.unregister:
			h.mutex.Lock()
			if clients, ok := h.clients[client.orgID]; ok {
				if _, ok := clients[client]; ok {
					delete(clients, client)
					close(client.send)
					if len(clients) == 0 {
						delete(h.clients, client.orgID)
					}
				}
			}
			h.mutex.Unlock()

		case bm := <-h.broadcast:
			h.mutex.Lock()
			if clients, ok := h.clients[bm.OrgID]; ok {
				for client := range clients {
					select {
					case client.send <- bm.Message:
					default:
						close(client.send)
						delete(clients, client)
					}
				}
			}
			h.mutex.Unlock()
		}
	}
}

func broadcastToOrg(orgID string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("Failed to marshal WS payload: %v", err)
		return
	}
	hub.broadcast <- BroadcastMessage{OrgID: orgID, Message: data}
}

// BroadcastApprovalUpdate notifies the org's dashboards of an approval
// status transition.
func BroadcastApprovalUpdate(orgID primitive.ObjectID, approval *models.Approval, previousStatus string) {
	broadcastToOrg(orgID.Hex(), map[string]interface{}{
		"type":           "APPROVAL_STATUS_CHANGE",
		"approvalId":     approval.ID.Hex(),
		"previousStatus": previousStatus,
		"status":         approval.Status,
		"riskLevel":      approval.RiskLevel,
		"timestamp":      time.Now().UTC(),
	})
}

// BroadcastAuditEntry streams a freshly written audit row.
func BroadcastAuditEntry(orgID primitive.ObjectID, entry *models.AuditLog) {
	broadcastToOrg(orgID.Hex(), map[string]interface{}{
		"type":      "AUDIT_ENTRY",
		"entry":     entry,
		"timestamp": time.Now().UTC(),
	})
}

// HandleWebSocket upgrades the connection after validating the token
// from the query string (browsers cannot set headers on WS dials).
func HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	tokenString := r.URL.Query().Get("token")

	if tokenString == "" {
		authHeader := r.Header.Get("Authorization")
		if authHeader != "" && strings.HasPrefix(authHeader, "Bearer ") {
			tokenString = strings.TrimPrefix(authHeader, "Bearer ")
		}
	}

	if tokenString == "" {
		http.Error(w, "Authentication token required", http.StatusUnauthorized)
		return
	}

	claims, err := utils.ValidateJWT(tokenString)
	if err != nil {
		http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
		return
	}

	if claims.OrganizationID == "" || claims.ProfileID == "" {
		http.Error(w, "Invalid token claims", http.StatusUnauthorized)
		return
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		http.Error(w, "WebSocket upgrade failed: "+err.Error(), http.StatusInternalServerError)
		return
	}

	client := &Client{
		orgID:     claims.OrganizationID,
		profileID: claims.ProfileID,
		role:      claims.Role,
		conn:      conn,
		send:      make(chan []byte, 256),
		hub:       hub,
	}

	client.hub.register <- client

	// Write pump
	go func() {
		defer func() {
			client.hub.unregister <- client
			conn.Close()
		}()
		for message := range client.send {
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		}
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	}()

	// Read pump
	go func() {
		defer func() {
			client.hub.unregister <- client
			conn.Close()
		}()

		conn.SetReadLimit(512)
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			return nil
		})

		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()

		go func() {
			for range ticker.C {
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}()

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}
