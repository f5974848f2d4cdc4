package ws

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/renfu-her/trivia-services/internal/comm"
)

// Ws tracks websocket connections and which room topic each socket
// subscribed to. A socket follows at most one room at a time.
type Ws struct {
	connMap sync.Map // socketId -> *websocket.Conn
	roomMap sync.Map // socketId -> roomId
	writeMu sync.Map // socketId -> *sync.Mutex, serializes writes per conn
}

func NewWs() *Ws {
	return &Ws{}
}

// SocketMessage handles a frame from a web client. Subscribing only
// attaches the socket to a room topic; it never touches room state, and
// a disconnect never affects the game.
func (s *Ws) SocketMessage(socketId string, message *comm.WSMessage) {
	switch message.Type {
	case "subscribe":
		s.handleSubscribe(socketId, message)
	case "unsubscribe":
		s.roomMap.Delete(socketId)
		log.Infof("socket %s unsubscribed", socketId)
	default:
		log.Warnf("unknown event received: %s", message.Type)
	}
}

func (s *Ws) handleSubscribe(socketId string, msg *comm.WSMessage) {
	var payload struct {
		RoomID string `json:"room_id"`
	}
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		log.Errorf("malformed subscribe payload from socket %s: %s", socketId, err)
		return
	}
	if payload.RoomID == "" {
		log.Errorf("subscribe without room_id from socket %s", socketId)
		return
	}

	s.roomMap.Store(socketId, payload.RoomID)
	log.Infof("socket %s subscribed to room %s", socketId, payload.RoomID)
}

func (s *Ws) StoreConnection(socketId string, conn *websocket.Conn) {
	s.connMap.Store(socketId, conn)
	s.writeMu.Store(socketId, &sync.Mutex{})
}

func (s *Ws) GetConnection(socketId string) (*websocket.Conn, bool) {
	conn, ok := s.connMap.Load(socketId)
	if !ok {
		return nil, false
	}
	return conn.(*websocket.Conn), true
}

// WriteToSocket serializes concurrent event writes to one connection.
func (s *Ws) WriteToSocket(socketId string, data []byte) error {
	conn, ok := s.GetConnection(socketId)
	if !ok {
		return nil
	}
	muVal, ok := s.writeMu.Load(socketId)
	if !ok {
		return nil
	}
	mu := muVal.(*sync.Mutex)
	mu.Lock()
	defer mu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, data)
}

// GetRoomSockets lists sockets following a room topic.
func (s *Ws) GetRoomSockets(roomId string) ([]string, bool) {
	var sockets []string
	found := false

	s.roomMap.Range(func(key, value interface{}) bool {
		if value.(string) == roomId {
			sockets = append(sockets, key.(string))
			found = true
		}
		return true // continue iterating
	})

	return sockets, found
}

func (s *Ws) HandleDisconnect(socketId string) {
	s.connMap.Delete(socketId)
	s.roomMap.Delete(socketId)
	s.writeMu.Delete(socketId)
}
