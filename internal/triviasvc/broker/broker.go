package broker

import (
	"encoding/json"

	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"

	"github.com/renfu-her/trivia-services/internal/comm"
)

// Broker publishes room events to the NATS subject room.<id>. Callers
// publish only after the corresponding state change committed; publishes
// for one room happen on the goroutine that held that room's write
// serialization, so subscribers observe commit order.
type Broker struct {
	Conn *nats.Conn
}

func NewBroker(nc *nats.Conn) *Broker {
	return &Broker{Conn: nc}
}

func RoomSubject(roomID string) string {
	return "room." + roomID
}

func (b *Broker) PublishRoomEvent(roomID, eventType string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Errorf("failed to encode %s event for room %s: %v", eventType, roomID, err)
		return
	}

	event := comm.RoomEvent{
		Type:   eventType,
		RoomID: roomID,
		Data:   data,
	}
	bytes, err := json.Marshal(event)
	if err != nil {
		log.Errorf("failed to encode event envelope for room %s: %v", roomID, err)
		return
	}

	if err := b.Conn.Publish(RoomSubject(roomID), bytes); err != nil {
		log.Errorf("failed to publish %s event for room %s: %v", eventType, roomID, err)
	}
}
