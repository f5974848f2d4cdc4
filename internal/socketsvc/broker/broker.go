package broker

import (
	"encoding/json"

	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"

	"github.com/renfu-her/trivia-services/internal/comm"
)

// Broker consumes room events from the game service and fans them out
// to the websocket subscribers of that room. NATS preserves publish
// order per subject, so subscribers of one room observe events in
// commit order.
type Broker struct {
	Conn           *nats.Conn
	WriteToSocket  func(string, []byte) error
	GetRoomSockets func(string) ([]string, bool)
}

func NewBroker(conn *nats.Conn, fncWriteToSocket func(string, []byte) error, fncGetRoomSockets func(string) ([]string, bool)) *Broker {
	return &Broker{
		Conn:           conn,
		WriteToSocket:  fncWriteToSocket,
		GetRoomSockets: fncGetRoomSockets,
	}
}

// Subscribe consumes every room subject published by the game service.
func (b *Broker) Subscribe(topic string) (*nats.Subscription, error) {
	sub, err := b.Conn.Subscribe(topic, b.handleMessages)
	if err != nil {
		return nil, err
	}

	return sub, nil
}

func (b *Broker) handleMessages(msgNats *nats.Msg) {
	event := &comm.RoomEvent{}
	if err := json.Unmarshal(msgNats.Data, &event); err != nil {
		log.Errorf("malformed room event: %s", err)
		return
	}

	switch event.Type {
	case comm.EventPlayerJoined, comm.EventPlayerLeft, comm.EventGameStarted,
		comm.EventAnswerSubmitted, comm.EventNextRound, comm.EventRoundClosed,
		comm.EventGameFinished:
		b.fanout(event, msgNats.Data)
	default:
		log.Warnf("unknown room event type: %s", event.Type)
	}
}

// fanout forwards the raw event frame to every socket following the
// room.
func (b *Broker) fanout(event *comm.RoomEvent, raw []byte) {
	sockets, ok := b.GetRoomSockets(event.RoomID)
	if !ok {
		return
	}
	for _, socketId := range sockets {
		if err := b.WriteToSocket(socketId, raw); err != nil {
			log.Errorf("failed to forward %s event to socket %s: %v", event.Type, socketId, err)
		}
	}
}
