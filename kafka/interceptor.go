package kafka

import (
	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// EventInterceptor stamps every outgoing record with an event id and the
// producing service.
type EventInterceptor struct {
	source string
}

func NewEventInterceptor(source string) *EventInterceptor {
	return &EventInterceptor{source: source}
}

func (i *EventInterceptor) OnSend(msg *sarama.ProducerMessage) {
	log.Debug().Str("topic", msg.Topic).Msg("intercepted outgoing event")
	msg.Headers = append(msg.Headers,
		sarama.RecordHeader{Key: []byte("event-id"), Value: []byte(uuid.NewString())},
		sarama.RecordHeader{Key: []byte("source"), Value: []byte(i.source)},
	)
}
