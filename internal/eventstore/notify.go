package eventstore

import (
	"context"
	"encoding/json"

	"github.com/mcarvalho21/nova-sub000/internal/platform"
)

// AppendNotification is the payload carried on the event_appended channel.
type AppendNotification struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Sequence int64  `json:"sequence,string"`
}

// ListenerHandle is released at shutdown to stop consuming.
type ListenerHandle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Release stops the listener and waits for its goroutine to exit.
func (h *ListenerHandle) Release() {
	if h == nil {
		return
	}

	h.cancel()
	<-h.done
}

// SetupNotificationListener subscribes to the append notification queue
// and invokes callback for each event_appended message, ack'ing only
// after callback returns without error. This is the async wake signal
// the projection polling worker (C5) and subscription dispatcher consume.
func (s *Store) SetupNotificationListener(ctx context.Context, queueName string, callback func(AppendNotification)) (*ListenerHandle, error) {
	ch, err := s.notifier.GetChannel(ctx)
	if err != nil {
		return nil, platform.WrapInternal("get rabbitmq channel for listener", err)
	}

	if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
		return nil, platform.WrapInternal("declare listener queue", err)
	}

	if err := ch.QueueBind(queueName, "", s.notifier.EventsExchange, false, nil); err != nil {
		return nil, platform.WrapInternal("bind listener queue", err)
	}

	deliveries, err := ch.Consume(queueName, "", false, false, false, false, nil)
	if err != nil {
		return nil, platform.WrapInternal("consume listener queue", err)
	}

	listenCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)

		for {
			select {
			case <-listenCtx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}

				var note AppendNotification
				if err := json.Unmarshal(d.Body, &note); err != nil {
					_ = d.Nack(false, false)
					continue
				}

				callback(note)
				_ = d.Ack(false)
			}
		}
	}()

	return &ListenerHandle{cancel: cancel, done: done}, nil
}
