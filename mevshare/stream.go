package mevshare

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/r3labs/sse/v2"
	"go.uber.org/zap"
	backoff "gopkg.in/cenkalti/backoff.v1"
)

// EventItem is one delivery from an event stream: either a decoded hint event
// or the error that produced no event. A decode error is per-item and the
// stream keeps going; a transport error is terminal and the stream closes
// after delivering it.
type EventItem struct {
	Event *Event
	Err   error
}

// EventStream is a live subscription to the relay's SSE hint stream.
type EventStream struct {
	items  chan EventItem
	cancel context.CancelFunc
	log    *zap.Logger
}

// SubscribeEvents opens an SSE subscription against the stream endpoint and
// decodes hint events as they arrive. The returned stream must be closed when
// no longer needed; it also closes itself after a terminal transport error or
// when ctx is cancelled.
func SubscribeEvents(ctx context.Context, streamURL string, log *zap.Logger) (*EventStream, error) {
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(ctx)

	client := sse.NewClient(streamURL)
	client.Connection = &http.Client{}
	// Transport failures surface as stream errors instead of silent retries.
	client.ReconnectStrategy = &backoff.StopBackOff{}

	stream := &EventStream{
		items:  make(chan EventItem, 16),
		cancel: cancel,
		log:    log,
	}

	// Only this goroutine closes the items channel, so Close during delivery
	// cannot race a send against the close.
	go func() {
		defer close(stream.items)
		err := client.SubscribeRawWithContext(ctx, func(msg *sse.Event) {
			if len(msg.Data) == 0 {
				return
			}
			var event Event
			if err := json.Unmarshal(msg.Data, &event); err != nil {
				log.Warn("dropping undecodable hint event", zap.Error(err))
				stream.deliver(ctx, EventItem{Err: fmt.Errorf("decode hint event: %w", err)})
				return
			}
			stream.deliver(ctx, EventItem{Event: &event})
		})
		if err != nil && ctx.Err() == nil {
			stream.deliver(ctx, EventItem{Err: fmt.Errorf("event stream failed: %w", err)})
		}
	}()

	return stream, nil
}

// C is the channel of stream deliveries. It is closed when the stream ends.
func (s *EventStream) C() <-chan EventItem {
	return s.items
}

// Close terminates the subscription. The items channel is closed once the
// reader goroutine winds down. Safe to call more than once.
func (s *EventStream) Close() {
	s.cancel()
}

func (s *EventStream) deliver(ctx context.Context, item EventItem) {
	select {
	case s.items <- item:
	case <-ctx.Done():
	}
}
