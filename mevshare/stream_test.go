package mevshare

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func sseServer(t *testing.T, payloads []string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		require.True(t, ok)
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()
		for _, payload := range payloads {
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
		}
		// keep the connection open until the client goes away
		<-r.Context().Done()
	}))
}

func nextItem(t *testing.T, stream *EventStream) EventItem {
	t.Helper()
	select {
	case item, ok := <-stream.C():
		require.True(t, ok, "stream closed early")
		return item
	case <-time.After(5 * time.Second):
		t.Fatal("no stream delivery")
		return EventItem{}
	}
}

func TestSubscribeEventsDecodes(t *testing.T) {
	server := sseServer(t, []string{
		`{"hash":"0x0100000000000000000000000000000000000000000000000000000000000000","txs":[{"callData":"0x1234"}]}`,
		`{"hash":"0x0200000000000000000000000000000000000000000000000000000000000000"}`,
	})
	defer server.Close()

	stream, err := SubscribeEvents(context.Background(), server.URL, nil)
	require.NoError(t, err)
	defer stream.Close()

	first := nextItem(t, stream)
	require.NoError(t, first.Err)
	require.Equal(t, uint8(1), first.Event.Hash[0])
	require.Len(t, first.Event.Txs, 1)

	second := nextItem(t, stream)
	require.NoError(t, second.Err)
	require.Equal(t, uint8(2), second.Event.Hash[0])
}

func TestSubscribeEventsMalformedItemKeepsStreamGoing(t *testing.T) {
	server := sseServer(t, []string{
		`this is not json`,
		`{"hash":"0x0300000000000000000000000000000000000000000000000000000000000000"}`,
	})
	defer server.Close()

	stream, err := SubscribeEvents(context.Background(), server.URL, nil)
	require.NoError(t, err)
	defer stream.Close()

	bad := nextItem(t, stream)
	require.Error(t, bad.Err)
	require.Nil(t, bad.Event)

	good := nextItem(t, stream)
	require.NoError(t, good.Err)
	require.Equal(t, uint8(3), good.Event.Hash[0])
}

func TestSubscribeEventsCloseEndsChannel(t *testing.T) {
	server := sseServer(t, nil)
	defer server.Close()

	stream, err := SubscribeEvents(context.Background(), server.URL, nil)
	require.NoError(t, err)

	stream.Close()
	select {
	case _, ok := <-stream.C():
		require.False(t, ok)
	case <-time.After(5 * time.Second):
		t.Fatal("stream channel not closed")
	}
}

func TestSubscribeEventsTransportErrorIsTerminal(t *testing.T) {
	server := sseServer(t, nil)
	stream, err := SubscribeEvents(context.Background(), server.URL, nil)
	require.NoError(t, err)
	defer stream.Close()

	// dropping the server kills the connection; the stream must deliver a
	// terminal error and close instead of silently reconnecting
	server.CloseClientConnections()
	server.Close()

	sawError := false
	deadline := time.After(10 * time.Second)
	for {
		select {
		case item, ok := <-stream.C():
			if !ok {
				require.True(t, sawError, "stream closed without a terminal error")
				return
			}
			if item.Err != nil {
				sawError = true
			}
		case <-deadline:
			t.Fatal("stream did not terminate")
		}
	}
}
