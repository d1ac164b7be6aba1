package livefeed

import (
	"testing"
	"time"
)

func TestHubBroadcastDeliversToRegisteredClient(t *testing.T) {
	hub := NewHub()
	stop := make(chan struct{})
	go hub.Run(stop)
	defer close(stop)

	client := &Client{ID: "viewer-1", Send: make(chan Frame, 1)}
	hub.register <- client

	// give the hub goroutine a moment to process registration
	time.Sleep(10 * time.Millisecond)

	hub.Broadcast(Frame{VisibleEntryIDs: []int32{1, 2, 3}})

	select {
	case f := <-client.Send:
		if len(f.VisibleEntryIDs) != 3 {
			t.Fatalf("expected 3 entry ids, got %d", len(f.VisibleEntryIDs))
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for broadcast frame")
	}
}

func TestHubUnregisterClosesSendChannel(t *testing.T) {
	hub := NewHub()
	stop := make(chan struct{})
	go hub.Run(stop)
	defer close(stop)

	client := &Client{ID: "viewer-2", Send: make(chan Frame, 1)}
	hub.register <- client
	time.Sleep(10 * time.Millisecond)

	hub.unregister <- client
	time.Sleep(10 * time.Millisecond)

	select {
	case _, ok := <-client.Send:
		if ok {
			t.Fatal("expected closed channel to yield zero value with ok=false")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for channel close")
	}
}
