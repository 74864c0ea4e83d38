package events

import "testing"

func TestTryPushSucceedsWithRoom(t *testing.T) {
	s := NewSink(2)
	if !s.TryPush(Event{Kind: KindAudioFrame}) {
		t.Fatal("expected TryPush to succeed with room available")
	}
}

func TestTryPushFailsWhenFull(t *testing.T) {
	s := NewSink(1)
	if !s.TryPush(Event{Kind: KindAudioFrame}) {
		t.Fatal("expected first push to succeed")
	}
	if s.TryPush(Event{Kind: KindAudioFrame}) {
		t.Fatal("expected second push to fail when sink is full")
	}
}

func TestTryPushFailsAfterClose(t *testing.T) {
	s := NewSink(2)
	s.Close()
	if s.TryPush(Event{Kind: KindAudioFrame}) {
		t.Fatal("expected TryPush to fail after Close")
	}
}

func TestPushBlocksUntilRoom(t *testing.T) {
	s := NewSink(1)
	s.TryPush(Event{Kind: KindAudioFrame}) // fill capacity

	done := make(chan error, 1)
	go func() {
		done <- s.Push(Event{Kind: KindTurnEnded})
	}()

	<-s.Events() // drain the first event, freeing room
	if err := <-done; err != nil {
		t.Fatalf("Push: %v", err)
	}
}

func TestPushReturnsErrAfterClose(t *testing.T) {
	s := NewSink(1)
	s.TryPush(Event{Kind: KindAudioFrame}) // fill capacity so Push would block

	done := make(chan error, 1)
	go func() {
		done <- s.Push(Event{Kind: KindTurnEnded})
	}()
	s.Close()

	if err := <-done; err != ErrSinkClosed {
		t.Fatalf("expected ErrSinkClosed, got %v", err)
	}
}

func TestEventsChannelDeliversPushedEvent(t *testing.T) {
	s := NewSink(2)
	ev := Event{Kind: KindTurnStarted, SessionID: "abc", VADProbability: 0.9}
	s.TryPush(ev)

	got := <-s.Events()
	if got.SessionID != "abc" || got.VADProbability != 0.9 {
		t.Errorf("got %+v, want matching fields from %+v", got, ev)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	s := NewSink(1)
	s.Close()
	s.Close() // must not panic
}
