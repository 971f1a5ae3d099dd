package audio

import "testing"

func TestBroadcastNoSubscribersReturnsFalse(t *testing.T) {
	b := NewFrameBroadcaster(4)
	if b.Send(AudioFrame{}) {
		t.Error("Send() with no subscribers = true, want false")
	}
}

func TestBroadcastDeliversToSubscriber(t *testing.T) {
	b := NewFrameBroadcaster(4)
	sub := b.Subscribe()
	defer sub.Close()

	frame := AudioFrame{TimestampMs: 42}
	if !b.Send(frame) {
		t.Fatal("Send() = false, want true")
	}

	select {
	case got := <-sub.Frames():
		if got.TimestampMs != 42 {
			t.Errorf("TimestampMs = %d, want 42", got.TimestampMs)
		}
	default:
		t.Fatal("expected frame to be delivered synchronously via buffered channel")
	}
}

func TestBroadcastDropsOnLagWithoutBlocking(t *testing.T) {
	b := NewFrameBroadcaster(2)
	sub := b.Subscribe()
	defer sub.Close()

	for i := 0; i < 10; i++ {
		b.Send(AudioFrame{TimestampMs: uint64(i)})
	}
	// Must not have blocked; channel holds at most its capacity.
	if n := len(sub.Frames()); n > 2 {
		t.Errorf("subscriber channel held %d frames, want <= 2", n)
	}
}

func TestBroadcastSubscriberCount(t *testing.T) {
	b := NewFrameBroadcaster(4)
	if b.SubscriberCount() != 0 {
		t.Fatalf("SubscriberCount() = %d, want 0", b.SubscriberCount())
	}
	sub1 := b.Subscribe()
	sub2 := b.Subscribe()
	if b.SubscriberCount() != 2 {
		t.Fatalf("SubscriberCount() = %d, want 2", b.SubscriberCount())
	}
	sub1.Close()
	if b.SubscriberCount() != 1 {
		t.Fatalf("SubscriberCount() = %d, want 1", b.SubscriberCount())
	}
	sub2.Close()
}
