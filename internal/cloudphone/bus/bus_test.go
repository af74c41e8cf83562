package bus_test

import (
	"testing"
	"time"

	"cloudphone/internal/cloudphone/bus"
)

func TestBus_PublishFansOutToEverySubscriber(t *testing.T) {
	b := bus.New()
	id1, ch1, err := b.Subscribe()
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	id2, ch2, err := b.Subscribe()
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer b.Unsubscribe(id1)
	defer b.Unsubscribe(id2)

	b.Publish(bus.TopicLog, "hello")

	for _, ch := range []<-chan bus.Event{ch1, ch2} {
		select {
		case ev := <-ch:
			if ev.Topic != bus.TopicLog || ev.Payload != "hello" {
				t.Fatalf("unexpected event: %+v", ev)
			}
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive the published event")
		}
	}
}

func TestBus_SlowSubscriberDoesNotBlockOthers(t *testing.T) {
	b := bus.New()
	_, slowCh, _ := b.Subscribe() // never drained
	id2, ch2, _ := b.Subscribe()
	defer b.Unsubscribe(id2)

	// Fill the slow subscriber's buffer past capacity; publication must
	// not block on it (spec §4.2 "a subscriber failure does not block
	// others").
	for i := 0; i < 200; i++ {
		b.Publish(bus.TopicLog, i)
	}

	select {
	case <-ch2:
	case <-time.After(time.Second):
		t.Fatal("fast subscriber starved by a slow one")
	}
	_ = slowCh
}

func TestBus_UnsubscribeClosesChannel(t *testing.T) {
	b := bus.New()
	id, ch, _ := b.Subscribe()
	b.Unsubscribe(id)

	_, ok := <-ch
	if ok {
		t.Fatal("expected channel to be closed after Unsubscribe")
	}
	if b.SubscriberCount() != 0 {
		t.Fatalf("expected 0 subscribers, got %d", b.SubscriberCount())
	}
}
