package bus

import (
	"testing"

	"github.com/google/uuid"
)

func TestPublishDeliversToAllSubscribers(t *testing.T) {
	b := New(4)
	sub1 := b.Subscribe(nil)
	sub2 := b.Subscribe(nil)
	defer b.Unsubscribe(sub1)
	defer b.Unsubscribe(sub2)

	taskID := uuid.New()
	b.Publish(Message{TaskID: taskID, Progress: 0.5})

	for _, sub := range []*Subscription{sub1, sub2} {
		select {
		case msg := <-sub.C():
			if msg.TaskID != taskID {
				t.Errorf("unexpected task id %v", msg.TaskID)
			}
		default:
			t.Errorf("expected message on subscriber channel")
		}
	}
}

func TestSubscribeFiltersByTaskID(t *testing.T) {
	b := New(4)
	wantID := uuid.New()
	otherID := uuid.New()
	sub := b.Subscribe(&wantID)
	defer b.Unsubscribe(sub)

	b.Publish(Message{TaskID: otherID, Progress: 1})
	select {
	case msg := <-sub.C():
		t.Fatalf("unexpected delivery for filtered-out task: %+v", msg)
	default:
	}

	b.Publish(Message{TaskID: wantID, Progress: 1})
	select {
	case msg := <-sub.C():
		if msg.TaskID != wantID {
			t.Errorf("unexpected task id %v", msg.TaskID)
		}
	default:
		t.Fatalf("expected delivery for matching task")
	}
}

func TestOverflowDropsOldestNotNewest(t *testing.T) {
	b := New(2)
	sub := b.Subscribe(nil)
	defer b.Unsubscribe(sub)

	b.Publish(Message{Progress: 1, Message: "first"})
	b.Publish(Message{Progress: 2, Message: "second"})
	b.Publish(Message{Progress: 3, Message: "third"}) // should evict "first"

	first := <-sub.C()
	second := <-sub.C()
	if first.Message != "second" || second.Message != "third" {
		t.Errorf("expected drop-oldest to keep [second, third], got [%s, %s]", first.Message, second.Message)
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := New(2)
	sub := b.Subscribe(nil)
	b.Unsubscribe(sub)

	_, ok := <-sub.C()
	if ok {
		t.Errorf("expected channel closed after Unsubscribe")
	}
}
