package live

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}

func receive(t *testing.T, sub *Subscription) Frame {
	t.Helper()
	select {
	case f := <-sub.Frames():
		return f
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for frame")
	}
	return Frame{}
}

func TestHubDeliversToEverySubscriberInOrder(t *testing.T) {
	hub := NewHub(8, zap.NewNop())
	a, err := hub.Subscribe("test")
	if err != nil {
		t.Fatalf("subscribe a: %v", err)
	}
	b, err := hub.Subscribe("test")
	if err != nil {
		t.Fatalf("subscribe b: %v", err)
	}

	hub.Publish(EventDatapointCreated, map[string]int{"n": 1})
	hub.Publish(EventAlertTriggered, map[string]int{"n": 2})

	for _, sub := range []*Subscription{a, b} {
		first := receive(t, sub)
		second := receive(t, sub)
		if first.Event != EventDatapointCreated || second.Event != EventAlertTriggered {
			t.Fatalf("order = %s, %s", first.Event, second.Event)
		}
		var payload map[string]int
		if err := json.Unmarshal(second.Data, &payload); err != nil || payload["n"] != 2 {
			t.Fatalf("payload = %s (%v)", second.Data, err)
		}
	}
}

func TestHubNoReplayForLateSubscribers(t *testing.T) {
	hub := NewHub(8, zap.NewNop())
	hub.Publish(EventDatapointCreated, "early")

	sub, err := hub.Subscribe("test")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	select {
	case f := <-sub.Frames():
		t.Fatalf("late subscriber received %s", f.Event)
	default:
	}
}

func TestHubPublishWithoutSubscribers(t *testing.T) {
	hub := NewHub(1, zap.NewNop())
	hub.Publish(EventDatapointCreated, struct{}{})
	if hub.Subscribers() != 0 {
		t.Fatalf("subscribers = %d", hub.Subscribers())
	}
}

func TestHubSlowSubscriberDoesNotBlockOthers(t *testing.T) {
	hub := NewHub(2, zap.NewNop())
	slow, _ := hub.Subscribe("test")
	fast, _ := hub.Subscribe("test")

	done := make(chan struct{})
	go func() {
		for i := 0; i < 5; i++ {
			hub.Publish(EventDatapointCreated, i)
			<-fast.Frames()
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publisher blocked on a slow subscriber")
	}
	if slow.Dropped() != 3 {
		t.Fatalf("slow dropped = %d, want 3", slow.Dropped())
	}
	if fast.Dropped() != 0 {
		t.Fatalf("fast dropped = %d", fast.Dropped())
	}
}

func TestHubUnsubscribeDuringPublish(t *testing.T) {
	hub := NewHub(4, zap.NewNop())
	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				hub.Publish(EventDatapointCreated, 1)
			}
		}
	}()

	for i := 0; i < 100; i++ {
		sub, err := hub.Subscribe("test")
		if err != nil {
			t.Fatalf("subscribe: %v", err)
		}
		sub.Close()
		sub.Close()
		select {
		case <-sub.Done():
		default:
			t.Fatal("closed subscription not done")
		}
	}
	close(stop)
	wg.Wait()

	if hub.Subscribers() != 0 {
		t.Fatalf("subscribers = %d", hub.Subscribers())
	}
}

func TestHubShutdownEndsSubscriptions(t *testing.T) {
	hub := NewHub(4, zap.NewNop())
	sub, _ := hub.Subscribe("test")

	hub.Shutdown()
	waitFor(t, time.Second, func() bool {
		select {
		case <-sub.Done():
			return true
		default:
			return false
		}
	})
	if _, err := hub.Subscribe("test"); !errors.Is(err, ErrHubClosed) {
		t.Fatalf("subscribe after shutdown: %v", err)
	}
	sub.Close()
	hub.Shutdown()
}
