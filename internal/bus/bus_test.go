package bus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, s *Subscription) Message {
	t.Helper()
	select {
	case msg := <-s.C():
		return msg
	case <-time.After(time.Second):
		t.Fatal("no message received")
		return Message{}
	}
}

func TestPublish_ExactTopic(t *testing.T) {
	b := New()
	sub := b.Subscribe("test", 16, TickTopic)

	b.Publish(TickTopic, []byte("one"))
	b.Publish(BuyOfferTopic, []byte("other"))

	msg := receive(t, sub)
	assert.Equal(t, TickTopic, msg.Topic)
	assert.Equal(t, "one", string(msg.Payload))

	select {
	case extra := <-sub.C():
		t.Fatalf("unexpected delivery: %s", extra.Topic)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPublish_PrefixWildcard(t *testing.T) {
	b := New()
	sub := b.Subscribe("test", 16, VehicleTopic+"/#")

	b.Publish(VehicleTopic+"/Zuko", []byte("state"))
	b.Publish(VehicleTopic, []byte("bare")) // no wildcard match without the slash

	msg := receive(t, sub)
	assert.Equal(t, VehicleTopic+"/Zuko", msg.Topic)

	select {
	case extra := <-sub.C():
		t.Fatalf("unexpected delivery: %s", extra.Topic)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPublish_HashMatchesEverything(t *testing.T) {
	b := New()
	sub := b.Subscribe("test", 16, "#")

	b.Publish(TickTopic, []byte("a"))
	b.Publish(ChargerRequest, []byte("b"))

	assert.Equal(t, TickTopic, receive(t, sub).Topic)
	assert.Equal(t, ChargerRequest, receive(t, sub).Topic)
}

func TestRetained_ReplayedOnSubscribe(t *testing.T) {
	b := New()
	b.PublishRetained(PowerLocation, []byte("where"))

	sub := b.Subscribe("late", 16, PowerLocation)
	msg := receive(t, sub)
	assert.True(t, msg.Retained)
	assert.Equal(t, "where", string(msg.Payload))
}

func TestRetained_LastWriteWins(t *testing.T) {
	b := New()
	b.PublishRetained(TickTopic, []byte("old"))
	b.PublishRetained(TickTopic, []byte("new"))

	sub := b.Subscribe("late", 16, TickTopic)
	assert.Equal(t, "new", string(receive(t, sub).Payload))
}

func TestDeliver_DropsDuplicateIDs(t *testing.T) {
	b := New()
	sub := b.Subscribe("test", 16, TickTopic)

	b.Publish(TickTopic, []byte("payload"))
	msg := receive(t, sub)

	// replaying the same message must be suppressed
	sub.deliver(msg)
	select {
	case <-sub.C():
		t.Fatal("duplicate was delivered")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPublish_FullInboxDoesNotBlock(t *testing.T) {
	b := New()
	sub := b.Subscribe("slow", 1, TickTopic)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			b.Publish(TickTopic, []byte("x"))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}

	// exactly one message fits the buffer
	receive(t, sub)
}

func TestUnsubscribe_ClosesInbox(t *testing.T) {
	b := New()
	sub := b.Subscribe("test", 16, TickTopic)
	b.Unsubscribe(sub)

	_, ok := <-sub.C()
	assert.False(t, ok)

	// publishing after unsubscribe must not panic
	b.Publish(TickTopic, []byte("x"))
	b.Unsubscribe(sub) // idempotent
}

func TestPublish_FIFOPerTopic(t *testing.T) {
	b := New()
	sub := b.Subscribe("test", 16, TickTopic)

	for _, p := range []string{"1", "2", "3"} {
		b.Publish(TickTopic, []byte(p))
	}

	require.Equal(t, "1", string(receive(t, sub).Payload))
	require.Equal(t, "2", string(receive(t, sub).Payload))
	require.Equal(t, "3", string(receive(t, sub).Payload))
}
