package mapctl

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBus_PublishSubscribe(t *testing.T) {
	b := NewBus()

	var got []Event
	b.Subscribe(TopicStyleChanged, func(ev Event) { got = append(got, ev) })

	b.Publish(TopicStyleChanged, "dark")
	b.Publish(TopicBlurChanged, true) // different topic, not delivered

	assert.Len(t, got, 1)
	assert.Equal(t, "dark", got[0].Payload)
}

func TestBus_LateSubscriberMissesEarlierEvents(t *testing.T) {
	b := NewBus()
	b.Publish(TopicStyleChanged, "light")

	var got []Event
	b.Subscribe(TopicStyleChanged, func(ev Event) { got = append(got, ev) })
	b.Publish(TopicStyleChanged, "dark")

	assert.Len(t, got, 1)
	assert.Equal(t, "dark", got[0].Payload)
}

func TestBus_Unsubscribe(t *testing.T) {
	b := NewBus()

	var count int
	unsub := b.Subscribe(TopicStyleChanged, func(Event) { count++ })

	b.Publish(TopicStyleChanged, nil)
	unsub()
	unsub() // second call is a no-op
	b.Publish(TopicStyleChanged, nil)

	assert.Equal(t, 1, count)
}

func TestBus_MultipleSubscribers(t *testing.T) {
	b := NewBus()

	var a, c int
	b.Subscribe(TopicPopupUpdated, func(Event) { a++ })
	b.Subscribe(TopicPopupUpdated, func(Event) { c++ })

	b.Publish(TopicPopupUpdated, nil)
	assert.Equal(t, 1, a)
	assert.Equal(t, 1, c)
}
