// Copyright © 2025 OpenCHAMI a Series of LF Projects, LLC
//
// SPDX-License-Identifier: MIT

package eventbus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishReachesAllSubscribers(t *testing.T) {
	bus := New()
	a := bus.Subscribe(TopicHostStatusChanged)
	b := bus.Subscribe(TopicHostStatusChanged)

	bus.Publish(TopicHostStatusChanged, map[string]any{"host": "pc01"})

	for _, ch := range []<-chan Event{a, b} {
		select {
		case ev := <-ch:
			assert.Equal(t, TopicHostStatusChanged, ev.Topic)
			assert.Equal(t, "pc01", ev.Payload["host"])
		default:
			t.Fatal("expected a buffered event")
		}
	}
}

func TestPublishDoesNotCrossTopics(t *testing.T) {
	bus := New()
	ch := bus.Subscribe(TopicOperationStarted)

	bus.Publish(TopicOperationCompleted, map[string]any{"id": "op1"})

	select {
	case <-ch:
		t.Fatal("subscriber received an event for a different topic")
	default:
	}
}

func TestPublishToTopicWithoutSubscribersIsSafe(t *testing.T) {
	bus := New()
	require.NotPanics(t, func() {
		bus.Publish(TopicSettingsChanged, map[string]any{"key": "server_ip"})
	})
}

func TestSlowSubscriberDoesNotBlockPublish(t *testing.T) {
	bus := New()
	bus.Subscribe(TopicHostStatusChanged)

	for i := 0; i < 100; i++ {
		bus.Publish(TopicHostStatusChanged, map[string]any{"i": i})
	}
	// 32-slot buffer fills; the remaining publishes drop rather than block.
}
