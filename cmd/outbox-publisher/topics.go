package main

import (
	"context"
	"fmt"
	"sync"

	gcppubsub "cloud.google.com/go/pubsub/v2"
)

// topicPublisher is the part of *pubsub.Publisher the relay drives.
type topicPublisher interface {
	Publish(ctx context.Context, msg *gcppubsub.Message) publishResult
	ResumePublish(orderingKey string)
	Stop()
}

type publishResult interface {
	Get(ctx context.Context) (serverID string, err error)
}

type openTopicFunc func(topic string) (topicPublisher, error)

// topicSet opens each topic's publisher on first use and keeps it, so
// messages for one topic share Pub/Sub's client-side batching.
type topicSet struct {
	open openTopicFunc

	mu   sync.Mutex
	pubs map[string]topicPublisher
}

func newTopicSet(open openTopicFunc) *topicSet {
	return &topicSet{open: open, pubs: map[string]topicPublisher{}}
}

func (t *topicSet) get(topic string) (topicPublisher, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if pub, ok := t.pubs[topic]; ok {
		return pub, nil
	}
	pub, err := t.open(topic)
	if err != nil {
		return nil, fmt.Errorf("open topic %s: %w", topic, err)
	}
	t.pubs[topic] = pub
	return pub, nil
}

// stop flushes and closes every open publisher.
func (t *topicSet) stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for topic, pub := range t.pubs {
		pub.Stop()
		delete(t.pubs, topic)
	}
}

// orderedTopics opens real Pub/Sub publishers with message ordering on, so
// one rental's events reach subscribers in commit order.
func orderedTopics(client interface {
	Publisher(topic string) *gcppubsub.Publisher
}) openTopicFunc {
	return func(topic string) (topicPublisher, error) {
		p := client.Publisher(topic)
		if p == nil {
			return nil, fmt.Errorf("no publisher for topic %q", topic)
		}
		p.EnableMessageOrdering = true
		return gcpTopic{p}, nil
	}
}

type gcpTopic struct{ *gcppubsub.Publisher }

func (g gcpTopic) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	return g.Publisher.Publish(ctx, msg)
}
