package orchestrator

import (
	"encoding/json"
	"sync"

	"github.com/seantiz/topoctl/internal/model"
)

// subscriberBufferSize is the channel buffer for each status subscriber.
// Events are dropped if a subscriber falls this far behind.
const subscriberBufferSize = 64

// StatusBroker fans out status updates per entity to subscribers. It is
// safe for concurrent use.
type StatusBroker struct {
	mu     sync.Mutex
	topics map[string]*statusTopic
}

type statusTopic struct {
	subs   map[int]chan string
	nextID int
}

// NewStatusBroker creates a new status broker.
func NewStatusBroker() *StatusBroker {
	return &StatusBroker{
		topics: make(map[string]*statusTopic),
	}
}

// Topic names the stream of one entity.
func Topic(family, key string) string {
	return family + "/" + key
}

// Subscribe returns a channel receiving JSON-encoded status events for
// topic and an unsubscribe function. The channel is closed when the
// entity is deleted.
func (b *StatusBroker) Subscribe(topic string) (<-chan string, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[topic]
	if !ok {
		t = &statusTopic{subs: make(map[int]chan string)}
		b.topics[topic] = t
	}

	ch := make(chan string, subscriberBufferSize)
	id := t.nextID
	t.nextID++
	t.subs[id] = ch

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := t.subs[id]; !ok {
			return
		}
		delete(t.subs, id)
		if len(t.subs) == 0 && b.topics[topic] == t {
			delete(b.topics, topic)
		}
	}
}

// Publish sends status to all subscribers of topic. Events are dropped
// for subscribers whose buffers are full.
func (b *StatusBroker) Publish(topic string, status *model.Status) {
	data, err := json.Marshal(status)
	if err != nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[topic]
	if !ok {
		return
	}
	for _, ch := range t.subs {
		select {
		case ch <- string(data):
		default:
		}
	}
}

// Close closes every subscriber channel of topic. Later subscribers
// start a fresh stream.
func (b *StatusBroker) Close(topic string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[topic]
	if !ok {
		return
	}
	for id, ch := range t.subs {
		close(ch)
		delete(t.subs, id)
	}
	delete(b.topics, topic)
}
