package pubsub

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
)

// Topic is the untyped view of an Event, used for discovery.
type Topic interface {
	Name() string
	Description() string
}

var (
	// ErrDuplicateTopic is returned when a name is registered twice.
	ErrDuplicateTopic = errors.New("topic already registered")
	// ErrInvalidTopic is returned for malformed names or empty descriptions.
	ErrInvalidTopic = errors.New("invalid topic")
)

// Names are dot-separated lowercase segments, e.g. room.state_changed.
var topicName = regexp.MustCompile(`^[a-z][a-z0-9_]*(\.[a-z][a-z0-9_]*)*$`)

// Registry records the topics a package publishes.
type Registry struct {
	mu     sync.RWMutex
	topics map[string]Topic
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{topics: make(map[string]Topic)}
}

// Register validates and adds topic.
func (r *Registry) Register(topic Topic) error {
	if topic == nil {
		return fmt.Errorf("%w: nil topic", ErrInvalidTopic)
	}
	name := topic.Name()
	if !topicName.MatchString(name) {
		return fmt.Errorf("%w: name %q must be dot-separated lowercase segments", ErrInvalidTopic, name)
	}
	if strings.TrimSpace(topic.Description()) == "" {
		return fmt.Errorf("%w: %s has no description", ErrInvalidTopic, name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.topics[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTopic, name)
	}
	r.topics[name] = topic
	return nil
}

// MustRegister is Register for package initialization.
func (r *Registry) MustRegister(topics ...Topic) {
	for _, t := range topics {
		if err := r.Register(t); err != nil {
			panic(err)
		}
	}
}

// Get looks a topic up by name.
func (r *Registry) Get(name string) (Topic, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.topics[name]
	return t, ok
}

// List returns every topic sorted by name.
func (r *Registry) List() []Topic {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Topic, 0, len(r.topics))
	for _, t := range r.topics {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}
