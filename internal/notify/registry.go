package notify

import (
	"github.com/gosuda/shopdesk/internal/messenger"
)

// Factory builds a messenger authenticated with a tenant's credential.
type Factory func(token string) (messenger.Messenger, error)

// Registry maps channel names (domain.ChannelSlack, ...) to messenger factories.
type Registry struct {
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

func (r *Registry) Register(channel string, f Factory) {
	r.factories[channel] = f
}

// Get returns the factory for channel, or false if none is registered.
func (r *Registry) Get(channel string) (Factory, bool) {
	f, ok := r.factories[channel]
	return f, ok
}
