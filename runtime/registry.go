package runtime

import (
	"sync"
)

// Set holds the subscription ids of one owner.
type Set map[string]struct{}

// Registry keeps the attached subscriptions, grouped by owner.
type Registry struct {
	mu            sync.RWMutex
	subscriptions map[string]*Subscription // map subscription -> Subscription
	owners        map[string]Set           // map owner to subscriptions
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		subscriptions: make(map[string]*Subscription),
		owners:        make(map[string]Set),
	}
}

// Range calls fn for every attached subscription while holding the read lock.
// fn must not call back into the registry.
func (r *Registry) Range(fn func(sub *Subscription)) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, sub := range r.subscriptions {
		fn(sub)
	}
}

// GetSubscriptions returns a snapshot of every attached subscription.
func (r *Registry) GetSubscriptions() []*Subscription {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := make([]*Subscription, 0, len(r.subscriptions))
	for _, sub := range r.subscriptions {
		res = append(res, sub)
	}
	return res
}

// GetSubscriptionsForOwner resolves the owner's subscription ids into
// subscriptions. Returns nil if the owner has none.
func (r *Registry) GetSubscriptionsForOwner(owner string) []*Subscription {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids, ok := r.owners[owner]
	if !ok {
		return nil
	}
	var res []*Subscription
	for id := range ids {
		if sub, exists := r.subscriptions[id]; exists {
			res = append(res, sub)
		}
	}
	return res
}

// Subscribe registers a subscription under its owner.
// The owner set is initialized on the fly.
func (r *Registry) Subscribe(sub *Subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.subscriptions[sub.id] = sub
	if _, ok := r.owners[sub.owner]; !ok {
		r.owners[sub.owner] = make(Set)
	}
	r.owners[sub.owner][sub.id] = struct{}{}
}

// Unsubscribe removes a subscription and reports whether it was registered.
// Empty owner sets are removed to prevent the map from growing forever.
func (r *Registry) Unsubscribe(sub *Subscription) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.subscriptions[sub.id]; !ok {
		return false
	}
	delete(r.subscriptions, sub.id)

	if ids, ok := r.owners[sub.owner]; ok {
		delete(ids, sub.id)
		if len(ids) == 0 {
			delete(r.owners, sub.owner)
		}
	}
	return true
}

// Len returns the number of registered subscriptions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subscriptions)
}
