package store

import "sync"

// Hub fans change hints out to watchers. Delivery is coalesced: a watcher
// that has not drained its pending hint only ever sees the newest one.
type Hub struct {
	mu   sync.Mutex
	next int
	subs map[string]map[int]chan Change
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[int]chan Change)}
}

// Subscribe registers a watcher for one collection path. The returned
// cancel is idempotent and closes the channel.
func (h *Hub) Subscribe(path string) (<-chan Change, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.next
	h.next++
	ch := make(chan Change, 1)
	if h.subs[path] == nil {
		h.subs[path] = make(map[int]chan Change)
	}
	h.subs[path][id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if subs := h.subs[path]; subs != nil {
				delete(subs, id)
				if len(subs) == 0 {
					delete(h.subs, path)
				}
			}
			close(ch)
		})
	}
	return ch, cancel
}

// Broadcast delivers a hint to every watcher of the change's path,
// replacing any stale pending hint.
func (h *Hub) Broadcast(c Change) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs[c.Path] {
		select {
		case ch <- c:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- c:
			default:
			}
		}
	}
}
