package realtime

import (
	"encoding/json"
	"sync"

	"github.com/anonto42/nano-social/backend/internal/metrics"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Event is the frame exchanged over the live channel.
type Event struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

const (
	EventJoin         = "join"
	EventJoined       = "joined"
	EventNotification = "notification"
	EventError        = "error"
)

// Registry tracks open live connections and the per-user delivery groups
// they joined. A connection holds a slot from Acquire until Release; a
// session receives deliveries for a user between Join and Leave.
type Registry struct {
	mu             sync.RWMutex
	maxConnections int
	connections    int
	groups         map[primitive.ObjectID]map[*Session]struct{}
}

// NewRegistry creates a registry. maxConnections <= 0 means unlimited.
func NewRegistry(maxConnections int) *Registry {
	return &Registry{
		maxConnections: maxConnections,
		groups:         make(map[primitive.ObjectID]map[*Session]struct{}),
	}
}

// Acquire reserves a connection slot. It returns false once the cap is reached.
func (r *Registry) Acquire() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.maxConnections > 0 && r.connections >= r.maxConnections {
		return false
	}
	r.connections++
	metrics.LiveConnections.Inc()
	return true
}

func (r *Registry) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.connections > 0 {
		r.connections--
		metrics.LiveConnections.Dec()
	}
}

func (r *Registry) Connections() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.connections
}

// Join adds s to userID's delivery group. A session belongs to at most one
// group; joining again moves it.
func (r *Registry) Join(userID primitive.ObjectID, s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s.joined {
		r.removeLocked(s)
	}
	group, ok := r.groups[userID]
	if !ok {
		group = make(map[*Session]struct{})
		r.groups[userID] = group
	}
	group[s] = struct{}{}
	s.userID = userID
	s.joined = true
}

// Leave removes s from its delivery group, if any.
func (r *Registry) Leave(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(s)
}

func (r *Registry) removeLocked(s *Session) {
	if !s.joined {
		return
	}
	if group, ok := r.groups[s.userID]; ok {
		delete(group, s)
		if len(group) == 0 {
			delete(r.groups, s.userID)
		}
	}
	s.userID = primitive.NilObjectID
	s.joined = false
}

// Sessions returns the number of sessions joined for userID.
func (r *Registry) Sessions(userID primitive.ObjectID) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.groups[userID])
}

// Deliver pushes event to every session of userID without blocking and
// returns how many sessions accepted it.
func (r *Registry) Deliver(userID primitive.ObjectID, event Event) int {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Errorf("Error marshalling %s event: %s", event.Event, err)
		return 0
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	group := r.groups[userID]
	if len(group) == 0 {
		metrics.LiveDeliveries.WithLabelValues("offline").Inc()
		return 0
	}
	delivered := 0
	for s := range group {
		if s.Send(payload) {
			delivered++
			metrics.LiveDeliveries.WithLabelValues("delivered").Inc()
		} else {
			metrics.LiveDeliveries.WithLabelValues("dropped").Inc()
		}
	}
	return delivered
}
