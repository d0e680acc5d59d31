package realtime

import (
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Session is one live connection's outbound side. userID and joined are
// guarded by the owning Registry's mutex.
type Session struct {
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once

	userID primitive.ObjectID
	joined bool
}

func NewSession(bufferSize int) *Session {
	if bufferSize < 1 {
		bufferSize = 1
	}
	return &Session{
		send: make(chan []byte, bufferSize),
		done: make(chan struct{}),
	}
}

// Send queues payload for the writer. It never blocks: a full buffer or a
// closed session drops the payload and returns false.
func (s *Session) Send(payload []byte) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.send <- payload:
		return true
	default:
		return false
	}
}

// Outbound is drained by the connection writer.
func (s *Session) Outbound() <-chan []byte { return s.send }

// Done is closed by Close.
func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}
