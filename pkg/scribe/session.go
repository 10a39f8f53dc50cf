package scribe

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/Nephrolytics-ai/clinical-scribe/pkg/logging"
)

// session is the ephemeral scope around one pipeline invocation. Every byte
// buffer holding patient content is registered with it, and release zeroes
// them all on every exit path, success or failure, so nothing readable
// outlives the request. Only the session id and buffer counts are logged.
type session struct {
	id  string
	log logging.Logger

	mu       sync.Mutex
	buffers  [][]byte
	released bool
}

func newSession(ctx context.Context) *session {
	return &session{
		id:  uuid.NewString(),
		log: logging.NewLogger(ctx),
	}
}

// hold registers a buffer for release and returns it unchanged.
func (s *session) hold(buf []byte) []byte {
	if len(buf) == 0 {
		return buf
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		// Late registration after release still gets wiped; the guarantee
		// is absolute, not best-effort.
		zero(buf)
		return buf
	}
	s.buffers = append(s.buffers, buf)
	return buf
}

// holdCopy registers a private copy of buf so the caller's slice stays
// untouched while the copy is wiped with the session.
func (s *session) holdCopy(buf []byte) []byte {
	copied := make([]byte, len(buf))
	copy(copied, buf)
	return s.hold(copied)
}

// release zeroes every held buffer. It is idempotent and safe to defer
// alongside explicit calls on failure paths.
func (s *session) release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return
	}
	s.released = true

	for _, buf := range s.buffers {
		zero(buf)
	}
	count := len(s.buffers)
	s.buffers = nil

	s.log.Debugf("session=%s released buffers=%d", s.id, count)
}

func zero(buf []byte) {
	for i := range buf {
		buf[i] = 0
	}
}
