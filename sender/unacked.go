package sender

import (
	"time"

	"github.com/opd-ai/prism-video/protocol"
)

// unackedEntry is the sender-side record of one in-flight fragment: the
// fragment as last transmitted, plus the wall-clock time it was sent.
type unackedEntry struct {
	fragment *protocol.Fragment
	sentAt   time.Time
}

// unackedTable indexes in-flight fragments by (frame id, fragment index).
// It is touched only by the event loop goroutine (spec §5) and therefore
// carries no internal locking.
type unackedTable struct {
	entries map[protocol.Key]unackedEntry
}

func newUnackedTable() *unackedTable {
	return &unackedTable{entries: make(map[protocol.Key]unackedEntry)}
}

func (u *unackedTable) insert(frag *protocol.Fragment, sentAt time.Time) {
	u.entries[frag.Key()] = unackedEntry{fragment: frag, sentAt: sentAt}
}

func (u *unackedTable) remove(key protocol.Key) (unackedEntry, bool) {
	entry, ok := u.entries[key]
	if ok {
		delete(u.entries, key)
	}
	return entry, ok
}

// abandonFrame removes every entry belonging to frameID, used when a frame
// ages out of the liveness window.
func (u *unackedTable) abandonFrame(frameID uint32) int {
	removed := 0
	for key := range u.entries {
		if key.FrameID == frameID {
			delete(u.entries, key)
			removed++
		}
	}
	return removed
}

func (u *unackedTable) len() int {
	return len(u.entries)
}
