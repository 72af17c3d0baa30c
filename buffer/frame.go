package buffer

import "github.com/jobala/petro/storage/disk"

// InvalidPageID is the sentinel meaning "no page resident in this frame".
const InvalidPageID int64 = disk.INVALID_PAGE_ID

// Frame is a fixed-size in-memory slot that can host one page's payload.
// Its fields are mutated only while the owning BufferPoolManager's latch
// is held; Data, PageID, Dirty and PinCount are safe to read from a
// caller that is holding a pin on the frame.
type Frame struct {
	id       int
	data     []byte
	pageID   int64
	pinCount int
	dirty    bool
}

func newFrame(id int) *Frame {
	return &Frame{
		id:     id,
		data:   make([]byte, disk.PAGE_SIZE),
		pageID: InvalidPageID,
	}
}

// ID returns the frame's fixed index into the pool's frame array.
func (f *Frame) ID() int { return f.id }

// PageID returns the id of the page currently resident in this frame, or
// InvalidPageID if the frame is on the free list.
func (f *Frame) PageID() int64 { return f.pageID }

// Data exposes the frame's payload buffer directly. Concurrent mutation of
// this buffer across multiple pinners is the caller's responsibility --
// the pool only guarantees the frame isn't evicted while pinned.
func (f *Frame) Data() []byte { return f.data }

// Dirty reports whether the payload has been mutated since its last
// write-back.
func (f *Frame) Dirty() bool { return f.dirty }

// PinCount returns the frame's current pin count.
func (f *Frame) PinCount() int { return f.pinCount }

func (f *Frame) pin() { f.pinCount++ }

func (f *Frame) unpin() int {
	f.pinCount--
	return f.pinCount
}

// reset clears a frame for reuse: no page, no pins, not dirty, zeroed
// buffer. Called only once a frame has been fully evicted or deleted.
func (f *Frame) reset() {
	f.dirty = false
	f.pinCount = 0
	f.pageID = InvalidPageID
	clear(f.data)
}
