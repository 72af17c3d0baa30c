package buffer

import (
	"fmt"
	"sync"

	"github.com/jobala/petro/buflog"
	"github.com/jobala/petro/hash"
	"github.com/jobala/petro/storage/disk"
	"github.com/jobala/petro/util"
)

// Option configures a BufferPoolManager at construction time.
type Option func(*BufferPoolManager)

// WithPageAllocator swaps in a page-id allocator other than the default
// monotonic counter.
func WithPageAllocator(a util.PageAllocator) Option {
	return func(b *BufferPoolManager) { b.allocator = a }
}

// BufferPoolManager mediates between a fixed pool of in-memory frames and a
// disk scheduler, implementing the page lifecycle (new/fetch/unpin/flush/
// delete) and the pin-count discipline. A single mutex protects the pool's
// entire state -- frames, free list, page table and replacer calls -- and is
// held across the synchronous disk I/O on the miss path, matching spec §5's
// coarse-locking discipline.
type BufferPoolManager struct {
	mu            sync.Mutex
	frames        []*Frame
	freeList      []int
	pageTable     *hash.Directory[int64, int]
	replacer      *lrukReplacer
	diskScheduler *disk.DiskScheduler
	allocator     util.PageAllocator
}

// NewBufferPoolManager builds a pool of poolSize frames, a replacer that
// tracks each frame's k most recent accesses, and a page table backed by an
// extendible hash directory with the given bucket capacity.
func NewBufferPoolManager(poolSize, replacerK, bucketSize int, diskScheduler *disk.DiskScheduler, opts ...Option) *BufferPoolManager {
	frames := make([]*Frame, poolSize)
	freeList := make([]int, poolSize)
	for i := 0; i < poolSize; i++ {
		frames[i] = newFrame(i)
		freeList[i] = i
	}

	b := &BufferPoolManager{
		frames:        frames,
		freeList:      freeList,
		pageTable:     hash.NewDirectory[int64, int](bucketSize, hash.Int64Hash),
		replacer:      newLrukReplacer(poolSize, replacerK),
		diskScheduler: diskScheduler,
		allocator:     util.NewMonotonicAllocator(),
	}

	for _, opt := range opts {
		opt(b)
	}
	return b
}

// NewPage allocates a fresh page id and returns a pinned, zeroed frame for
// it. Returns an error only if no frame could be acquired (pool exhausted).
func (b *BufferPoolManager) NewPage() (int64, *Frame, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	frame, err := b.acquireFrame()
	if err != nil {
		buflog.PoolExhausted("new_page")
		return InvalidPageID, nil, err
	}

	pageID := b.allocator.Allocate()
	frame.reset()
	frame.pageID = pageID
	frame.pin()

	b.pageTable.Insert(pageID, frame.id)
	b.replacer.recordAccess(frame.id)
	b.replacer.setEvictable(frame.id, false)

	buflog.FrameAcquired("new_page", frame.id, pageID, false)
	return pageID, frame, nil
}

// FetchPage returns a pinned frame holding pageID's current contents,
// reading it from disk if it was not already resident. On a hit it still
// records an access and marks the frame non-evictable -- the source this
// module is built from skipped that bookkeeping on hits, which left a
// pinned frame evictable; see spec §9.
func (b *BufferPoolManager) FetchPage(pageID int64) (*Frame, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if frameID, ok := b.pageTable.Find(pageID); ok {
		frame := b.frames[frameID]
		frame.pin()
		b.replacer.recordAccess(frameID)
		b.replacer.setEvictable(frameID, false)
		buflog.FrameAcquired("fetch_page", frameID, pageID, true)
		return frame, nil
	}

	frame, err := b.acquireFrame()
	if err != nil {
		buflog.PoolExhausted("fetch_page")
		return nil, err
	}

	frame.reset()
	frame.pageID = pageID
	frame.pin()

	data, err := b.readThrough(pageID)
	if err != nil {
		return nil, err
	}
	copy(frame.data, data)

	b.pageTable.Insert(pageID, frame.id)
	b.replacer.recordAccess(frame.id)
	b.replacer.setEvictable(frame.id, false)

	buflog.FrameAcquired("fetch_page", frame.id, pageID, false)
	return frame, nil
}

// UnpinPage decrements pageID's pin count, setting its dirty flag first if
// dirty is true (a prior dirtying is never undone here). Once the pin count
// reaches zero the frame becomes evictable. Returns false if the page isn't
// resident or already has no outstanding pin.
func (b *BufferPoolManager) UnpinPage(pageID int64, dirty bool) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	frameID, ok := b.pageTable.Find(pageID)
	if !ok {
		return false
	}

	frame := b.frames[frameID]
	if frame.pinCount <= 0 {
		return false
	}

	if dirty {
		frame.dirty = true
	}

	if frame.unpin() == 0 {
		b.replacer.setEvictable(frameID, true)
	}
	return true
}

// FlushPage writes pageID's payload to disk unconditionally and clears its
// dirty flag, regardless of pin state. Returns false if the page is not
// resident.
func (b *BufferPoolManager) FlushPage(pageID int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	frameID, ok := b.pageTable.Find(pageID)
	if !ok {
		return false
	}

	b.writeThrough(b.frames[frameID], "flush_page")
	return true
}

// FlushAllPages writes every dirty resident page to disk, skipping clean
// frames -- matching the original's FlushAllPgsImp rather than re-writing
// pages that have nothing to persist.
func (b *BufferPoolManager) FlushAllPages() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, frame := range b.frames {
		if frame.pageID != InvalidPageID && frame.dirty {
			b.writeThrough(frame, "flush_all")
		}
	}
}

// DeletePage removes pageID from the pool. Succeeds trivially if it isn't
// resident. Fails if it is resident and pinned. Otherwise the frame is
// reset, returned to the free list, and the page id is released to the
// allocator.
func (b *BufferPoolManager) DeletePage(pageID int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	frameID, ok := b.pageTable.Find(pageID)
	if !ok {
		return true
	}

	frame := b.frames[frameID]
	if frame.pinCount > 0 {
		return false
	}

	b.pageTable.Remove(pageID)
	// remove asserts evictability, so mark the frame evictable before
	// calling it -- the source called remove directly and tripped that
	// assertion (spec §9).
	b.replacer.setEvictable(frameID, true)
	b.replacer.remove(frameID)

	frame.reset()
	b.freeList = append(b.freeList, frameID)
	b.allocator.Deallocate(pageID)
	return true
}

// acquireFrame implements the frame-acquisition algorithm common to NewPage
// and the miss path of FetchPage: take a free frame if one exists, otherwise
// ask the replacer to evict one, writing back its previous occupant first if
// dirty. Must be called with b.mu held.
func (b *BufferPoolManager) acquireFrame() (*Frame, error) {
	if len(b.freeList) > 0 {
		id := b.freeList[0]
		b.freeList = b.freeList[1:]
		return b.frames[id], nil
	}

	frameID, ok := b.replacer.evict()
	if !ok {
		return nil, util.NewBufferpoolExhaustedError()
	}

	frame := b.frames[frameID]
	buflog.FrameEvicted(frameID, frame.pageID, frame.dirty)
	if frame.dirty {
		b.writeThrough(frame, "evict")
	}
	b.pageTable.Remove(frame.pageID)
	return frame, nil
}

// readThrough blocks on a disk read for pageID via the scheduler.
func (b *BufferPoolManager) readThrough(pageID int64) ([]byte, error) {
	req := disk.NewRequest(pageID, nil, false)
	resp := <-b.diskScheduler.Schedule(req)
	if !resp.Success {
		return nil, fmt.Errorf("petro: failed reading page %d", pageID)
	}
	return resp.Data, nil
}

// writeThrough blocks on a disk write of frame's current payload under its
// current page id, then clears the dirty flag.
func (b *BufferPoolManager) writeThrough(frame *Frame, reason string) {
	buflog.WriteBack(frame.pageID, frame.id, reason)
	req := disk.NewRequest(frame.pageID, frame.data, true)
	<-b.diskScheduler.Schedule(req)
	frame.dirty = false
}
