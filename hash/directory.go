// Package hash implements the extendible hash directory used as the
// buffer pool's page table: an associative map from a logical key (the
// page id) to a frame index, built to grow by doubling instead of
// rehashing everything at once.
package hash

import (
	"encoding/binary"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/jobala/petro/buflog"
)

// HashFunc produces the stable hash a key routes through. Low bits of the
// result select the directory slot.
type HashFunc[K comparable] func(K) uint64

// Int64Hash hashes an int64 key (e.g. a page id) with xxhash over its
// little-endian byte representation. This is the default hash used for
// the buffer pool's page table.
func Int64Hash(key int64) uint64 {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(key))
	return xxhash.Sum64(buf[:])
}

// Directory is a generic extendible hash table: Insert/Find/Remove over
// any comparable key, bounded-capacity buckets, local-depth splits, and a
// directory that doubles only when the splitting bucket has caught up to
// the global depth.
type Directory[K comparable, V any] struct {
	mu          sync.Mutex
	hashFn      HashFunc[K]
	bucketSize  int
	globalDepth int
	numBuckets  int
	dir         []*bucket[K, V]
}

// NewDirectory builds a directory with a single empty bucket at global
// depth 0, matching spec §6's construction parameters.
func NewDirectory[K comparable, V any](bucketSize int, hashFn HashFunc[K]) *Directory[K, V] {
	return &Directory[K, V]{
		hashFn:     hashFn,
		bucketSize: bucketSize,
		numBuckets: 1,
		dir:        []*bucket[K, V]{newBucket[K, V](bucketSize, 0)},
	}
}

func (d *Directory[K, V]) indexOf(key K) int {
	mask := uint64(1)<<uint(d.globalDepth) - 1
	return int(d.hashFn(key) & mask)
}

// Find returns the value associated with key, if any.
func (d *Directory[K, V]) Find(key K) (V, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dir[d.indexOf(key)].find(key)
}

// Remove deletes key if present and reports whether it was.
func (d *Directory[K, V]) Remove(key K) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dir[d.indexOf(key)].remove(key)
}

// Insert adds key/value, or updates value in place if key already exists.
// Overflow triggers a local split, growing the directory first if the
// splitting bucket's local depth has caught up to the global depth. A
// single split may not separate an overflowing bucket (every key could
// hash to the same new half), so insertion retries in a loop rather than
// recursing — each split strictly increases a local depth, so the loop
// converges.
func (d *Directory[K, V]) Insert(key K, value V) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for {
		idx := d.indexOf(key)
		b := d.dir[idx]

		if _, ok := b.find(key); ok {
			b.insert(key, value)
			return
		}
		if !b.isFull() {
			b.insert(key, value)
			return
		}

		if b.depth == d.globalDepth {
			d.growGlobal()
			idx = d.indexOf(key)
			b = d.dir[idx]
		}
		d.growLocal(idx)
	}
}

func (d *Directory[K, V]) growGlobal() {
	old := d.globalDepth
	d.dir = append(d.dir, d.dir...)
	d.globalDepth++
	buflog.DirectoryGrowth(old, d.globalDepth)
}

// growLocal splits the bucket at idx into two buckets at depth+1,
// partitioning its items by the newly significant hash bit, then
// redirects every directory slot that pointed at the old bucket to
// whichever half matches that slot's own index bit.
func (d *Directory[K, V]) growLocal(idx int) {
	old := d.dir[idx]
	newDepth := old.depth + 1
	splitBit := uint64(1) << uint(old.depth)

	zero := newBucket[K, V](d.bucketSize, newDepth)
	one := newBucket[K, V](d.bucketSize, newDepth)
	for _, e := range old.items {
		if d.hashFn(e.key)&splitBit != 0 {
			one.items = append(one.items, e)
		} else {
			zero.items = append(zero.items, e)
		}
	}

	for i := range d.dir {
		if d.dir[i] != old {
			continue
		}
		if uint64(i)&splitBit != 0 {
			d.dir[i] = one
		} else {
			d.dir[i] = zero
		}
	}
	d.numBuckets++
	buflog.BucketSplit(newDepth)
}

// GlobalDepth returns the number of low-order hash bits the directory
// currently uses to route to a bucket.
func (d *Directory[K, V]) GlobalDepth() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.globalDepth
}

// LocalDepth returns the local depth of the bucket a key currently routes
// to.
func (d *Directory[K, V]) LocalDepth(key K) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dir[d.indexOf(key)].depth
}

// NumBuckets returns the number of distinct buckets backing the
// directory (always <= the number of directory slots).
func (d *Directory[K, V]) NumBuckets() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.numBuckets
}
