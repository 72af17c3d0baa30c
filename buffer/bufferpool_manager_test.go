package buffer

import (
	"bytes"
	"fmt"
	"os"
	"path"
	"testing"

	"github.com/jobala/petro/storage/disk"
	"github.com/jobala/petro/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	pool   *BufferPoolManager
	sched  *disk.DiskScheduler
	dbFile *os.File
}

func newFixture(t *testing.T, poolSize, k, bucketSize int) *fixture {
	t.Helper()
	file := createDbFile(t)
	t.Cleanup(func() { _ = os.Remove(file.Name()) })

	diskMgr := disk.NewDiskManager(file)
	sched := disk.NewScheduler(diskMgr)
	pool := NewBufferPoolManager(poolSize, k, bucketSize, sched)

	return &fixture{pool: pool, sched: sched, dbFile: file}
}

func createDbFile(t *testing.T) *os.File {
	t.Helper()
	dbFile := path.Join(t.TempDir(), "test.db")

	file, err := os.OpenFile(dbFile, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		panic(fmt.Sprintf("failed creating db file\n%v", err))
	}

	_ = os.Truncate(file.Name(), disk.PAGE_SIZE)
	fileInfo, err := os.Stat(file.Name())
	require.NoError(t, err)
	require.Equal(t, int64(disk.PAGE_SIZE), fileInfo.Size())
	return file
}

func withContent(s string) []byte {
	data := make([]byte, disk.PAGE_SIZE)
	copy(data, []byte(s))
	return data
}

func trimmed(data []byte) string {
	return string(bytes.Trim(data, "\x00"))
}

func TestBufferPoolManagerBasicLifecycle(t *testing.T) {
	t.Run("scenario: basic new -- pool exhausts after N pages", func(t *testing.T) {
		f := newFixture(t, 3, 2, 2)

		for i := int64(0); i < 3; i++ {
			id, frame, err := f.pool.NewPage()
			assert.NoError(t, err)
			assert.Equal(t, i, id)
			assert.NotNil(t, frame)
		}

		_, _, err := f.pool.NewPage()
		assert.Error(t, err)
	})

	t.Run("scenario: unpin then new reuses the freed frame", func(t *testing.T) {
		f := newFixture(t, 3, 2, 2)

		ids := make([]int64, 3)
		for i := range ids {
			id, _, err := f.pool.NewPage()
			require.NoError(t, err)
			ids[i] = id
		}

		assert.True(t, f.pool.UnpinPage(ids[1], false))

		id, frame, err := f.pool.NewPage()
		assert.NoError(t, err)
		assert.Equal(t, int64(3), id)
		assert.NotNil(t, frame)

		// the frame that held ids[1] was reused for the new page
		_, ok := f.pool.pageTable.Find(ids[1])
		assert.False(t, ok)
	})

	t.Run("scenario: dirty write-back survives forced eviction", func(t *testing.T) {
		f := newFixture(t, 3, 2, 2)

		pageID, frame, err := f.pool.NewPage()
		require.NoError(t, err)
		copy(frame.Data(), withContent("hello, world!"))
		require.True(t, f.pool.UnpinPage(pageID, true))

		// force eviction of pageID by allocating new pages until the pool
		// cycles through its whole capacity
		for i := 0; i < 3; i++ {
			id, _, err := f.pool.NewPage()
			require.NoError(t, err)
			require.True(t, f.pool.UnpinPage(id, false))
		}

		refetched, err := f.pool.FetchPage(pageID)
		assert.NoError(t, err)
		assert.Equal(t, "hello, world!", trimmed(refetched.Data()))
	})

	t.Run("scenario: delete pinned page fails, then succeeds once unpinned", func(t *testing.T) {
		f := newFixture(t, 3, 2, 2)

		pageID, _, err := f.pool.NewPage()
		require.NoError(t, err)

		assert.False(t, f.pool.DeletePage(pageID))

		assert.True(t, f.pool.UnpinPage(pageID, false))
		assert.True(t, f.pool.DeletePage(pageID))

		_, ok := f.pool.pageTable.Find(pageID)
		assert.False(t, ok)
	})

	t.Run("delete of a non-resident page succeeds trivially", func(t *testing.T) {
		f := newFixture(t, 3, 2, 2)
		assert.True(t, f.pool.DeletePage(999))
	})

	t.Run("unpin of a non-resident page fails", func(t *testing.T) {
		f := newFixture(t, 3, 2, 2)
		assert.False(t, f.pool.UnpinPage(42, false))
	})

	t.Run("unpin past zero fails", func(t *testing.T) {
		f := newFixture(t, 3, 2, 2)
		pageID, _, err := f.pool.NewPage()
		require.NoError(t, err)

		assert.True(t, f.pool.UnpinPage(pageID, false))
		assert.False(t, f.pool.UnpinPage(pageID, false))
	})
}

func TestBufferPoolManagerFetch(t *testing.T) {
	t.Run("fetch of a resident page is a hit and re-pins it", func(t *testing.T) {
		f := newFixture(t, 3, 2, 2)

		pageID, frame, err := f.pool.NewPage()
		require.NoError(t, err)
		copy(frame.Data(), withContent("in memory"))

		refetched, err := f.pool.FetchPage(pageID)
		assert.NoError(t, err)
		assert.Same(t, frame, refetched)
		assert.Equal(t, 2, refetched.PinCount())
	})

	t.Run("a page re-fetched on a hit is not left evictable", func(t *testing.T) {
		f := newFixture(t, 3, 2, 2)

		pageID, _, err := f.pool.NewPage()
		require.NoError(t, err)
		require.True(t, f.pool.UnpinPage(pageID, false))

		// re-fetching while it sits evictable must re-pin it and mark it
		// non-evictable again -- a hit that skipped this would leave a
		// pinned frame selectable for eviction.
		frame, err := f.pool.FetchPage(pageID)
		require.NoError(t, err)
		assert.Equal(t, 1, frame.PinCount())
		assert.Equal(t, 0, f.pool.replacer.size())
	})

	t.Run("fetch miss with an exhausted pool fails", func(t *testing.T) {
		f := newFixture(t, 2, 2, 2)

		_, _, err := f.pool.NewPage()
		require.NoError(t, err)
		_, _, err = f.pool.NewPage()
		require.NoError(t, err)

		_, err = f.pool.FetchPage(999)
		assert.Error(t, err)
	})
}

func TestBufferPoolManagerFlush(t *testing.T) {
	t.Run("flush writes unconditionally and clears dirty", func(t *testing.T) {
		f := newFixture(t, 3, 2, 2)

		pageID, frame, err := f.pool.NewPage()
		require.NoError(t, err)
		copy(frame.Data(), withContent("flushed"))
		frame.dirty = true

		assert.True(t, f.pool.FlushPage(pageID))
		assert.False(t, frame.Dirty())

		req := disk.NewRequest(pageID, nil, false)
		resp := <-f.sched.Schedule(req)
		assert.Equal(t, "flushed", trimmed(resp.Data))
	})

	t.Run("flush of an unknown page fails", func(t *testing.T) {
		f := newFixture(t, 3, 2, 2)
		assert.False(t, f.pool.FlushPage(123))
	})

	t.Run("flush is idempotent", func(t *testing.T) {
		f := newFixture(t, 3, 2, 2)

		pageID, frame, err := f.pool.NewPage()
		require.NoError(t, err)
		copy(frame.Data(), withContent("stable"))
		frame.dirty = true

		assert.True(t, f.pool.FlushPage(pageID))
		assert.True(t, f.pool.FlushPage(pageID))
		assert.False(t, frame.Dirty())
	})

	t.Run("flush all writes every dirty resident page and skips clean ones", func(t *testing.T) {
		f := newFixture(t, 3, 2, 2)

		var ids []int64
		for i := 0; i < 3; i++ {
			id, frame, err := f.pool.NewPage()
			require.NoError(t, err)
			copy(frame.Data(), withContent(fmt.Sprintf("page-%d", i)))
			ids = append(ids, id)
		}

		// only dirty the first two
		f.pool.frames[0].dirty = true
		f.pool.frames[1].dirty = true

		f.pool.FlushAllPages()

		for i := 0; i < 2; i++ {
			req := disk.NewRequest(ids[i], nil, false)
			resp := <-f.sched.Schedule(req)
			assert.Equal(t, fmt.Sprintf("page-%d", i), trimmed(resp.Data))
		}
		assert.False(t, f.pool.frames[0].Dirty())
		assert.False(t, f.pool.frames[1].Dirty())
	})
}

func TestBufferPoolManagerPayloadRoundTrip(t *testing.T) {
	type record struct {
		Name  string
		Count int
	}

	t.Run("law: round trip survives a forced eviction", func(t *testing.T) {
		f := newFixture(t, 2, 2, 2)

		pageID, frame, err := f.pool.NewPage()
		require.NoError(t, err)

		want := record{Name: "widgets", Count: 7}
		require.NoError(t, util.EncodePayload(frame.Data(), want))
		require.True(t, f.pool.UnpinPage(pageID, true))
		require.True(t, f.pool.FlushPage(pageID))

		// force eviction of pageID's frame
		for i := 0; i < 2; i++ {
			id, _, err := f.pool.NewPage()
			require.NoError(t, err)
			require.True(t, f.pool.UnpinPage(id, false))
		}

		refetched, err := f.pool.FetchPage(pageID)
		require.NoError(t, err)

		got, err := util.DecodePayload[record](refetched.Data())
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})
}

func TestBufferPoolManagerNoLeak(t *testing.T) {
	t.Run("law: balanced new/delete returns the free list to N", func(t *testing.T) {
		f := newFixture(t, 3, 2, 2)

		var ids []int64
		for i := 0; i < 3; i++ {
			id, _, err := f.pool.NewPage()
			require.NoError(t, err)
			ids = append(ids, id)
		}

		for _, id := range ids {
			require.True(t, f.pool.UnpinPage(id, false))
			require.True(t, f.pool.DeletePage(id))
		}

		assert.Len(t, f.pool.freeList, 3)
	})
}
