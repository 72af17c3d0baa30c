package disk

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// DiskManager is the blocking, page-granular read/write abstraction the
// buffer pool treats as its disk device (spec: "Out of scope... the disk
// device"). It owns a single backing file and an offset table mapping a
// page id to its byte offset within that file.
type DiskManager struct {
	dbFile       *os.File
	pages        map[int64]int
	freeSlots    []int
	pageCapacity int
}

// NewDiskManager wraps an already-open, truncatable file.
func NewDiskManager(file *os.File) *DiskManager {
	return &DiskManager{
		dbFile:       file,
		pageCapacity: DEFAULT_PAGE_CAPACITY,
		freeSlots:    []int{},
		pages:        map[int64]int{},
	}
}

// WritePage persists data (expected to be PAGE_SIZE bytes) at pageId's
// offset, allocating one if this is the page's first write.
func (dm *DiskManager) WritePage(pageId int64, data []byte) error {
	offset, pageFound := dm.pages[pageId]
	if !pageFound {
		var err error
		offset, err = dm.allocatePage()
		if err != nil {
			return err
		}
		dm.pages[pageId] = offset
	}

	if _, err := dm.dbFile.WriteAt(data, int64(offset)); err != nil {
		return fmt.Errorf("error writing at offset %d: %w", offset, err)
	}
	return nil
}

// ReadPage fills and returns a PAGE_SIZE buffer with pageId's bytes. A
// page that has never been written reads back as zeroes.
func (dm *DiskManager) ReadPage(pageId int64) ([]byte, error) {
	offset, pageFound := dm.pages[pageId]
	if !pageFound {
		var err error
		offset, err = dm.allocatePage()
		if err != nil {
			return nil, err
		}
		dm.pages[pageId] = offset
	}

	buf := make([]byte, PAGE_SIZE)
	// a slot past the current end of the file has never been written, so
	// a short read leaves the rest of buf zeroed
	if _, err := dm.dbFile.ReadAt(buf, int64(offset)); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("error reading from offset %d: %w", offset, err)
	}
	return buf, nil
}

// DeletePage releases pageId's on-disk slot for reuse. Deleting an unknown
// page is a no-op.
func (dm *DiskManager) DeletePage(pageId int64) {
	if offset, ok := dm.pages[pageId]; ok {
		dm.freeSlots = append(dm.freeSlots, offset)
		delete(dm.pages, pageId)
	}
}

func (dm *DiskManager) allocatePage() (int, error) {
	if len(dm.freeSlots) > 0 {
		offset := dm.freeSlots[0]
		dm.freeSlots = dm.freeSlots[1:]

		return offset, nil
	}

	if len(dm.pages)+1 > dm.pageCapacity {
		dm.pageCapacity *= 2
		if err := os.Truncate(dm.dbFile.Name(), int64(dm.pageCapacity)*PAGE_SIZE); err != nil {
			return -1, fmt.Errorf("error resizing db file: %w", err)
		}
	}

	return dm.getNextOffset(), nil
}

func (dm *DiskManager) getNextOffset() int {
	return len(dm.pages) * PAGE_SIZE
}
