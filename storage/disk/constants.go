package disk

// PAGE_SIZE is the fixed size, in bytes, of every page and frame buffer.
const PAGE_SIZE = 4096

// INVALID_PAGE_ID is the sentinel page id meaning "no page".
const INVALID_PAGE_ID int64 = -1

// DEFAULT_PAGE_CAPACITY is the page capacity a DiskManager starts with.
// The backing file is first resized (to twice this) once more pages than
// this have been allocated; NewDiskManager does not grow the file itself.
const DEFAULT_PAGE_CAPACITY = 16
