package disk

import "sync"

// LogManager is the optional write-ahead-log collaborator named in the
// spec ("a log manager hook (invoked before any page write if a log is
// configured)"). The core never constructs one; callers wire it in with
// SetLogManager when they need write-ahead durability ordering.
type LogManager interface {
	// Flush is invoked synchronously before a page write reaches disk,
	// giving the log a chance to force its own durable prefix first.
	Flush()
}

// DiskScheduler serializes reads and writes per page id onto a dedicated
// worker goroutine, so that two requests for the same page never race,
// while requests for different pages proceed independently. Schedule is
// non-blocking; callers receive on the returned channel to wait for the
// result, giving the buffer pool manager a synchronous-looking call it can
// make while holding its latch.
type DiskScheduler struct {
	reqCh       chan DiskReq
	diskManager *DiskManager
	logManager  LogManager

	pageQueue   map[int64]chan DiskReq
	pageQueueMu sync.Mutex
}

// DiskReq is a single scheduled read or write.
type DiskReq struct {
	PageId int64
	Data   []byte
	Write  bool
	RespCh chan DiskResp
}

// DiskResp is the result of a DiskReq.
type DiskResp struct {
	Success bool
	Data    []byte
}

// NewScheduler starts the scheduler's dispatch goroutine.
func NewScheduler(diskManager *DiskManager) *DiskScheduler {
	ds := &DiskScheduler{
		reqCh:       make(chan DiskReq, 100),
		pageQueue:   make(map[int64]chan DiskReq),
		diskManager: diskManager,
	}

	go ds.handleDiskReq()
	return ds
}

// SetLogManager attaches the optional pre-write-flush hook.
func (ds *DiskScheduler) SetLogManager(lm LogManager) {
	ds.logManager = lm
}

// NewRequest builds a DiskReq with a fresh response channel. Pass data and
// isWrite=true for a write; pass nil data and isWrite=false for a read.
func NewRequest(pageId int64, data []byte, isWrite bool) DiskReq {
	return DiskReq{
		PageId: pageId,
		Data:   data,
		Write:  isWrite,
		RespCh: make(chan DiskResp),
	}
}

// Schedule enqueues req and returns the channel its response will arrive
// on. It does not block on the request being serviced.
func (ds *DiskScheduler) Schedule(req DiskReq) <-chan DiskResp {
	ds.reqCh <- req
	return req.RespCh
}

func (ds *DiskScheduler) handleDiskReq() {
	for req := range ds.reqCh {
		ds.pageQueueMu.Lock()
		queue, ok := ds.pageQueue[req.PageId]
		if !ok {
			queue = make(chan DiskReq, 10)
			ds.pageQueue[req.PageId] = queue
		}
		ds.pageQueueMu.Unlock()

		queue <- req

		// !ok means we just created this page's queue, so nothing is
		// draining it yet — start its worker.
		if !ok {
			go ds.pageWorker(req.PageId, queue)
		}
	}
}

func (ds *DiskScheduler) pageWorker(pageId int64, reqQueue chan DiskReq) {
	for {
		select {
		case req := <-reqQueue:
			if req.Write {
				if ds.logManager != nil {
					ds.logManager.Flush()
				}
				if err := ds.diskManager.WritePage(req.PageId, req.Data); err != nil {
					req.RespCh <- DiskResp{Success: false}
				} else {
					req.RespCh <- DiskResp{Success: true}
				}
			} else {
				if data, err := ds.diskManager.ReadPage(req.PageId); err != nil {
					req.RespCh <- DiskResp{Success: false}
				} else {
					req.RespCh <- DiskResp{Success: true, Data: data}
				}
			}

		default:
			// nothing left queued for this page, retire the worker
			ds.pageQueueMu.Lock()
			delete(ds.pageQueue, pageId)
			ds.pageQueueMu.Unlock()
			return
		}
	}
}
