// Package buflog provides the structured logging used throughout the
// buffer pool core, in place of the teacher's ad hoc fmt.Println traces.
package buflog

import (
	"log/slog"
	"os"
)

var def = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

// SetLevel swaps the default logger's minimum level. Tests that want quiet
// output call SetLevel(slog.LevelError + 1) to suppress everything.
func SetLevel(level slog.Level) {
	def = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// Default returns the package-wide logger.
func Default() *slog.Logger { return def }

// FrameAcquired logs a frame handed to a caller via New or Fetch.
func FrameAcquired(op string, frameID int, pageID int64, hit bool) {
	def.Debug("frame acquired", "op", op, "frame_id", frameID, "page_id", pageID, "hit", hit)
}

// FrameEvicted logs a victim frame chosen by the replacer, before its
// dirty payload (if any) is written back.
func FrameEvicted(frameID int, pageID int64, dirty bool) {
	def.Debug("frame evicted", "frame_id", frameID, "page_id", pageID, "dirty", dirty)
}

// WriteBack logs a synchronous page write-back, whether from eviction or
// an explicit flush.
func WriteBack(pageID int64, frameID int, reason string) {
	def.Debug("page write-back", "page_id", pageID, "frame_id", frameID, "reason", reason)
}

// PoolExhausted logs a failed frame acquisition.
func PoolExhausted(op string) {
	def.Warn("bufferpool exhausted", "op", op)
}

// DirectoryGrowth logs the extendible hash directory doubling its size.
func DirectoryGrowth(oldGlobalDepth, newGlobalDepth int) {
	def.Debug("directory grew", "old_global_depth", oldGlobalDepth, "new_global_depth", newGlobalDepth)
}

// BucketSplit logs a bucket split triggered by overflow.
func BucketSplit(localDepth int) {
	def.Debug("bucket split", "new_local_depth", localDepth)
}
