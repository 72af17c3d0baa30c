package buffer

// invalidFrameID marks "no frame" in contexts where a frame id is
// expected, e.g. evict's return value when nothing is evictable.
const invalidFrameID = -1

// lrukNode tracks one frame's access history and evictability for the
// LRU-K replacer. It is also an intrusive node in the replacer's
// recency-ordered doubly linked list.
type lrukNode struct {
	prev, next  *lrukNode
	frameID     int
	k           int
	history     []int
	isEvictable bool
}

// hasFullHistory reports whether the node has recorded its full k-entry
// window; until it does, its backward k-distance is +infinity.
func (n *lrukNode) hasFullHistory() bool {
	return len(n.history) == n.k
}

// oldestKnown returns the oldest timestamp still retained in history. It
// doubles as the k-th-most-recent access once the window is full (used
// for the k-distance formula) and as the tie-break key among nodes whose
// k-distance is +infinity (classical LRU: earliest first access wins).
func (n *lrukNode) oldestKnown() int {
	return n.history[0]
}

// addTimestamp records a new access, keeping at most the k most recent.
func (n *lrukNode) addTimestamp(timestamp int) {
	if len(n.history) < n.k {
		n.history = append(n.history, timestamp)
		return
	}
	n.history = append(n.history[1:], timestamp)
}
