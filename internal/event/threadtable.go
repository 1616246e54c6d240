package event

// ThreadTable is the in-memory thread registry. It is fed by the event
// stream and walked once per flush to snapshot durable per-thread state.
// Like the rest of the pipeline it is owned and serialized by the caller.
type ThreadTable struct {
	threads map[int64]*ThreadInfo
}

func NewThreadTable() *ThreadTable {
	return &ThreadTable{threads: make(map[int64]*ThreadInfo)}
}

// Observe upserts the thread info bound to an event. Events without thread
// info leave the registry untouched.
func (t *ThreadTable) Observe(evt Event) {
	tinfo := evt.Thread()
	if tinfo == nil {
		return
	}
	t.threads[tinfo.Tid] = tinfo
}

// Remove drops a thread, e.g. on process exit.
func (t *ThreadTable) Remove(tid int64) {
	delete(t.threads, tid)
}

// Loop visits every registered thread until the visitor returns false.
func (t *ThreadTable) Loop(visitor func(*ThreadInfo) bool) {
	for _, tinfo := range t.threads {
		if !visitor(tinfo) {
			return
		}
	}
}

// Len returns the number of registered threads.
func (t *ThreadTable) Len() int {
	return len(t.threads)
}
