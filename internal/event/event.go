// Package event defines the event capability the table pipeline consumes,
// with one concrete type for real syscall events and one for the synthetic
// per-flush thread snapshots, plus the in-memory thread registry.
package event

// TypeThreadSnapshot is the reserved event type carried by synthetic thread
// snapshot events. It is outside the range real producers emit, so filters
// matching on evt.type can never pick a snapshot up by accident.
const TypeThreadSnapshot uint16 = 0xffff

// Event is what the filter and the field extractors operate on.
type Event interface {
	// Ts returns the event timestamp in nanoseconds since the epoch.
	Ts() uint64
	// Tid returns the id of the thread that generated the event.
	Tid() int64
	// Type returns the raw event type.
	Type() uint16
	// Thread returns the thread info bound to the event, or nil.
	Thread() *ThreadInfo
	// FD returns the file-descriptor info bound to the event, or nil.
	FD() *FDInfo
	// Latency returns the syscall latency in nanoseconds (0 if unknown).
	Latency() uint64
	// Res returns the syscall return value and whether one is present.
	Res() (int64, bool)
	// BufLen returns the I/O buffer length and whether one is present.
	BufLen() (uint32, bool)
	// Arg returns a named event argument as its string rendering.
	Arg(name string) (string, bool)
}

// ThreadInfo is one entry of the thread registry.
type ThreadInfo struct {
	Tid      int64
	Pid      int64
	Comm     string
	Exe      string
	UID      uint32
	GID      uint32
	VMSizeKB uint32
}

// FDInfo describes the file descriptor an event operated on.
type FDInfo struct {
	Num        int64
	Name       string
	Proto      uint8 // l4 protocol
	ClientIP   [4]byte
	ServerIP   [4]byte
	ClientPort uint16
	ServerPort uint16
}

// Syscall is a fully materialized event from the capture stream.
type Syscall struct {
	Timestamp uint64
	ThreadID  int64
	EvtType   uint16
	Lat       uint64
	Ret       int64
	HasRet    bool
	Buf       uint32
	HasBuf    bool
	Args      map[string]string
	TInfo     *ThreadInfo
	FDInfo    *FDInfo
}

func (e *Syscall) Ts() uint64            { return e.Timestamp }
func (e *Syscall) Tid() int64            { return e.ThreadID }
func (e *Syscall) Type() uint16          { return e.EvtType }
func (e *Syscall) Thread() *ThreadInfo   { return e.TInfo }
func (e *Syscall) FD() *FDInfo           { return e.FDInfo }
func (e *Syscall) Latency() uint64       { return e.Lat }
func (e *Syscall) Res() (int64, bool)    { return e.Ret, e.HasRet }
func (e *Syscall) BufLen() (uint32, bool) { return e.Buf, e.HasBuf }

func (e *Syscall) Arg(name string) (string, bool) {
	v, ok := e.Args[name]
	return v, ok
}

// Snapshot is the synthetic event used to feed the thread table through the
// regular filter + extraction pipeline at every flush boundary.
type Snapshot struct {
	Timestamp uint64
	TInfo     *ThreadInfo
}

func (e *Snapshot) Ts() uint64             { return e.Timestamp }
func (e *Snapshot) Tid() int64             { return e.TInfo.Tid }
func (e *Snapshot) Type() uint16           { return TypeThreadSnapshot }
func (e *Snapshot) Thread() *ThreadInfo    { return e.TInfo }
func (e *Snapshot) FD() *FDInfo            { return nil }
func (e *Snapshot) Latency() uint64        { return 0 }
func (e *Snapshot) Res() (int64, bool)     { return 0, false }
func (e *Snapshot) BufLen() (uint32, bool) { return 0, false }
func (e *Snapshot) Arg(string) (string, bool) {
	return "", false
}
