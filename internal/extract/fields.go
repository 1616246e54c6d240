package extract

import (
	"github.com/evtop/evtop/internal/event"
	"github.com/evtop/evtop/internal/fieldtype"
)

func charbuf(dst []byte, s string) []byte {
	dst = append(dst, s...)
	return append(dst, 0)
}

// registerAll installs the well-known field set views are built from.
func (f *Factory) registerAll() {
	f.register(FieldInfo{
		Name: "util.cnt", Kind: fieldtype.KindUint32, Format: fieldtype.FormatDec,
		Description: "counter field, 1 for every event",
	}, false, func(evt event.Event, _ string, scratch []byte) ([]byte, bool) {
		return fieldtype.AppendUint(fieldtype.KindUint32, scratch, 1), true
	})

	f.register(FieldInfo{
		Name: "evt.count", Kind: fieldtype.KindUint64, Format: fieldtype.FormatDec,
		Description: "1 for every event, made to be aggregated with SUM",
	}, false, func(evt event.Event, _ string, scratch []byte) ([]byte, bool) {
		return fieldtype.AppendUint(fieldtype.KindUint64, scratch, 1), true
	})

	f.register(FieldInfo{
		Name: "evt.type", Kind: fieldtype.KindUint16, Format: fieldtype.FormatDec,
		Description: "raw event type number",
	}, false, func(evt event.Event, _ string, scratch []byte) ([]byte, bool) {
		if evt.Type() == event.TypeThreadSnapshot {
			return nil, false
		}
		return fieldtype.AppendUint(fieldtype.KindUint16, scratch, uint64(evt.Type())), true
	})

	f.register(FieldInfo{
		Name: "evt.latency", Kind: fieldtype.KindRelTime, Format: fieldtype.FormatDec,
		Description: "delta between the enter and exit event of the syscall",
	}, false, func(evt event.Event, _ string, scratch []byte) ([]byte, bool) {
		if evt.Type() == event.TypeThreadSnapshot {
			return nil, false
		}
		return fieldtype.AppendUint(fieldtype.KindRelTime, scratch, evt.Latency()), true
	})

	f.register(FieldInfo{
		Name: "evt.buflen", Kind: fieldtype.KindUint32, Format: fieldtype.FormatDec,
		Description: "length of the I/O buffer moved by the event",
	}, false, func(evt event.Event, _ string, scratch []byte) ([]byte, bool) {
		n, ok := evt.BufLen()
		if !ok {
			return nil, false
		}
		return fieldtype.AppendUint(fieldtype.KindUint32, scratch, uint64(n)), true
	})

	f.register(FieldInfo{
		Name: "evt.res", Kind: fieldtype.KindErrno, Format: fieldtype.FormatDec,
		Description: "syscall return value",
	}, false, func(evt event.Event, _ string, scratch []byte) ([]byte, bool) {
		res, ok := evt.Res()
		if !ok {
			return nil, false
		}
		return fieldtype.AppendUint(fieldtype.KindErrno, scratch, uint64(res)), true
	})

	f.register(FieldInfo{
		Name: "evt.arg", Kind: fieldtype.KindCharBuf, Format: fieldtype.FormatNA,
		Description: "named event argument, rendered as a string",
	}, true, func(evt event.Event, arg string, scratch []byte) ([]byte, bool) {
		v, ok := evt.Arg(arg)
		if !ok {
			return nil, false
		}
		return charbuf(scratch, v), true
	})

	f.register(FieldInfo{
		Name: "proc.name", Kind: fieldtype.KindCharBuf, Format: fieldtype.FormatNA,
		Description: "name of the process generating the event",
	}, false, func(evt event.Event, _ string, scratch []byte) ([]byte, bool) {
		t := evt.Thread()
		if t == nil {
			return nil, false
		}
		return charbuf(scratch, t.Comm), true
	})

	f.register(FieldInfo{
		Name: "proc.exe", Kind: fieldtype.KindCharBuf, Format: fieldtype.FormatNA,
		Description: "executable path of the process generating the event",
	}, false, func(evt event.Event, _ string, scratch []byte) ([]byte, bool) {
		t := evt.Thread()
		if t == nil {
			return nil, false
		}
		return charbuf(scratch, t.Exe), true
	})

	f.register(FieldInfo{
		Name: "proc.pid", Kind: fieldtype.KindPid, Format: fieldtype.FormatDec,
		Description: "pid of the process generating the event",
	}, false, func(evt event.Event, _ string, scratch []byte) ([]byte, bool) {
		t := evt.Thread()
		if t == nil {
			return nil, false
		}
		return fieldtype.AppendUint(fieldtype.KindPid, scratch, uint64(t.Pid)), true
	})

	f.register(FieldInfo{
		Name: "thread.tid", Kind: fieldtype.KindInt64, Format: fieldtype.FormatDec,
		Description: "id of the thread generating the event",
	}, false, func(evt event.Event, _ string, scratch []byte) ([]byte, bool) {
		return fieldtype.AppendUint(fieldtype.KindInt64, scratch, uint64(evt.Tid())), true
	})

	f.register(FieldInfo{
		Name: "thread.vmsize", Kind: fieldtype.KindUint32, Format: fieldtype.FormatDec,
		Description: "total virtual memory of the process, in KB",
	}, false, func(evt event.Event, _ string, scratch []byte) ([]byte, bool) {
		t := evt.Thread()
		if t == nil {
			return nil, false
		}
		return fieldtype.AppendUint(fieldtype.KindUint32, scratch, uint64(t.VMSizeKB)), true
	})

	f.register(FieldInfo{
		Name: "user.uid", Kind: fieldtype.KindUID, Format: fieldtype.FormatID,
		Description: "user id of the process generating the event",
	}, false, func(evt event.Event, _ string, scratch []byte) ([]byte, bool) {
		t := evt.Thread()
		if t == nil {
			return nil, false
		}
		return fieldtype.AppendUint(fieldtype.KindUID, scratch, uint64(t.UID)), true
	})

	f.register(FieldInfo{
		Name: "group.gid", Kind: fieldtype.KindGID, Format: fieldtype.FormatID,
		Description: "group id of the process generating the event",
	}, false, func(evt event.Event, _ string, scratch []byte) ([]byte, bool) {
		t := evt.Thread()
		if t == nil {
			return nil, false
		}
		return fieldtype.AppendUint(fieldtype.KindGID, scratch, uint64(t.GID)), true
	})

	f.register(FieldInfo{
		Name: "fd.num", Kind: fieldtype.KindFD, Format: fieldtype.FormatDec,
		Description: "number of the file descriptor the event refers to",
	}, false, func(evt event.Event, _ string, scratch []byte) ([]byte, bool) {
		fd := evt.FD()
		if fd == nil {
			return nil, false
		}
		return fieldtype.AppendUint(fieldtype.KindFD, scratch, uint64(fd.Num)), true
	})

	f.register(FieldInfo{
		Name: "fd.name", Kind: fieldtype.KindCharBuf, Format: fieldtype.FormatNA,
		Description: "name of the file descriptor the event refers to",
	}, false, func(evt event.Event, _ string, scratch []byte) ([]byte, bool) {
		fd := evt.FD()
		if fd == nil {
			return nil, false
		}
		return charbuf(scratch, fd.Name), true
	})

	f.register(FieldInfo{
		Name: "fd.cip", Kind: fieldtype.KindIPv4, Format: fieldtype.FormatNA,
		Description: "client IP address of the fd socket",
	}, false, func(evt event.Event, _ string, scratch []byte) ([]byte, bool) {
		fd := evt.FD()
		if fd == nil || fd.Proto == 0 {
			return nil, false
		}
		return append(scratch, fd.ClientIP[:]...), true
	})

	f.register(FieldInfo{
		Name: "fd.sip", Kind: fieldtype.KindIPv4, Format: fieldtype.FormatNA,
		Description: "server IP address of the fd socket",
	}, false, func(evt event.Event, _ string, scratch []byte) ([]byte, bool) {
		fd := evt.FD()
		if fd == nil || fd.Proto == 0 {
			return nil, false
		}
		return append(scratch, fd.ServerIP[:]...), true
	})

	f.register(FieldInfo{
		Name: "fd.cport", Kind: fieldtype.KindPort, Format: fieldtype.FormatDec,
		Description: "client port of the fd socket",
	}, false, func(evt event.Event, _ string, scratch []byte) ([]byte, bool) {
		fd := evt.FD()
		if fd == nil || fd.Proto == 0 {
			return nil, false
		}
		return fieldtype.AppendUint(fieldtype.KindPort, scratch, uint64(fd.ClientPort)), true
	})

	f.register(FieldInfo{
		Name: "fd.sport", Kind: fieldtype.KindPort, Format: fieldtype.FormatDec,
		Description: "server port of the fd socket",
	}, false, func(evt event.Event, _ string, scratch []byte) ([]byte, bool) {
		fd := evt.FD()
		if fd == nil || fd.Proto == 0 {
			return nil, false
		}
		return fieldtype.AppendUint(fieldtype.KindPort, scratch, uint64(fd.ServerPort)), true
	})

	f.register(FieldInfo{
		Name: "fd.l4proto", Kind: fieldtype.KindL4Proto, Format: fieldtype.FormatDec,
		Description: "l4 protocol of the fd socket",
	}, false, func(evt event.Event, _ string, scratch []byte) ([]byte, bool) {
		fd := evt.FD()
		if fd == nil || fd.Proto == 0 {
			return nil, false
		}
		return append(scratch, fd.Proto), true
	})

	// Socket tuple: its kind has no fixed-width encoding, so it is rejected
	// both as a table column and as a filter operand.
	f.register(FieldInfo{
		Name: "fd.tuple", Kind: fieldtype.KindSockTuple, Format: fieldtype.FormatNA,
		Description: "full socket tuple of the fd",
	}, false, func(evt event.Event, _ string, scratch []byte) ([]byte, bool) {
		return nil, false
	})
}
