// Package fieldtype defines the closed set of primitive kinds a table
// column can carry, together with their wire widths and comparison rules.
package fieldtype

import "bytes"

// Kind identifies the primitive type of an extracted field value.
type Kind uint8

const (
	KindNone Kind = iota
	KindInt8
	KindInt16
	KindInt32
	KindInt64
	KindUint8
	KindUint16
	KindUint32
	KindUint64
	KindBool
	KindDouble
	KindRelTime
	KindAbsTime
	KindCharBuf
	KindByteBuf
	KindPort
	KindIPv4
	KindIPv6
	KindIPAddr
	KindIPNet
	KindSyscallID
	KindUID
	KindGID
	KindL4Proto
	KindSockFamily
	KindFlags8
	KindFlags16
	KindFlags32
	KindEnumFlags8
	KindEnumFlags16
	KindEnumFlags32
	KindFD
	KindPid
	KindErrno
	KindMode
	KindSigSet
	KindSigType

	// Kinds that exist in the event model but cannot be used as table
	// columns. Configuration rejects them.
	KindSockAddr
	KindSockTuple
	KindFDList
	KindFSPath
	KindFSRelPath
)

func (k Kind) String() string {
	switch k {
	case KindInt8:
		return "int8"
	case KindInt16:
		return "int16"
	case KindInt32:
		return "int32"
	case KindInt64:
		return "int64"
	case KindUint8:
		return "uint8"
	case KindUint16:
		return "uint16"
	case KindUint32:
		return "uint32"
	case KindUint64:
		return "uint64"
	case KindBool:
		return "bool"
	case KindDouble:
		return "double"
	case KindRelTime:
		return "reltime"
	case KindAbsTime:
		return "abstime"
	case KindCharBuf:
		return "charbuf"
	case KindByteBuf:
		return "bytebuf"
	case KindPort:
		return "port"
	case KindIPv4:
		return "ipv4"
	case KindIPv6:
		return "ipv6"
	case KindIPAddr:
		return "ipaddr"
	case KindIPNet:
		return "ipnet"
	case KindSyscallID:
		return "syscallid"
	case KindUID:
		return "uid"
	case KindGID:
		return "gid"
	case KindL4Proto:
		return "l4proto"
	case KindSockFamily:
		return "sockfamily"
	case KindFlags8:
		return "flags8"
	case KindFlags16:
		return "flags16"
	case KindFlags32:
		return "flags32"
	case KindEnumFlags8:
		return "enumflags8"
	case KindEnumFlags16:
		return "enumflags16"
	case KindEnumFlags32:
		return "enumflags32"
	case KindFD:
		return "fd"
	case KindPid:
		return "pid"
	case KindErrno:
		return "errno"
	case KindMode:
		return "mode"
	case KindSigSet:
		return "sigset"
	case KindSigType:
		return "sigtype"
	default:
		return "unknown"
	}
}

// PrintFormat is the rendering hint attached to a field definition.
type PrintFormat uint8

const (
	FormatNA PrintFormat = iota
	FormatDec
	FormatHex
	FormatOct
	FormatID
)

// Width returns the fixed byte width of a kind, or 0 for variable-width
// kinds (charbuf, bytebuf, ipaddr, ipnet) and for kinds that cannot back a
// column at all.
func Width(k Kind) uint32 {
	switch k {
	case KindInt8, KindUint8, KindFlags8, KindEnumFlags8, KindSigType, KindL4Proto, KindSockFamily:
		return 1
	case KindInt16, KindUint16, KindFlags16, KindEnumFlags16, KindPort, KindSyscallID:
		return 2
	case KindInt32, KindUint32, KindFlags32, KindEnumFlags32, KindMode, KindBool, KindIPv4, KindSigSet, KindUID, KindGID:
		return 4
	case KindInt64, KindUint64, KindRelTime, KindAbsTime, KindFD, KindPid, KindErrno, KindDouble:
		return 8
	case KindIPv6:
		return 16
	default:
		return 0
	}
}

// Supported reports whether the kind may back a table column.
func Supported(k Kind) bool {
	switch k {
	case KindNone, KindSockAddr, KindSockTuple, KindFDList, KindFSPath, KindFSRelPath:
		return false
	default:
		return true
	}
}

// Numeric reports whether the aggregation kernels operate on the kind.
// Everything else is left untouched by SUM/AVG/MIN/MAX (except the
// charbuf/bytebuf special cases handled by the kernels themselves).
func Numeric(k Kind) bool {
	switch k {
	case KindInt8, KindInt16, KindInt32, KindInt64,
		KindUint8, KindUint16, KindUint32, KindUint64,
		KindBool, KindRelTime, KindAbsTime, KindDouble:
		return true
	default:
		return false
	}
}

// Stringable reports whether the kind participates in free-text filtering
// and sample search, i.e. it has a meaningful printable rendering.
func Stringable(k Kind) bool {
	switch k {
	case KindCharBuf, KindByteBuf, KindSyscallID, KindPort, KindL4Proto,
		KindSockFamily, KindIPv4, KindIPv6, KindUID, KindGID:
		return true
	default:
		return false
	}
}

// SortsDescending reports whether a freshly selected sorting column of this
// kind defaults to descending order.
func SortsDescending(k Kind) bool {
	switch k {
	case KindInt8, KindInt16, KindInt32, KindInt64,
		KindUint8, KindUint16, KindUint32, KindUint64,
		KindRelTime, KindAbsTime, KindDouble, KindBool:
		return true
	default:
		return false
	}
}

// signed reports whether the kind compares as a signed integer.
func signed(k Kind) bool {
	switch k {
	case KindInt8, KindInt16, KindInt32, KindInt64, KindFD, KindPid, KindErrno:
		return true
	default:
		return false
	}
}

// Compare orders two raw values of the same kind. Integers compare by their
// declared signedness, doubles numerically, everything variable-width
// lexicographically.
func Compare(k Kind, a, b []byte) int {
	switch {
	case k == KindDouble:
		fa, fb := Float64(a), Float64(b)
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		default:
			return 0
		}
	case signed(k):
		ia, ib := Int64(k, a), Int64(k, b)
		switch {
		case ia < ib:
			return -1
		case ia > ib:
			return 1
		default:
			return 0
		}
	case Width(k) != 0 && Width(k) <= 8:
		ua, ub := Uint64(k, a), Uint64(k, b)
		switch {
		case ua < ub:
			return -1
		case ua > ub:
			return 1
		default:
			return 0
		}
	default:
		return bytes.Compare(a, b)
	}
}
