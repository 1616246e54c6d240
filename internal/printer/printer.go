// Package printer renders raw field values for the presenters, the
// free-text filter and the sample search. One Printer instance is reused
// across calls: SetVal stages a value, the tostring/tojson family renders
// it.
//
// Rendering semantics: a value with cnt > 1 is an accumulated average and
// is divided by cnt first. A non-zero time delta turns the value into a
// per-interval figure: relative times render as a percentage of the
// interval (time-average), every other numeric kind as a per-second rate;
// absolute times and bools are never scaled.
package printer

import (
	"encoding/hex"
	"net"
	"strconv"
	"time"

	"github.com/evtop/evtop/internal/fieldtype"
)

const oneSecondNS = uint64(time.Second)

// Printer formats one staged value at a time.
type Printer struct {
	kind   fieldtype.Kind
	format fieldtype.PrintFormat
	data   []byte
	length uint32
	cnt    uint32
}

func New() *Printer {
	return &Printer{}
}

// SetVal stages a raw value for rendering.
func (p *Printer) SetVal(kind fieldtype.Kind, data []byte, length, cnt uint32, format fieldtype.PrintFormat) {
	p.kind = kind
	p.format = format
	p.data = data
	p.length = length
	p.cnt = cnt
}

// ToString renders the staged value without unit prettying.
func (p *Printer) ToString(timeDelta uint64) string {
	return p.render(timeDelta, false)
}

// ToStringNice renders the staged value with human-readable time units.
func (p *Printer) ToStringNice(timeDelta uint64) string {
	return p.render(timeDelta, true)
}

// ToJSON renders the staged value as a JSON-encodable Go value.
func (p *Printer) ToJSON(timeDelta uint64) any {
	if p.data == nil {
		return nil
	}

	switch p.kind {
	case fieldtype.KindCharBuf:
		return p.charbufString()
	case fieldtype.KindByteBuf:
		return string(p.data[:p.length])
	case fieldtype.KindIPv4, fieldtype.KindIPv6, fieldtype.KindIPAddr, fieldtype.KindIPNet,
		fieldtype.KindL4Proto, fieldtype.KindSockFamily:
		return p.render(timeDelta, false)
	case fieldtype.KindBool:
		return fieldtype.Uint64(p.kind, p.data) != 0
	case fieldtype.KindDouble:
		return p.scaledDouble(timeDelta)
	case fieldtype.KindRelTime, fieldtype.KindAbsTime:
		return p.scaledUint(timeDelta)
	default:
		if fieldtype.Width(p.kind) == 0 {
			return p.render(timeDelta, false)
		}
		if p.signed() {
			return p.scaledInt(timeDelta)
		}
		return p.scaledUint(timeDelta)
	}
}

func (p *Printer) signed() bool {
	switch p.kind {
	case fieldtype.KindInt8, fieldtype.KindInt16, fieldtype.KindInt32, fieldtype.KindInt64,
		fieldtype.KindFD, fieldtype.KindPid, fieldtype.KindErrno:
		return true
	default:
		return false
	}
}

func (p *Printer) scaledUint(timeDelta uint64) uint64 {
	v := fieldtype.Uint64(p.kind, p.data)
	if p.cnt > 1 {
		v /= uint64(p.cnt)
	}
	if timeDelta != 0 && p.kind != fieldtype.KindAbsTime {
		v = v * oneSecondNS / timeDelta
	}
	return v
}

func (p *Printer) scaledInt(timeDelta uint64) int64 {
	v := fieldtype.Int64(p.kind, p.data)
	if p.cnt > 1 {
		v /= int64(p.cnt)
	}
	if timeDelta != 0 {
		v = v * int64(oneSecondNS) / int64(timeDelta)
	}
	return v
}

func (p *Printer) scaledDouble(timeDelta uint64) float64 {
	v := fieldtype.Float64(p.data)
	if p.cnt > 1 {
		v /= float64(p.cnt)
	}
	if timeDelta != 0 {
		v = v * float64(oneSecondNS) / float64(timeDelta)
	}
	return v
}

func (p *Printer) charbufString() string {
	b := p.data[:p.length]
	if len(b) > 0 && b[len(b)-1] == 0 {
		b = b[:len(b)-1]
	}
	return string(b)
}

func (p *Printer) render(timeDelta uint64, nice bool) string {
	if p.data == nil {
		return ""
	}

	switch p.kind {
	case fieldtype.KindCharBuf:
		return p.charbufString()
	case fieldtype.KindByteBuf:
		return string(p.data[:p.length])
	case fieldtype.KindBool:
		if fieldtype.Uint64(p.kind, p.data) != 0 {
			return "true"
		}
		return "false"
	case fieldtype.KindDouble:
		return strconv.FormatFloat(p.scaledDouble(timeDelta), 'f', 2, 64)
	case fieldtype.KindRelTime:
		v := fieldtype.Uint64(p.kind, p.data)
		if p.cnt > 1 {
			v /= uint64(p.cnt)
		}
		if timeDelta != 0 {
			// Time average over the sample interval, as a percentage.
			return strconv.FormatFloat(float64(v)*100/float64(timeDelta), 'f', 2, 64) + "%"
		}
		if nice {
			return time.Duration(v).String()
		}
		return strconv.FormatUint(v, 10)
	case fieldtype.KindAbsTime:
		v := fieldtype.Uint64(p.kind, p.data)
		if nice {
			return time.Unix(0, int64(v)).UTC().Format(time.RFC3339Nano)
		}
		return strconv.FormatUint(v, 10)
	case fieldtype.KindIPv4:
		return net.IP(p.data[:4]).String()
	case fieldtype.KindIPv6:
		return net.IP(p.data[:16]).String()
	case fieldtype.KindIPAddr, fieldtype.KindIPNet:
		if p.length == 4 {
			return net.IP(p.data[:4]).String()
		}
		return net.IP(p.data[:16]).String()
	case fieldtype.KindL4Proto:
		return l4ProtoName(p.data[0])
	case fieldtype.KindSockFamily:
		return sockFamilyName(p.data[0])
	default:
		if fieldtype.Width(p.kind) == 0 {
			return hex.EncodeToString(p.data[:p.length])
		}
		if p.signed() {
			return strconv.FormatInt(p.scaledInt(timeDelta), 10)
		}
		v := p.scaledUint(timeDelta)
		switch p.format {
		case fieldtype.FormatHex:
			return "0x" + strconv.FormatUint(v, 16)
		case fieldtype.FormatOct:
			return "0" + strconv.FormatUint(v, 8)
		default:
			return strconv.FormatUint(v, 10)
		}
	}
}

func l4ProtoName(proto uint8) string {
	switch proto {
	case 1:
		return "icmp"
	case 6:
		return "tcp"
	case 17:
		return "udp"
	case 132:
		return "sctp"
	default:
		return strconv.FormatUint(uint64(proto), 10)
	}
}

func sockFamilyName(family uint8) string {
	switch family {
	case 1:
		return "unix"
	case 2:
		return "ipv4"
	case 10:
		return "ipv6"
	default:
		return strconv.FormatUint(uint64(family), 10)
	}
}
