// Package mqtt ingests syscall event batches (MessagePack, or JSON as a
// fallback, optionally gzip-compressed) from an MQTT broker and feeds them
// into the engine.
package mqtt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/klauspost/compress/gzip"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/evtop/evtop/internal/event"
)

// wireBatch is the payload shape producers publish, as MessagePack or
// JSON.
type wireBatch struct {
	Events []wireEvent `json:"events" msgpack:"events"`
}

type wireEvent struct {
	TS      uint64            `json:"ts" msgpack:"ts"`
	Tid     int64             `json:"tid" msgpack:"tid"`
	Type    uint16            `json:"type" msgpack:"type"`
	Latency uint64            `json:"latency,omitempty" msgpack:"latency,omitempty"`
	Res     *int64            `json:"res,omitempty" msgpack:"res,omitempty"`
	BufLen  *uint32           `json:"buflen,omitempty" msgpack:"buflen,omitempty"`
	Args    map[string]string `json:"args,omitempty" msgpack:"args,omitempty"`
	Proc    *wireProc         `json:"proc,omitempty" msgpack:"proc,omitempty"`
	FD      *wireFD           `json:"fd,omitempty" msgpack:"fd,omitempty"`
}

type wireProc struct {
	Name     string `json:"name" msgpack:"name"`
	Exe      string `json:"exe,omitempty" msgpack:"exe,omitempty"`
	Pid      int64  `json:"pid" msgpack:"pid"`
	UID      uint32 `json:"uid" msgpack:"uid"`
	GID      uint32 `json:"gid" msgpack:"gid"`
	VMSizeKB uint32 `json:"vmsize_kb,omitempty" msgpack:"vmsize_kb,omitempty"`
}

type wireFD struct {
	Num   int64  `json:"num" msgpack:"num"`
	Name  string `json:"name,omitempty" msgpack:"name,omitempty"`
	Proto uint8  `json:"proto,omitempty" msgpack:"proto,omitempty"`
	CIP   string `json:"cip,omitempty" msgpack:"cip,omitempty"`
	SIP   string `json:"sip,omitempty" msgpack:"sip,omitempty"`
	CPort uint16 `json:"cport,omitempty" msgpack:"cport,omitempty"`
	SPort uint16 `json:"sport,omitempty" msgpack:"sport,omitempty"`
}

// Pool for gzip readers - avoids reallocating decompression state per
// message.
var gzipReaderPool = sync.Pool{}

var gzipMagic = []byte{0x1f, 0x8b}

// decodeBatch parses one message payload, transparently handling gzip.
// MessagePack is tried first (more efficient on the wire), with a JSON
// fallback for producers that publish text.
func decodeBatch(payload []byte) ([]*event.Syscall, error) {
	if bytes.HasPrefix(payload, gzipMagic) {
		var err error
		payload, err = gunzip(payload)
		if err != nil {
			return nil, fmt.Errorf("decompressing payload: %w", err)
		}
	}

	var batch wireBatch
	if err := msgpack.Unmarshal(payload, &batch); err != nil {
		if err := json.Unmarshal(payload, &batch); err != nil {
			return nil, fmt.Errorf("decoding event batch as MessagePack or JSON: %w", err)
		}
	}

	events := make([]*event.Syscall, 0, len(batch.Events))
	for i := range batch.Events {
		events = append(events, batch.Events[i].toEvent())
	}

	return events, nil
}

func gunzip(payload []byte) ([]byte, error) {
	var zr *gzip.Reader

	if pooled := gzipReaderPool.Get(); pooled != nil {
		zr = pooled.(*gzip.Reader)
		if err := zr.Reset(bytes.NewReader(payload)); err != nil {
			return nil, err
		}
	} else {
		var err error
		zr, err = gzip.NewReader(bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
	}
	defer gzipReaderPool.Put(zr)

	return io.ReadAll(zr)
}

func (w *wireEvent) toEvent() *event.Syscall {
	evt := &event.Syscall{
		Timestamp: w.TS,
		ThreadID:  w.Tid,
		EvtType:   w.Type,
		Lat:       w.Latency,
		Args:      w.Args,
	}

	if w.Res != nil {
		evt.Ret = *w.Res
		evt.HasRet = true
	}
	if w.BufLen != nil {
		evt.Buf = *w.BufLen
		evt.HasBuf = true
	}

	if w.Proc != nil {
		evt.TInfo = &event.ThreadInfo{
			Tid:      w.Tid,
			Pid:      w.Proc.Pid,
			Comm:     w.Proc.Name,
			Exe:      w.Proc.Exe,
			UID:      w.Proc.UID,
			GID:      w.Proc.GID,
			VMSizeKB: w.Proc.VMSizeKB,
		}
	}

	if w.FD != nil {
		fd := &event.FDInfo{
			Num:        w.FD.Num,
			Name:       w.FD.Name,
			Proto:      w.FD.Proto,
			ClientPort: w.FD.CPort,
			ServerPort: w.FD.SPort,
		}
		if ip := net.ParseIP(w.FD.CIP); ip != nil && ip.To4() != nil {
			copy(fd.ClientIP[:], ip.To4())
		}
		if ip := net.ParseIP(w.FD.SIP); ip != nil && ip.To4() != nil {
			copy(fd.ServerIP[:], ip.To4())
		}
		evt.FDInfo = fd
	}

	return evt
}
