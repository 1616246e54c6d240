package mqtt

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

const batchJSON = `{
  "events": [
    {
      "ts": 1000,
      "tid": 42,
      "type": 3,
      "latency": 250,
      "res": -11,
      "buflen": 512,
      "args": {"path": "/etc/hosts"},
      "proc": {"name": "curl", "pid": 41, "uid": 1000, "gid": 100, "vmsize_kb": 2048},
      "fd": {"num": 5, "name": "socket", "proto": 6, "cip": "10.0.0.1", "sip": "10.0.0.2", "cport": 43210, "sport": 443}
    },
    {"ts": 2000, "tid": 43, "type": 7}
  ]
}`

func TestDecodeBatch(t *testing.T) {
	events, err := decodeBatch([]byte(batchJSON))
	require.NoError(t, err)
	require.Len(t, events, 2)

	evt := events[0]
	assert.Equal(t, uint64(1000), evt.Ts())
	assert.Equal(t, int64(42), evt.Tid())
	assert.Equal(t, uint16(3), evt.Type())
	assert.Equal(t, uint64(250), evt.Latency())

	res, ok := evt.Res()
	require.True(t, ok)
	assert.Equal(t, int64(-11), res)

	buflen, ok := evt.BufLen()
	require.True(t, ok)
	assert.Equal(t, uint32(512), buflen)

	path, ok := evt.Arg("path")
	require.True(t, ok)
	assert.Equal(t, "/etc/hosts", path)

	require.NotNil(t, evt.Thread())
	assert.Equal(t, "curl", evt.Thread().Comm)
	assert.Equal(t, int64(41), evt.Thread().Pid)

	require.NotNil(t, evt.FD())
	assert.Equal(t, int64(5), evt.FD().Num)
	assert.Equal(t, [4]byte{10, 0, 0, 1}, evt.FD().ClientIP)
	assert.Equal(t, uint16(443), evt.FD().ServerPort)

	// Optional sections absent: the event still decodes.
	bare := events[1]
	assert.Nil(t, bare.Thread())
	assert.Nil(t, bare.FD())
	_, ok = bare.Res()
	assert.False(t, ok)
	_, ok = bare.BufLen()
	assert.False(t, ok)
}

func TestDecodeBatchMsgPack(t *testing.T) {
	res := int64(-11)
	buflen := uint32(512)
	payload, err := msgpack.Marshal(wireBatch{Events: []wireEvent{
		{
			TS: 1000, Tid: 42, Type: 3, Latency: 250,
			Res: &res, BufLen: &buflen,
			Args: map[string]string{"path": "/etc/hosts"},
			Proc: &wireProc{Name: "curl", Pid: 41, UID: 1000},
			FD:   &wireFD{Num: 5, Proto: 6, CIP: "10.0.0.1", SPort: 443},
		},
		{TS: 2000, Tid: 43, Type: 7},
	}})
	require.NoError(t, err)

	events, err := decodeBatch(payload)
	require.NoError(t, err)
	require.Len(t, events, 2)

	evt := events[0]
	assert.Equal(t, uint64(1000), evt.Ts())
	assert.Equal(t, uint16(3), evt.Type())

	got, ok := evt.Res()
	require.True(t, ok)
	assert.Equal(t, int64(-11), got)

	require.NotNil(t, evt.Thread())
	assert.Equal(t, "curl", evt.Thread().Comm)
	require.NotNil(t, evt.FD())
	assert.Equal(t, [4]byte{10, 0, 0, 1}, evt.FD().ClientIP)
	assert.Equal(t, uint16(443), evt.FD().ServerPort)
}

func TestDecodeBatchMsgPackGzip(t *testing.T) {
	payload, err := msgpack.Marshal(wireBatch{Events: []wireEvent{{TS: 1, Tid: 2, Type: 3}}})
	require.NoError(t, err)

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err = zw.Write(payload)
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	events, err := decodeBatch(buf.Bytes())
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, uint64(1), events[0].Ts())
}

func TestDecodeBatchGzip(t *testing.T) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(batchJSON))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	events, err := decodeBatch(buf.Bytes())
	require.NoError(t, err)
	assert.Len(t, events, 2)

	// The pooled reader path must work repeatedly.
	events, err = decodeBatch(buf.Bytes())
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestDecodeBatchMalformed(t *testing.T) {
	_, err := decodeBatch([]byte("not json"))
	assert.Error(t, err)

	_, err = decodeBatch([]byte{0x1f, 0x8b, 0x00})
	assert.Error(t, err)
}

func TestDecodeBatchEmpty(t *testing.T) {
	payload, err := json.Marshal(wireBatch{})
	require.NoError(t, err)

	events, err := decodeBatch(payload)
	require.NoError(t, err)
	assert.Empty(t, events)
}
