package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evtop/evtop/internal/event"
	"github.com/evtop/evtop/internal/extract"
)

func newTestCompiler() *Compiler {
	return NewCompiler(extract.NewFactory())
}

func sampleEvent() *event.Syscall {
	return &event.Syscall{
		Timestamp: 100,
		ThreadID:  10,
		EvtType:   3,
		Buf:       2048,
		HasBuf:    true,
		Args:      map[string]string{"path": "/var/log/messages"},
		TInfo:     &event.ThreadInfo{Tid: 10, Pid: 9, Comm: "rsyslogd", UID: 0},
		FDInfo: &event.FDInfo{
			Num: 4, Proto: 6,
			ClientIP:   [4]byte{192, 168, 1, 5},
			ClientPort: 514,
		},
	}
}

func TestCompileAndRun(t *testing.T) {
	c := newTestCompiler()
	evt := sampleEvent()

	tests := []struct {
		expr string
		want bool
	}{
		{"proc.name = rsyslogd", true},
		{"proc.name = cron", false},
		{"proc.name != cron", true},
		{"evt.buflen > 1024", true},
		{"evt.buflen >= 2048", true},
		{"evt.buflen < 100", false},
		{"evt.type = 3", true},
		{"fd.cport = 514", true},
		{"fd.cip = 192.168.1.5", true},
		{"fd.cip != 10.0.0.1", true},
		{"proc.name contains syslog", true},
		{"proc.name contains SYSLOG", false},
		{"proc.name icontains SYSLOG", true},
		{"evt.arg.path contains /var/log", true},
		{"proc.name = rsyslogd and evt.buflen > 1024", true},
		{"proc.name = cron or evt.buflen > 1024", true},
		{"proc.name = cron and evt.buflen > 1024", false},
		{"not proc.name = cron", true},
		{"(proc.name = cron or proc.name = rsyslogd) and fd.cport = 514", true},
		{"user.uid = 0", true},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			f, err := c.Compile(tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, f.Run(evt))
		})
	}
}

func TestQuotedValues(t *testing.T) {
	c := newTestCompiler()

	f, err := c.Compile(`evt.arg.path = "/var/log/messages"`)
	require.NoError(t, err)
	assert.True(t, f.Run(sampleEvent()))

	f, err = c.Compile(`proc.name = 'rsyslogd'`)
	require.NoError(t, err)
	assert.True(t, f.Run(sampleEvent()))
}

// A field that does not resolve on the event makes the comparison miss.
func TestMissingFieldRejects(t *testing.T) {
	c := newTestCompiler()

	f, err := c.Compile("fd.sport = 80")
	require.NoError(t, err)

	evt := sampleEvent()
	evt.FDInfo = nil
	assert.False(t, f.Run(evt))
}

func TestCompileErrors(t *testing.T) {
	c := newTestCompiler()

	tests := []string{
		"",
		"proc.name",
		"proc.name =",
		"proc.name ~~ x",
		"bogus.field = 1",
		"(proc.name = a",
		"evt.buflen = notanumber",
		"fd.cip = 999.999.1.1",
		"proc.name = a extra",
	}

	for _, expr := range tests {
		t.Run(expr, func(t *testing.T) {
			_, err := c.Compile(expr)
			assert.Error(t, err)
		})
	}
}

func TestSyntaxErrorKind(t *testing.T) {
	c := newTestCompiler()

	_, err := c.Compile("proc.name ~~ x")
	assert.ErrorIs(t, err, ErrSyntax)

	_, err = c.Compile("bogus.field = 1")
	assert.ErrorIs(t, err, extract.ErrUnknownField)
}
