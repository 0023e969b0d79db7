package pigpio

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"net"
	"sync"
	"testing"

	"github.com/aretw0/cardsort/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type frame struct {
	cmd, p1, p2 uint32
}

// fakeDaemon answers pigpiod frames, returning levels for READ and failing on demand.
type fakeDaemon struct {
	ln net.Listener

	mu     sync.Mutex
	frames []frame
	levels map[uint32]int32
	fail   map[uint32]int32
}

func startDaemon(t *testing.T) *fakeDaemon {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	d := &fakeDaemon{ln: ln, levels: map[uint32]int32{}, fail: map[uint32]int32{}}
	t.Cleanup(func() { _ = ln.Close() })
	go d.serve()
	return d
}

func (d *fakeDaemon) serve() {
	for {
		conn, err := d.ln.Accept()
		if err != nil {
			return
		}
		go d.handle(conn)
	}
}

func (d *fakeDaemon) handle(conn net.Conn) {
	defer conn.Close()
	var buf [16]byte
	for {
		if _, err := io.ReadFull(conn, buf[:]); err != nil {
			return
		}
		f := frame{
			cmd: binary.LittleEndian.Uint32(buf[0:]),
			p1:  binary.LittleEndian.Uint32(buf[4:]),
			p2:  binary.LittleEndian.Uint32(buf[8:]),
		}
		d.mu.Lock()
		d.frames = append(d.frames, f)
		res, failing := d.fail[f.cmd]
		if !failing && f.cmd == cmdRead {
			res = d.levels[f.p1]
		}
		d.mu.Unlock()

		binary.LittleEndian.PutUint32(buf[12:], uint32(res))
		if _, err := conn.Write(buf[:]); err != nil {
			return
		}
	}
}

func (d *fakeDaemon) recorded() []frame {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]frame(nil), d.frames...)
}

func dial(t *testing.T, d *fakeDaemon) *Board {
	t.Helper()
	b, err := Dial(context.Background(), d.ln.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestBoard_Setup(t *testing.T) {
	d := startDaemon(t)
	b := dial(t, d)

	require.NoError(t, b.Setup([]int{19}, []int{8}, PullUp))

	assert.Equal(t, []frame{
		{cmdModes, 19, modeOutput},
		{cmdWrite, 19, 0},
		{cmdModes, 8, modeInput},
		{cmdPUD, 8, uint32(PullUp)},
	}, d.recorded())
}

func TestBoard_ReadWrite(t *testing.T) {
	d := startDaemon(t)
	d.levels[14] = 1
	b := dial(t, d)

	level, err := b.ReadLevel(14)
	require.NoError(t, err)
	assert.Equal(t, domain.High, level)
	level, err = b.ReadLevel(8)
	require.NoError(t, err)
	assert.Equal(t, domain.Low, level)

	require.NoError(t, b.WriteLevel(26, domain.High))
	assert.Equal(t, frame{cmdWrite, 26, 1}, d.recorded()[2])
}

func TestBoard_Step(t *testing.T) {
	d := startDaemon(t)
	b := dial(t, d)

	require.NoError(t, b.Step([]int{19, 26, 4, 17}, []domain.Level{domain.High, domain.High, domain.Low, domain.Low}))

	assert.Equal(t, []frame{
		{cmdBC1, 1<<4 | 1<<17, 0},
		{cmdBS1, 1<<19 | 1<<26, 0},
	}, d.recorded())

	assert.Error(t, b.Step([]int{1, 2}, []domain.Level{domain.High}))
}

func TestBoard_Servo(t *testing.T) {
	d := startDaemon(t)
	b := dial(t, d)

	require.NoError(t, b.SetServoAngle(18, 90))
	require.NoError(t, b.ReleaseServo(18))
	assert.Error(t, b.SetServoAngle(18, 181))

	assert.Equal(t, []frame{
		{cmdServo, 18, 1000},
		{cmdServo, 18, 0},
	}, d.recorded())
}

func TestPulseWidth(t *testing.T) {
	assert.Equal(t, uint32(500), PulseWidth(0))
	assert.Equal(t, uint32(1000), PulseWidth(90))
	assert.Equal(t, uint32(1500), PulseWidth(180))
}

func TestBoard_DaemonError(t *testing.T) {
	d := startDaemon(t)
	d.fail[cmdServo] = -8
	b := dial(t, d)

	err := b.SetServoAngle(18, 45)
	var perr *Error
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, int32(-8), perr.Status)
}

func TestParsePull(t *testing.T) {
	p, err := ParsePull("up")
	require.NoError(t, err)
	assert.Equal(t, PullUp, p)
	_, err = ParsePull("sideways")
	assert.Error(t, err)
}
