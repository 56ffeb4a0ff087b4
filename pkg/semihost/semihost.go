// Package semihost implements the Semihosting Dispatcher (C7): it detects
// the ARM semihosting trap (BKPT #0xAB), decodes the operation and
// parameter block from r0/r1, performs the requested host-side I/O, and
// rewrites r0 and the program counter so the continue loop can resume the
// target. See spec §4.7.
package semihost

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/stlinkgdb/stlinkgdb/pkg/probe"
)

// trapInstr is the Thumb encoding of BKPT #0xAB, the magic value the
// continue loop compares the halted PC's half-word against.
const trapInstr = 0xBEAB

// ARM semihosting operation codes (r0 at the trap).
const (
	SysOpen         = 0x01
	SysClose        = 0x02
	SysWriteC       = 0x03
	SysWrite0       = 0x04
	SysWrite        = 0x05
	SysRead         = 0x06
	SysReadC        = 0x07
	SysIsError      = 0x08
	SysIsTTY        = 0x09
	SysSeek         = 0x0A
	SysFlen         = 0x0C
	SysRemove       = 0x0E
	SysRename       = 0x0F
	SysClock        = 0x10
	SysErrno        = 0x13
	SysExit         = 0x18
	SysExitExtended = 0x20
)

// File is a host file handle backing an open semihosting SYS_OPEN request.
type File interface {
	io.ReadWriteSeeker
	io.Closer
}

// OpenFunc opens a host path in the given ARM semihosting fopen-style mode
// (0=r, 1=rb, ... 8=a, ... per the semihosting spec's mode table), returning
// the console stream when name is ":tt".
type OpenFunc func(name string, mode int) (File, error)

// defaultOpen maps ":tt" to stdin/stdout and everything else straight
// through to the host filesystem.
func defaultOpen(stdin io.Reader, stdout io.Writer) OpenFunc {
	return func(name string, mode int) (File, error) {
		if name == ":tt" {
			if mode == 0 || mode == 1 {
				return nopCloser{stdin, io.Discard}, nil
			}
			return nopCloser{nil, stdout}, nil
		}
		flags := os.O_RDONLY
		switch {
		case mode >= 4 && mode <= 7:
			flags = os.O_RDWR | os.O_CREATE | os.O_TRUNC
		case mode >= 8:
			flags = os.O_RDWR | os.O_CREATE | os.O_APPEND
		case mode >= 2:
			flags = os.O_RDWR
		}
		f, err := os.OpenFile(name, flags, 0644)
		if err != nil {
			return nil, err
		}
		return f, nil
	}
}

// nopCloser adapts stdin/stdout into a File for the ":tt" console stream;
// Seek is unsupported on a console and simply reports an error.
type nopCloser struct {
	r io.Reader
	w io.Writer
}

func (c nopCloser) Read(p []byte) (int, error) {
	if c.r == nil {
		return 0, io.EOF
	}
	return c.r.Read(p)
}
func (c nopCloser) Write(p []byte) (int, error) {
	if c.w == nil {
		return len(p), nil
	}
	return c.w.Write(p)
}
func (c nopCloser) Seek(offset int64, whence int) (int64, error) {
	return 0, fmt.Errorf("semihost: console stream is not seekable")
}
func (c nopCloser) Close() error { return nil }

// Dispatcher services semihosting calls for one target session.
type Dispatcher struct {
	p     probe.Facade
	open  OpenFunc
	start time.Time

	handles    map[uint32]File
	nextHandle uint32

	consoleIn  File
	consoleOut File

	errno int

	Exited   bool
	ExitCode int
}

// New returns a Dispatcher bound to p, with console I/O wired to stdin/stdout.
func New(p probe.Facade) *Dispatcher {
	return NewWithConsole(p, os.Stdin, os.Stdout)
}

// NewWithConsole is New with explicit console streams, for tests.
func NewWithConsole(p probe.Facade, stdin io.Reader, stdout io.Writer) *Dispatcher {
	return &Dispatcher{
		p:          p,
		open:       defaultOpen(stdin, stdout),
		start:      time.Now(),
		handles:    make(map[uint32]File),
		nextHandle: 1,
	}
}

// IsTrap reports whether the half-word at pc is the semihosting BKPT.
func (d *Dispatcher) IsTrap(pc uint32) (bool, error) {
	raw, st := d.p.ReadMem32(pc, 2)
	if st != probe.StatusOK {
		return false, fmt.Errorf("semihost: failed to read PC %#x: status %d", pc, st)
	}
	instr := uint32(raw[0]) | uint32(raw[1])<<8
	return instr == trapInstr, nil
}

// Service performs one semihosting call: it reads r0 (operation) and r1
// (parameter block pointer), dispatches, writes the result back to r0, and
// advances PC past the trap instruction. Callers must run a cache sync
// before resuming the target.
func (d *Dispatcher) Service(pc uint32) error {
	op, st := d.p.ReadReg(0)
	if st != probe.StatusOK {
		return fmt.Errorf("semihost: failed to read r0: status %d", st)
	}
	paramPtr, st := d.p.ReadReg(1)
	if st != probe.StatusOK {
		return fmt.Errorf("semihost: failed to read r1: status %d", st)
	}

	result, err := d.dispatch(op, paramPtr)
	if err != nil {
		return err
	}

	if st := d.p.WriteReg(0, result); st != probe.StatusOK {
		return fmt.Errorf("semihost: failed to write r0: status %d", st)
	}
	if st := d.p.WriteReg(15, pc+2); st != probe.StatusOK {
		return fmt.Errorf("semihost: failed to advance PC: status %d", st)
	}
	return nil
}

func (d *Dispatcher) readWord(addr uint32) (uint32, error) {
	raw, st := d.p.ReadMem32(addr, 4)
	if st != probe.StatusOK {
		return 0, fmt.Errorf("semihost: failed to read param word at %#x: status %d", addr, st)
	}
	return uint32(raw[0]) | uint32(raw[1])<<8 | uint32(raw[2])<<16 | uint32(raw[3])<<24, nil
}

func (d *Dispatcher) readBlock(addr uint32, n int) ([]uint32, error) {
	words := make([]uint32, n)
	for i := range words {
		w, err := d.readWord(addr + uint32(i*4))
		if err != nil {
			return nil, err
		}
		words[i] = w
	}
	return words, nil
}

func (d *Dispatcher) dispatch(op, paramPtr uint32) (uint32, error) {
	switch op {
	case SysWriteC:
		ch, st := d.p.ReadMem32(paramPtr, 1)
		if st != probe.StatusOK {
			return 0xFFFFFFFF, nil
		}
		d.stdout().Write(ch)
		return 0, nil

	case SysWrite0:
		var s []byte
		for addr := paramPtr; ; addr++ {
			b, st := d.p.ReadMem32(addr, 1)
			if st != probe.StatusOK || b[0] == 0 {
				break
			}
			s = append(s, b[0])
		}
		d.stdout().Write(s)
		return 0, nil

	case SysWrite:
		params, err := d.readBlock(paramPtr, 3)
		if err != nil {
			return 0, err
		}
		handle, addr, length := params[0], params[1], params[2]
		f := d.handles[handle]
		if f == nil {
			return length, nil // nothing written: entire count is "not written"
		}
		data, st := d.p.ReadMem32(addr, length)
		if st != probe.StatusOK {
			return length, nil
		}
		n, err := f.Write(data)
		if err != nil {
			d.errno = 1
		}
		return length - uint32(n), nil

	case SysRead:
		params, err := d.readBlock(paramPtr, 3)
		if err != nil {
			return 0, err
		}
		handle, addr, length := params[0], params[1], params[2]
		f := d.handles[handle]
		if f == nil {
			return length, nil
		}
		buf := make([]byte, length)
		n, _ := io.ReadFull(f, buf)
		if n > 0 {
			if st := d.p.WriteMem8(addr, buf[:n]); st != probe.StatusOK {
				return length, nil
			}
		}
		return length - uint32(n), nil

	case SysReadC:
		buf := make([]byte, 1)
		n, _ := d.stdin().Read(buf)
		if n == 0 {
			return 0xFFFFFFFF, nil
		}
		return uint32(buf[0]), nil

	case SysIsError:
		return 0, nil

	case SysIsTTY:
		handle, err := d.readWord(paramPtr)
		if err != nil {
			return 0, err
		}
		if handle == 1 || handle == 2 {
			return 1, nil
		}
		return 0, nil

	case SysOpen:
		params, err := d.readBlock(paramPtr, 3)
		if err != nil {
			return 0, err
		}
		nameAddr, mode, nameLen := params[0], params[1], params[2]
		raw, st := d.p.ReadMem32(nameAddr, nameLen)
		if st != probe.StatusOK {
			return 0xFFFFFFFF, nil
		}
		f, err := d.open(string(raw), int(mode))
		if err != nil {
			d.errno = 1
			return 0xFFFFFFFF, nil
		}
		handle := d.nextHandle
		d.nextHandle++
		d.handles[handle] = f
		return handle, nil

	case SysClose:
		handle, err := d.readWord(paramPtr)
		if err != nil {
			return 0, err
		}
		if f := d.handles[handle]; f != nil {
			f.Close()
			delete(d.handles, handle)
			return 0, nil
		}
		return 0xFFFFFFFF, nil

	case SysSeek:
		params, err := d.readBlock(paramPtr, 2)
		if err != nil {
			return 0, err
		}
		handle, pos := params[0], params[1]
		f := d.handles[handle]
		if f == nil {
			return 0xFFFFFFFF, nil
		}
		if _, err := f.Seek(int64(pos), io.SeekStart); err != nil {
			d.errno = 1
			return 0xFFFFFFFF, nil
		}
		return 0, nil

	case SysFlen:
		handle, err := d.readWord(paramPtr)
		if err != nil {
			return 0, err
		}
		f := d.handles[handle]
		if f == nil {
			return 0xFFFFFFFF, nil
		}
		cur, _ := f.Seek(0, io.SeekCurrent)
		end, err := f.Seek(0, io.SeekEnd)
		if err != nil {
			return 0xFFFFFFFF, nil
		}
		f.Seek(cur, io.SeekStart)
		return uint32(end), nil

	case SysErrno:
		return uint32(d.errno), nil

	case SysClock:
		return uint32(time.Since(d.start).Milliseconds() / 10), nil

	case SysExit:
		d.Exited = true
		d.ExitCode = 0
		return 0, nil

	case SysExitExtended:
		params, err := d.readBlock(paramPtr, 2)
		if err != nil {
			return 0, err
		}
		d.Exited = true
		d.ExitCode = int(params[1])
		return 0, nil

	default:
		return 0xFFFFFFFF, nil
	}
}

// stdout lazily opens the ":tt" console in write mode.
func (d *Dispatcher) stdout() io.Writer {
	if d.consoleOut == nil {
		f, err := d.open(":tt", 4)
		if err != nil {
			return io.Discard
		}
		d.consoleOut = f
	}
	return d.consoleOut
}

// stdin lazily opens the ":tt" console in read mode.
func (d *Dispatcher) stdin() io.Reader {
	if d.consoleIn == nil {
		f, err := d.open(":tt", 0)
		if err != nil {
			return strings.NewReader("")
		}
		d.consoleIn = f
	}
	return d.consoleIn
}
