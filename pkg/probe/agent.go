package probe

import (
	"encoding/binary"
	"fmt"
	"net"
)

// Agent is the server half of the probe-agent relay: it owns a local
// Facade (normally a USBProbe) and answers RemoteClient requests one
// connection at a time, mirroring the teacher's Bridge.Listen/
// handleConnection shape.
type Agent struct {
	Local Facade
}

// Listen accepts connections on addr and serves them sequentially; only
// one debugger session may be relayed at a time, matching spec §5's
// single-client-at-a-time rule.
func (a *Agent) Listen(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to start probe-agent listener: %w", err)
	}
	defer listener.Close()

	for {
		conn, err := listener.Accept()
		if err != nil {
			return fmt.Errorf("probe-agent accept error: %w", err)
		}
		a.handle(conn)
		conn.Close()
	}
}

func (a *Agent) handle(conn net.Conn) {
	read := func(n int) ([]byte, error) {
		buf := make([]byte, n)
		total := 0
		for total < n {
			r, err := conn.Read(buf[total:])
			if err != nil {
				return nil, err
			}
			total += r
		}
		return buf, nil
	}

	for {
		req, err := readRequest(read)
		if err != nil {
			return
		}
		resp := a.dispatch(req)
		if _, err := conn.Write(encodeResponse(resp)); err != nil {
			return
		}
	}
}

func (a *Agent) dispatch(req relayRequest) relayResponse {
	fail := relayResponse{status: Status(-1)}
	switch req.op {
	case relayGeometry:
		b := make([]byte, 24)
		binary.BigEndian.PutUint32(b[0:4], a.Local.ChipID())
		binary.BigEndian.PutUint32(b[4:8], a.Local.CoreID())
		binary.BigEndian.PutUint32(b[8:12], a.Local.FlashSize())
		binary.BigEndian.PutUint32(b[12:16], a.Local.SRAMSize())
		binary.BigEndian.PutUint32(b[16:20], a.Local.SysBase())
		binary.BigEndian.PutUint32(b[20:24], a.Local.SysSize())
		return relayResponse{status: StatusOK, payload: b}
	case relayConnect:
		return relayResponse{status: a.Local.Connect(ConnectMode(req.addr))}
	case relayClose:
		return relayResponse{status: a.Local.Close()}
	case relayReadDebug32:
		v, st := a.Local.ReadDebug32(req.addr)
		if st != StatusOK {
			return fail
		}
		return relayResponse{status: st, payload: be32bytes(v)}
	case relayWriteDebug32:
		if len(req.payload) != 4 {
			return fail
		}
		return relayResponse{status: a.Local.WriteDebug32(req.addr, be32(req.payload))}
	case relayReadMem:
		if len(req.payload) != 4 {
			return fail
		}
		buf, st := a.Local.ReadMem32(req.addr, be32(req.payload))
		if st != StatusOK {
			return fail
		}
		return relayResponse{status: st, payload: buf}
	case relayWriteMem32:
		return relayResponse{status: a.Local.WriteMem32(req.addr, req.payload)}
	case relayWriteMem8:
		return relayResponse{status: a.Local.WriteMem8(req.addr, req.payload)}
	case relayReadAllRegs:
		regs, st := a.Local.ReadAllRegs()
		if st != StatusOK {
			return fail
		}
		b := make([]byte, 4*16)
		for i := 0; i < 16; i++ {
			binary.BigEndian.PutUint32(b[i*4:], regs.R[i])
		}
		return relayResponse{status: st, payload: b}
	case relayReadReg:
		v, st := a.Local.ReadReg(int(req.addr))
		if st != StatusOK {
			return fail
		}
		return relayResponse{status: st, payload: be32bytes(v)}
	case relayWriteReg:
		if len(req.payload) != 4 {
			return fail
		}
		return relayResponse{status: a.Local.WriteReg(int(req.addr), be32(req.payload))}
	case relayHalt:
		return relayResponse{status: a.Local.Halt()}
	case relayStep:
		return relayResponse{status: a.Local.Step()}
	case relayRun:
		return relayResponse{status: a.Local.Run()}
	case relayTargetHalted:
		halted, st := a.Local.TargetHalted()
		if st != StatusOK {
			return fail
		}
		v := byte(0)
		if halted {
			v = 1
		}
		return relayResponse{status: st, payload: []byte{v}}
	case relayReset:
		return relayResponse{status: a.Local.Reset(ResetMode(req.addr))}
	case relayErasePage:
		return relayResponse{status: a.Local.ErasePage(req.addr)}
	case relayLoaderStart:
		return relayResponse{status: a.Local.FlashLoaderStart()}
	case relayLoaderWrite:
		return relayResponse{status: a.Local.FlashLoaderWrite(req.addr, req.payload)}
	case relayLoaderStop:
		return relayResponse{status: a.Local.FlashLoaderStop()}
	case relayExitDebug:
		return relayResponse{status: a.Local.ExitDebugMode()}
	default:
		return fail
	}
}
