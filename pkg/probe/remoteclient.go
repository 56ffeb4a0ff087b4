package probe

import (
	"encoding/binary"
	"fmt"

	"github.com/stlinkgdb/stlinkgdb/pkg/transport"
)

// RemoteClient implements Facade by relaying every call to a probe-agent
// process over a transport.Connection, for the case where the USB probe is
// attached to a different host than the one running the RSP server. The
// request/response framing is adapted from the teacher's
// pkg/protocol.DebugPort.transfer and pkg/connection/bridge.go relay loop.
type RemoteClient struct {
	conn transport.Connection
	geom Geometry
}

// NewRemoteClient dials addr (see transport.NewConnection for the
// host:port vs serial-device dispatch) and fetches the agent's chip
// geometry.
func NewRemoteClient(addr string) (*RemoteClient, error) {
	conn := transport.NewConnection(addr)
	if err := conn.Open(addr); err != nil {
		return nil, fmt.Errorf("failed to reach probe-agent at %s: %w", addr, err)
	}
	c := &RemoteClient{conn: conn}
	if err := c.fetchGeometry(); err != nil {
		conn.Close()
		return nil, err
	}
	return c, nil
}

func (c *RemoteClient) call(op relayOp, addr uint32, payload []byte) (relayResponse, error) {
	req := encodeRequest(relayRequest{op: op, addr: addr, payload: payload})
	if _, err := c.conn.Write(req); err != nil {
		return relayResponse{}, err
	}
	return readResponse(c.conn.Read)
}

func (c *RemoteClient) fetchGeometry() error {
	resp, err := c.call(relayGeometry, 0, nil)
	if err != nil || resp.status != StatusOK || len(resp.payload) != 24 {
		return fmt.Errorf("failed to fetch probe-agent geometry: %w", err)
	}
	b := resp.payload
	c.geom = Geometry{
		ChipID:     binary.BigEndian.Uint32(b[0:4]),
		CoreID:     binary.BigEndian.Uint32(b[4:8]),
		FlashBytes: binary.BigEndian.Uint32(b[8:12]),
		SRAMBytes:  binary.BigEndian.Uint32(b[12:16]),
		SysBase:    binary.BigEndian.Uint32(b[16:20]),
		SysSize:    binary.BigEndian.Uint32(b[20:24]),
		ErasedByte: 0xFF,
	}
	return nil
}

func (c *RemoteClient) Connect(mode ConnectMode) Status {
	resp, err := c.call(relayConnect, uint32(mode), nil)
	return orFail(resp, err)
}

func (c *RemoteClient) Close() Status {
	resp, err := c.call(relayClose, 0, nil)
	c.conn.Close()
	return orFail(resp, err)
}

func orFail(resp relayResponse, err error) Status {
	if err != nil {
		return Status(-1)
	}
	return resp.status
}

func (c *RemoteClient) ReadDebug32(addr uint32) (uint32, Status) {
	resp, err := c.call(relayReadDebug32, addr, nil)
	if err != nil || resp.status != StatusOK || len(resp.payload) != 4 {
		return 0, Status(-1)
	}
	return be32(resp.payload), StatusOK
}

func (c *RemoteClient) WriteDebug32(addr uint32, v uint32) Status {
	resp, err := c.call(relayWriteDebug32, addr, be32bytes(v))
	return orFail(resp, err)
}

func (c *RemoteClient) ReadMem32(addr uint32, length uint32) ([]byte, Status) {
	resp, err := c.call(relayReadMem, addr, be32bytes(length))
	if err != nil || resp.status != StatusOK {
		return nil, Status(-1)
	}
	return resp.payload, StatusOK
}

func (c *RemoteClient) WriteMem32(addr uint32, buf []byte) Status {
	resp, err := c.call(relayWriteMem32, addr, buf)
	return orFail(resp, err)
}

func (c *RemoteClient) WriteMem8(addr uint32, buf []byte) Status {
	resp, err := c.call(relayWriteMem8, addr, buf)
	return orFail(resp, err)
}

func (c *RemoteClient) ReadAllRegs() (Regs, Status) {
	resp, err := c.call(relayReadAllRegs, 0, nil)
	var r Regs
	if err != nil || resp.status != StatusOK || len(resp.payload) != 4*16 {
		return r, Status(-1)
	}
	for i := 0; i < 16; i++ {
		r.R[i] = binary.BigEndian.Uint32(resp.payload[i*4:])
	}
	return r, StatusOK
}

func (c *RemoteClient) ReadReg(id int) (uint32, Status) {
	resp, err := c.call(relayReadReg, uint32(id), nil)
	if err != nil || resp.status != StatusOK || len(resp.payload) != 4 {
		return 0, Status(-1)
	}
	return be32(resp.payload), StatusOK
}

func (c *RemoteClient) WriteReg(id int, v uint32) Status {
	resp, err := c.call(relayWriteReg, uint32(id), be32bytes(v))
	return orFail(resp, err)
}

func (c *RemoteClient) ReadUnsupportedReg(id int) (uint32, Status)  { return 0, Status(-1) }
func (c *RemoteClient) WriteUnsupportedReg(id int, v uint32) Status { return Status(-1) }

func (c *RemoteClient) Halt() Status {
	resp, err := c.call(relayHalt, 0, nil)
	return orFail(resp, err)
}

func (c *RemoteClient) Step() Status {
	resp, err := c.call(relayStep, 0, nil)
	return orFail(resp, err)
}

func (c *RemoteClient) Run() Status {
	resp, err := c.call(relayRun, 0, nil)
	return orFail(resp, err)
}

func (c *RemoteClient) TargetHalted() (bool, Status) {
	resp, err := c.call(relayTargetHalted, 0, nil)
	if err != nil || resp.status != StatusOK || len(resp.payload) != 1 {
		return false, Status(-1)
	}
	return resp.payload[0] != 0, StatusOK
}

func (c *RemoteClient) Reset(mode ResetMode) Status {
	resp, err := c.call(relayReset, uint32(mode), nil)
	return orFail(resp, err)
}

func (c *RemoteClient) ErasePage(addr uint32) Status {
	resp, err := c.call(relayErasePage, addr, nil)
	return orFail(resp, err)
}

func (c *RemoteClient) FlashLoaderStart() Status {
	resp, err := c.call(relayLoaderStart, 0, nil)
	return orFail(resp, err)
}

func (c *RemoteClient) FlashLoaderWrite(addr uint32, data []byte) Status {
	resp, err := c.call(relayLoaderWrite, addr, data)
	return orFail(resp, err)
}

func (c *RemoteClient) FlashLoaderStop() Status {
	resp, err := c.call(relayLoaderStop, 0, nil)
	return orFail(resp, err)
}

func (c *RemoteClient) ExitDebugMode() Status {
	resp, err := c.call(relayExitDebug, 0, nil)
	return orFail(resp, err)
}

func (c *RemoteClient) ChipID() uint32            { return c.geom.ChipID }
func (c *RemoteClient) CoreID() uint32            { return c.geom.CoreID }
func (c *RemoteClient) FlashSize() uint32         { return c.geom.FlashBytes }
func (c *RemoteClient) FlashPageSize(addr uint32) uint32 {
	if c.geom.FlashPageSize != nil {
		return c.geom.FlashPageSize(addr)
	}
	return 1024
}
func (c *RemoteClient) SRAMSize() uint32    { return c.geom.SRAMBytes }
func (c *RemoteClient) SysBase() uint32     { return c.geom.SysBase }
func (c *RemoteClient) SysSize() uint32     { return c.geom.SysSize }
func (c *RemoteClient) ErasedPattern() byte { return c.geom.ErasedByte }

var _ Facade = (*RemoteClient)(nil)
