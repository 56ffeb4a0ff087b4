package probe

import "fmt"

// Relay op codes for the probe-agent wire protocol (RemoteClient <->
// Agent). This is our own process-to-process relay, not the probe's
// proprietary USB format, so unlike usbprobe.go's request framing this one
// is fully specified here.
type relayOp byte

const (
	relayConnect relayOp = iota + 1
	relayClose
	relayReadDebug32
	relayWriteDebug32
	relayReadMem
	relayWriteMem32
	relayWriteMem8
	relayReadAllRegs
	relayReadReg
	relayWriteReg
	relayHalt
	relayStep
	relayRun
	relayTargetHalted
	relayReset
	relayErasePage
	relayLoaderStart
	relayLoaderWrite
	relayLoaderStop
	relayExitDebug
	relayGeometry
)

// relayRequest mirrors pkg/protocol.DebugPort's request framing from the
// teacher: a sync byte, a one-byte op, a 32-bit address, a 16-bit length,
// payload, and a trailing LRC (XOR) byte.
type relayRequest struct {
	op      relayOp
	addr    uint32
	payload []byte
}

const (
	relaySyncReq  = 0x55
	relaySyncResp = 0xAA
)

func lrc(b []byte) byte {
	var v byte
	for _, x := range b {
		v ^= x
	}
	return v
}

func encodeRequest(r relayRequest) []byte {
	hdr := []byte{
		relaySyncReq,
		byte(r.op),
		byte(r.addr >> 24), byte(r.addr >> 16), byte(r.addr >> 8), byte(r.addr),
		byte(len(r.payload) >> 8), byte(len(r.payload)),
	}
	buf := append(hdr, r.payload...)
	return append(buf, lrc(buf[1:]))
}

// readRequest reads one relayRequest from conn using its blocking n-byte Read.
func readRequest(read func(int) ([]byte, error)) (relayRequest, error) {
	sync, err := read(1)
	if err != nil {
		return relayRequest{}, err
	}
	if sync[0] != relaySyncReq {
		return relayRequest{}, fmt.Errorf("bad request sync byte %#x", sync[0])
	}
	hdr, err := read(7)
	if err != nil {
		return relayRequest{}, err
	}
	op := relayOp(hdr[0])
	addr := be32(hdr[1:5])
	length := uint16(hdr[5])<<8 | uint16(hdr[6])
	var payload []byte
	if length > 0 {
		payload, err = read(int(length))
		if err != nil {
			return relayRequest{}, err
		}
	}
	l, err := read(1)
	if err != nil {
		return relayRequest{}, err
	}
	check := append(append([]byte{byte(op)}, hdr[1:]...), payload...)
	if l[0] != lrc(check) {
		return relayRequest{}, fmt.Errorf("request LRC mismatch")
	}
	return relayRequest{op: op, addr: addr, payload: payload}, nil
}

type relayResponse struct {
	status  Status
	payload []byte
}

func encodeResponse(r relayResponse) []byte {
	hdr := []byte{
		relaySyncResp,
		byte(r.status),
		byte(len(r.payload) >> 8), byte(len(r.payload)),
	}
	buf := append(hdr, r.payload...)
	return append(buf, lrc(buf[1:]))
}

func readResponse(read func(int) ([]byte, error)) (relayResponse, error) {
	sync, err := read(1)
	if err != nil {
		return relayResponse{}, err
	}
	if sync[0] != relaySyncResp {
		return relayResponse{}, fmt.Errorf("bad response sync byte %#x", sync[0])
	}
	hdr, err := read(3)
	if err != nil {
		return relayResponse{}, err
	}
	status := Status(int8(hdr[0]))
	length := uint16(hdr[1])<<8 | uint16(hdr[2])
	var payload []byte
	if length > 0 {
		payload, err = read(int(length))
		if err != nil {
			return relayResponse{}, err
		}
	}
	l, err := read(1)
	if err != nil {
		return relayResponse{}, err
	}
	check := append(append([]byte{hdr[0]}, hdr[1:]...), payload...)
	if l[0] != lrc(check) {
		return relayResponse{}, fmt.Errorf("response LRC mismatch")
	}
	return relayResponse{status: status, payload: payload}, nil
}
