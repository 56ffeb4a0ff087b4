package session

import (
	"strconv"
	"strings"

	"github.com/stlinkgdb/stlinkgdb/pkg/armdbg"
	"github.com/stlinkgdb/stlinkgdb/pkg/chipdb"
	"github.com/stlinkgdb/stlinkgdb/pkg/probe"
	"github.com/stlinkgdb/stlinkgdb/pkg/rsp"
	"github.com/stlinkgdb/stlinkgdb/pkg/targetdesc"
)

const maxReadLen = 0x1800

var errReply = []byte("E00")
var okReply = []byte("OK")

func parseHexU32(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 16, 32)
	return uint32(v), err
}

// dispatch handles one received packet and returns the reply to send (nil
// means no reply at all, as for 'k') and whether the connection must be
// torn down after this packet.
func (s *Session) dispatch(payload []byte) (reply []byte, terminate bool) {
	if len(payload) == 0 {
		return []byte(""), false
	}

	switch payload[0] {
	case '?':
		if s.attached {
			return []byte("S05"), false
		}
		return okReply, false

	case 'g':
		return s.readAllRegs(), false

	case 'G':
		return s.writeAllRegs(payload[1:]), false

	case 'p':
		return s.readReg(string(payload[1:])), false

	case 'P':
		return s.writeReg(string(payload[1:])), false

	case 'm':
		return s.readMem(string(payload[1:])), false

	case 'M':
		return s.writeMem(string(payload[1:])), false

	case 'c':
		return s.continueLoop(), false

	case 's':
		return s.singleStep()

	case 'Z':
		return s.setBreakWatch(string(payload[1:])), false

	case 'z':
		return s.clearBreakWatch(string(payload[1:])), false

	case '!':
		s.extended = true
		return okReply, false

	case 'R':
		return s.restart(), false

	case 'k':
		return s.kill()

	case 'q':
		return s.query(string(payload[1:])), false

	case 'v':
		return s.verb(string(payload[1:])), false

	default:
		return []byte(""), false
	}
}

func (s *Session) readAllRegs() []byte {
	regs, st := s.p.ReadAllRegs()
	if st != probe.StatusOK {
		return errReply
	}
	var b strings.Builder
	for i := 0; i < 16; i++ {
		b.WriteString(rsp.WordToWireHex(regs.R[i]))
	}
	return []byte(b.String())
}

func (s *Session) writeAllRegs(hexData []byte) []byte {
	data := string(hexData)
	if len(data) != 16*8 {
		return errReply
	}
	for i := 0; i < 16; i++ {
		v, err := rsp.WireHexToWord(data[i*8 : i*8+8])
		if err != nil {
			return errReply
		}
		if st := s.p.WriteReg(i, v); st != probe.StatusOK {
			return errReply
		}
	}
	return okReply
}

func isByteReg(id int) bool {
	return id >= armdbg.RegControl && id <= armdbg.RegPriMask
}

func (s *Session) readReg(arg string) []byte {
	id64, err := strconv.ParseUint(arg, 16, 32)
	if err != nil {
		return errReply
	}
	id := int(id64)
	v, st := s.p.ReadReg(id)
	if st != probe.StatusOK {
		return errReply
	}
	if isByteReg(id) {
		return []byte(rsp.Byte8ToWireHex(byte(v)))
	}
	return []byte(rsp.WordToWireHex(v))
}

func (s *Session) writeReg(arg string) []byte {
	idStr, valStr, ok := strings.Cut(arg, "=")
	if !ok {
		return errReply
	}
	id64, err := strconv.ParseUint(idStr, 16, 32)
	if err != nil {
		return errReply
	}
	id := int(id64)

	var v uint32
	if isByteReg(id) {
		raw, err := rsp.HexToBytes(valStr)
		if err != nil || len(raw) != 1 {
			return errReply
		}
		v = uint32(raw[0])
	} else {
		v, err = rsp.WireHexToWord(valStr)
		if err != nil {
			return errReply
		}
	}
	if st := s.p.WriteReg(id, v); st != probe.StatusOK {
		return errReply
	}
	return okReply
}

func (s *Session) readMem(arg string) []byte {
	addrStr, lenStr, ok := strings.Cut(arg, ",")
	if !ok {
		return errReply
	}
	addr, err := parseHexU32(addrStr)
	if err != nil {
		return errReply
	}
	length, err := parseHexU32(lenStr)
	if err != nil {
		return errReply
	}

	limit := uint32(maxReadLen)
	if s.haveGeom {
		if pg := s.geom.PageSizeAt(addr); pg > 0 && pg < limit {
			limit = pg
		}
	}
	if length > limit {
		length = limit
	}

	data, st := s.p.ReadMem32(addr, length)
	if st != probe.StatusOK {
		return errReply
	}
	return []byte(rsp.BytesToHex(data))
}

func (s *Session) writeMem(arg string) []byte {
	header, hexData, ok := strings.Cut(arg, ":")
	if !ok {
		return errReply
	}
	addrStr, _, ok := strings.Cut(header, ",")
	if !ok {
		return errReply
	}
	addr, err := parseHexU32(addrStr)
	if err != nil {
		return errReply
	}
	data, err := rsp.HexToBytes(hexData)
	if err != nil {
		return errReply
	}
	length := uint32(len(data))
	if length == 0 {
		return okReply
	}

	prefixLen := uint32(0)
	if addr%4 != 0 {
		prefixLen = 4 - addr%4
		if prefixLen > length {
			prefixLen = length
		}
		if st := s.p.WriteMem8(addr, data[:prefixLen]); st != probe.StatusOK {
			return errReply
		}
	}

	midAddr := addr + prefixLen
	midLen := (length - prefixLen) - (length-prefixLen)%4
	if midLen > 0 {
		if st := s.p.WriteMem32(midAddr, data[prefixLen:prefixLen+midLen]); st != probe.StatusOK {
			return errReply
		}
	}

	tailStart := prefixLen + midLen
	if tailStart < length {
		if st := s.p.WriteMem8(midAddr+midLen, data[tailStart:]); st != probe.StatusOK {
			return errReply
		}
	}

	s.ct.MarkModified()
	return okReply
}

func (s *Session) singleStep() ([]byte, bool) {
	if err := s.ct.Sync(); err != nil {
		return errReply, false
	}
	if st := s.p.Step(); st != probe.StatusOK {
		// A failed step is a session-fatal, process-recoverable condition
		// (spec §7): reply E00 and tear the connection down.
		return errReply, true
	}
	return []byte("S05"), false
}

func (s *Session) setBreakWatch(arg string) []byte {
	parts := strings.Split(arg, ",")
	if len(parts) != 3 {
		return []byte("")
	}
	typ, err := strconv.Atoi(parts[0])
	if err != nil {
		return []byte("")
	}
	addr, err := parseHexU32(parts[1])
	if err != nil {
		return errReply
	}
	length, err := parseHexU32(parts[2])
	if err != nil {
		return errReply
	}

	switch typ {
	case 1:
		if _, err := s.bm.Insert(addr); err != nil {
			return errReply
		}
		return okReply
	case 2, 3, 4:
		fun := watchFun(typ)
		if _, err := s.wm.Add(fun, addr, length); err != nil {
			return errReply
		}
		return okReply
	default:
		return []byte("") // Z0 software breakpoints are not implemented
	}
}

func (s *Session) clearBreakWatch(arg string) []byte {
	parts := strings.Split(arg, ",")
	if len(parts) != 3 {
		return []byte("")
	}
	typ, err := strconv.Atoi(parts[0])
	if err != nil {
		return []byte("")
	}
	addr, err := parseHexU32(parts[1])
	if err != nil {
		return errReply
	}

	switch typ {
	case 1:
		if err := s.bm.Remove(addr); err != nil {
			return errReply
		}
		return okReply
	case 2, 3, 4:
		if err := s.wm.Remove(addr); err != nil {
			return errReply
		}
		return okReply
	default:
		return []byte("")
	}
}

func watchFun(typ int) armdbg.Fun {
	switch typ {
	case 2:
		return armdbg.WriteFn
	case 3:
		return armdbg.ReadFn
	default:
		return armdbg.AccessFn
	}
}

func (s *Session) restart() []byte {
	if st := s.p.Reset(probe.ResetSoftHalt); st != probe.StatusOK {
		return errReply
	}
	if err := s.ct.Init(); err != nil {
		return errReply
	}
	if err := s.bm.Init(s.ct.Present); err != nil {
		return errReply
	}
	if err := s.wm.Init(); err != nil {
		return errReply
	}
	return okReply
}

// kill closes and reopens the probe with no reply, per spec §4.8. If the
// probe cannot be reacquired, that is process-fatal (spec §7): cleanup and
// terminate the process.
func (s *Session) kill() ([]byte, bool) {
	s.p.ExitDebugMode()
	s.p.Close()
	if err := s.reattach(); err != nil {
		fatalProbeLoss(err)
	}
	return nil, false
}

func (s *Session) query(arg string) []byte {
	switch {
	case arg == "Supported" || strings.HasPrefix(arg, "Supported:"):
		return []byte("PacketSize=3fff;qXfer:memory-map:read+;qXfer:features:read+")

	case strings.HasPrefix(arg, "Xfer:"):
		return s.qXfer(arg[len("Xfer:"):])

	case strings.HasPrefix(arg, "Rcmd,"):
		return s.qRcmd(arg[len("Rcmd,"):])

	default:
		return []byte("")
	}
}

func (s *Session) qXfer(arg string) []byte {
	// "object:operation:annex:offset,length", e.g.
	// "features:read:target.xml:0,3fff" or "memory-map:read::0,3fff".
	parts := strings.SplitN(arg, ":", 4)
	if len(parts) != 4 {
		return []byte("")
	}
	object, offsetLen := parts[0], parts[3]

	offStr, lenStr, ok := strings.Cut(offsetLen, ",")
	if !ok {
		return []byte("")
	}
	offset, err := parseHexU32(offStr)
	if err != nil {
		return []byte("")
	}
	length, err := parseHexU32(lenStr)
	if err != nil {
		return []byte("")
	}

	var doc string
	switch object {
	case "features":
		doc = targetdesc.XML
	case "memory-map":
		if s.haveGeom {
			doc = chipdb.MemoryMapXML(s.geom)
		} else {
			doc = "<memory-map></memory-map>"
		}
	default:
		return []byte("")
	}

	if int(offset) >= len(doc) {
		return []byte("l")
	}
	end := int(offset) + int(length)
	last := false
	if end >= len(doc) {
		end = len(doc)
		last = true
	}
	chunk := doc[offset:end]
	if last {
		return []byte("l" + chunk)
	}
	return []byte("m" + chunk)
}

func (s *Session) qRcmd(hexCmd string) []byte {
	raw, err := rsp.HexToBytes(hexCmd)
	if err != nil {
		return errReply
	}
	cmd := string(raw)

	switch {
	case cmd == "resume":
		if st := s.p.Run(); st != probe.StatusOK {
			return errReply
		}
		return okReply
	case cmd == "halt":
		if st := s.p.Halt(); st != probe.StatusOK {
			return errReply
		}
		return okReply
	case cmd == "reset":
		return s.restart()
	case cmd == "jtag_reset":
		if st := s.p.Reset(probe.ResetHard); st != probe.StatusOK {
			return errReply
		}
		return okReply
	case strings.HasPrefix(cmd, "semihosting"):
		arg := strings.TrimSpace(strings.TrimPrefix(cmd, "semihosting"))
		switch arg {
		case "enable", "1", "on":
			s.cfg.Semihosting = true
			return okReply
		case "disable", "0", "off":
			s.cfg.Semihosting = false
			return okReply
		default:
			return errReply
		}
	default:
		return errReply
	}
}

func (s *Session) verb(arg string) []byte {
	switch {
	case strings.HasPrefix(arg, "FlashErase:"):
		return s.vFlashErase(arg[len("FlashErase:"):])
	case strings.HasPrefix(arg, "FlashWrite:"):
		return s.vFlashWrite(arg[len("FlashWrite:"):])
	case arg == "FlashDone":
		if err := s.flash.Done(); err != nil {
			return errReply
		}
		return okReply
	case arg == "Kill" || strings.HasPrefix(arg, "Kill;"):
		s.attached = false
		return okReply
	default:
		return []byte("")
	}
}

func (s *Session) vFlashErase(arg string) []byte {
	addrStr, lenStr, ok := strings.Cut(arg, ",")
	if !ok {
		return errReply
	}
	addr, err := parseHexU32(addrStr)
	if err != nil {
		return errReply
	}
	length, err := parseHexU32(lenStr)
	if err != nil {
		return errReply
	}
	if err := s.flash.Erase(addr, length); err != nil {
		return []byte("E08")
	}
	return okReply
}

func (s *Session) vFlashWrite(arg string) []byte {
	addrStr, data, ok := strings.Cut(arg, ":")
	if !ok {
		return errReply
	}
	addr, err := parseHexU32(addrStr)
	if err != nil {
		return errReply
	}
	if err := s.flash.Write(addr, []byte(data)); err != nil {
		return []byte("E08")
	}
	return okReply
}
