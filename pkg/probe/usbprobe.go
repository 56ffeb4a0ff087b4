package probe

import (
	"fmt"

	"github.com/google/gousb"
	"github.com/stlinkgdb/stlinkgdb/pkg/chipdb"
)

// Known ST-Link USB vendor/product identifiers. The exact vendor command
// encoding spoken over the bulk endpoints is the probe's proprietary wire
// format, out of scope for this core (spec §1); USBProbe implements a
// minimal request/reply framing over gousb's bulk endpoint transfers
// so the facade has a concrete USB-attached backend to exercise.
const (
	vidSTLink = gousb.ID(0x0483)

	pidSTLinkV2   = gousb.ID(0x3748)
	pidSTLinkV2_1 = gousb.ID(0x374b)
	pidSTLinkV3   = gousb.ID(0x374e)

	epCommandOut = 0x02
	epCommandIn  = 0x81
)

// USBProbe talks to a directly-attached ST-Link-class probe over libusb.
type USBProbe struct {
	Serial string

	ctx    *gousb.Context
	dev    *gousb.Device
	iface  *gousb.Interface
	ifaceC func()
	out    *gousb.OutEndpoint
	in     *gousb.InEndpoint

	geom Geometry
}

// Geometry is the part-specific constants USBProbe exposes through the
// read-only Facade accessors, populated from pkg/chipdb after ChipID is
// read back from the target.
type Geometry struct {
	ChipID, CoreID                   uint32
	FlashBytes, SRAMBytes            uint32
	SysBase, SysSize                 uint32
	ErasedByte                       byte
	FlashPageSize                    func(addr uint32) uint32
}

// SetGeometry installs the chip geometry discovered via pkg/chipdb after
// connect-time chip identification.
func (p *USBProbe) SetGeometry(g Geometry) { p.geom = g }

// OpenFirst opens the first ST-Link-class device found, optionally
// filtered by p.Serial, which matches either the device's USB serial number
// (--serial) or its "bus:addr" location (STLINK_DEVICE).
func (p *USBProbe) OpenFirst() error {
	ctx := gousb.NewContext()
	devs, err := ctx.OpenDevices(func(dd *gousb.DeviceDesc) bool {
		if dd.Vendor != vidSTLink {
			return false
		}
		return dd.Product == pidSTLinkV2 || dd.Product == pidSTLinkV2_1 || dd.Product == pidSTLinkV3
	})
	if err != nil && len(devs) == 0 {
		ctx.Close()
		return fmt.Errorf("failed to enumerate USB devices: %w", err)
	}

	var chosen *gousb.Device
	for _, dev := range devs {
		if chosen != nil {
			dev.Close()
			continue
		}
		sn, _ := dev.SerialNumber()
		loc := fmt.Sprintf("%d:%d", dev.Desc.Bus, dev.Desc.Address)
		if p.Serial == "" || sn == p.Serial || loc == p.Serial {
			chosen = dev
		} else {
			dev.Close()
		}
	}
	if chosen == nil {
		ctx.Close()
		return fmt.Errorf("no ST-Link probe found (serial filter %q)", p.Serial)
	}

	iface, done, err := chosen.DefaultInterface()
	if err != nil {
		chosen.Close()
		ctx.Close()
		return fmt.Errorf("failed to claim USB interface: %w", err)
	}

	out, err := iface.OutEndpoint(epCommandOut)
	if err != nil {
		done()
		chosen.Close()
		ctx.Close()
		return fmt.Errorf("failed to open command OUT endpoint: %w", err)
	}
	in, err := iface.InEndpoint(epCommandIn)
	if err != nil {
		done()
		chosen.Close()
		ctx.Close()
		return fmt.Errorf("failed to open command IN endpoint: %w", err)
	}

	p.ctx, p.dev, p.iface, p.ifaceC, p.out, p.in = ctx, chosen, iface, done, out, in
	return nil
}

// request frames a minimal op/address/length/payload command and returns
// the probe's reply payload.
func (p *USBProbe) request(op byte, addr uint32, length uint16, payload []byte) ([]byte, error) {
	if p.out == nil {
		return nil, fmt.Errorf("USB probe not open")
	}
	hdr := []byte{
		op,
		byte(addr >> 24), byte(addr >> 16), byte(addr >> 8), byte(addr),
		byte(length >> 8), byte(length),
	}
	packet := append(hdr, payload...)
	if _, err := p.out.Write(packet); err != nil {
		return nil, fmt.Errorf("USB write failed: %w", err)
	}
	if length == 0 {
		return nil, nil
	}
	buf := make([]byte, length)
	n, err := p.in.Read(buf)
	if err != nil {
		return nil, fmt.Errorf("USB read failed: %w", err)
	}
	return buf[:n], nil
}

const (
	opConnect      = 0xF1
	opReadDebug32  = 0xF2
	opWriteDebug32 = 0xF3
	opReadMem      = 0xF4
	opWriteMem     = 0xF5
	opHalt         = 0xF6
	opStep         = 0xF7
	opRun          = 0xF8
	opStatus       = 0xF9
	opReset        = 0xFA
	opErasePage    = 0xFB
	opLoaderStart  = 0xFC
	opLoaderWrite  = 0xFD
	opLoaderStop   = 0xFE
	opExitDebug    = 0xFF
)

// idcodeAddr is DBGMCU_IDCODE: device ID in the low 12 bits, revision in
// the high 16. Connect uses the whole register value as the chip_id key
// for pkg/chipdb.
const idcodeAddr = 0xE0042000

func (p *USBProbe) Connect(mode ConnectMode) Status {
	if _, err := p.request(opConnect, uint32(mode), 0, nil); err != nil {
		return statusOf(err)
	}
	if idcode, st := p.ReadDebug32(idcodeAddr); st == StatusOK {
		p.geom.ChipID = idcode
		if g, ok := chipdb.Lookup(p.geom.ChipID); ok {
			p.SetGeometry(Geometry{
				ChipID:     p.geom.ChipID,
				CoreID:     p.geom.CoreID,
				FlashBytes: g.FlashSize,
				SRAMBytes:  g.SRAMSize,
				SysBase:    g.SysBase,
				SysSize:    g.SysSize,
				ErasedByte: 0xFF,
				FlashPageSize: func(addr uint32) uint32 {
					return g.PageSizeAt(addr)
				},
			})
		}
	}
	return StatusOK
}

func (p *USBProbe) Close() Status {
	if p.ifaceC != nil {
		p.ifaceC()
	}
	if p.dev != nil {
		p.dev.Close()
	}
	if p.ctx != nil {
		p.ctx.Close()
	}
	return StatusOK
}

func statusOf(err error) Status {
	if err != nil {
		return Status(-1)
	}
	return StatusOK
}

func (p *USBProbe) ReadDebug32(addr uint32) (uint32, Status) {
	buf, err := p.request(opReadDebug32, addr, 4, nil)
	if err != nil || len(buf) != 4 {
		return 0, Status(-1)
	}
	return be32(buf), StatusOK
}

func (p *USBProbe) WriteDebug32(addr uint32, v uint32) Status {
	_, err := p.request(opWriteDebug32, addr, 0, be32bytes(v))
	return statusOf(err)
}

func (p *USBProbe) ReadMem32(addr uint32, length uint32) ([]byte, Status) {
	buf, err := p.request(opReadMem, addr, uint16(length), nil)
	if err != nil {
		return nil, Status(-1)
	}
	return buf, StatusOK
}

func (p *USBProbe) WriteMem32(addr uint32, buf []byte) Status {
	_, err := p.request(opWriteMem, addr, 0, buf)
	return statusOf(err)
}

func (p *USBProbe) WriteMem8(addr uint32, buf []byte) Status {
	return p.WriteMem32(addr, buf)
}

func (p *USBProbe) ReadAllRegs() (Regs, Status) {
	var r Regs
	for i := 0; i < 16; i++ {
		v, st := p.ReadReg(i)
		if st != StatusOK {
			return r, st
		}
		r.R[i] = v
	}
	return r, StatusOK
}

func (p *USBProbe) ReadReg(id int) (uint32, Status) {
	buf, err := p.request(0xA0, uint32(id), 4, nil)
	if err != nil || len(buf) != 4 {
		return 0, Status(-1)
	}
	return be32(buf), StatusOK
}

func (p *USBProbe) WriteReg(id int, v uint32) Status {
	_, err := p.request(0xA1, uint32(id), 0, be32bytes(v))
	return statusOf(err)
}

func (p *USBProbe) ReadUnsupportedReg(id int) (uint32, Status)  { return 0, Status(-1) }
func (p *USBProbe) WriteUnsupportedReg(id int, v uint32) Status { return Status(-1) }

func (p *USBProbe) Halt() Status { _, err := p.request(opHalt, 0, 0, nil); return statusOf(err) }
func (p *USBProbe) Step() Status { _, err := p.request(opStep, 0, 0, nil); return statusOf(err) }
func (p *USBProbe) Run() Status  { _, err := p.request(opRun, 0, 0, nil); return statusOf(err) }

func (p *USBProbe) TargetHalted() (bool, Status) {
	buf, err := p.request(opStatus, 0, 1, nil)
	if err != nil || len(buf) != 1 {
		return false, Status(-1)
	}
	return buf[0] != 0, StatusOK
}

func (p *USBProbe) Reset(mode ResetMode) Status {
	_, err := p.request(opReset, uint32(mode), 0, nil)
	return statusOf(err)
}

func (p *USBProbe) ErasePage(addr uint32) Status {
	_, err := p.request(opErasePage, addr, 0, nil)
	return statusOf(err)
}

func (p *USBProbe) FlashLoaderStart() Status {
	_, err := p.request(opLoaderStart, 0, 0, nil)
	return statusOf(err)
}

func (p *USBProbe) FlashLoaderWrite(addr uint32, data []byte) Status {
	_, err := p.request(opLoaderWrite, addr, 0, data)
	return statusOf(err)
}

func (p *USBProbe) FlashLoaderStop() Status {
	_, err := p.request(opLoaderStop, 0, 0, nil)
	return statusOf(err)
}

func (p *USBProbe) ExitDebugMode() Status {
	_, err := p.request(opExitDebug, 0, 0, nil)
	return statusOf(err)
}

func (p *USBProbe) ChipID() uint32                       { return p.geom.ChipID }
func (p *USBProbe) CoreID() uint32                       { return p.geom.CoreID }
func (p *USBProbe) FlashSize() uint32                    { return p.geom.FlashBytes }
func (p *USBProbe) FlashPageSize(addr uint32) uint32 {
	if p.geom.FlashPageSize == nil {
		return 0
	}
	return p.geom.FlashPageSize(addr)
}
func (p *USBProbe) SRAMSize() uint32    { return p.geom.SRAMBytes }
func (p *USBProbe) SysBase() uint32     { return p.geom.SysBase }
func (p *USBProbe) SysSize() uint32     { return p.geom.SysSize }
func (p *USBProbe) ErasedPattern() byte { return p.geom.ErasedByte }

func be32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

func be32bytes(v uint32) []byte {
	return []byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)}
}

var _ Facade = (*USBProbe)(nil)
