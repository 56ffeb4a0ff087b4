// Package session implements the Session Engine (C8): the accept loop,
// packet dispatch, and cooperatively-blocking request/reply cycle that
// bridges a single GDB client to the probe and target for the duration of
// one connection. See spec §4.8 and §5.
package session

import (
	"fmt"
	"net"
	"os"

	"github.com/stlinkgdb/stlinkgdb/pkg/armdbg"
	"github.com/stlinkgdb/stlinkgdb/pkg/chipdb"
	"github.com/stlinkgdb/stlinkgdb/pkg/config"
	"github.com/stlinkgdb/stlinkgdb/pkg/flashstage"
	"github.com/stlinkgdb/stlinkgdb/pkg/probe"
	"github.com/stlinkgdb/stlinkgdb/pkg/rsp"
	"github.com/stlinkgdb/stlinkgdb/pkg/semihost"
)

// Session owns every piece of state a single GDB connection touches:
// breakpoints, watchpoints, the cache descriptor, staged flash blocks, and
// the extended-mode flag. None of it is shared across connections — a new
// Session is built for each accept.
type Session struct {
	p   probe.Facade
	cfg *config.Config

	codec *rsp.Codec

	bm    *armdbg.BreakpointManager
	wm    *armdbg.WatchpointManager
	ct    *armdbg.CacheTracker
	flash *flashstage.Engine
	semi  *semihost.Dispatcher

	geom     chipdb.Geometry
	haveGeom bool

	attached bool
	extended bool
}

// New constructs a Session bound to p and cfg. Call Run once per accepted
// connection.
func New(p probe.Facade, cfg *config.Config) *Session {
	return &Session{
		p:     p,
		cfg:   cfg,
		bm:    armdbg.NewBreakpointManager(p),
		wm:    armdbg.NewWatchpointManager(p),
		ct:    armdbg.NewCacheTracker(p),
		flash: flashstage.New(p),
		semi:  semihost.New(p),
	}
}

// Serve accepts connections on ln and runs one Session per client. When
// cfg.Multi is false it returns after the first client disconnects;
// otherwise it keeps accepting until ln is closed or a fatal probe error
// occurs, per spec §6's "accepts one client at a time" surface.
func Serve(ln net.Listener, p probe.Facade, cfg *config.Config) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return fmt.Errorf("session: accept failed: %w", err)
		}

		sess := New(p, cfg)
		err = sess.Run(conn)
		conn.Close()
		if err != nil {
			fmt.Fprintln(os.Stderr, "stlinkgdb:", err)
		}

		if !cfg.Multi {
			return nil
		}
	}
}

// connectMode maps the configured string to a probe.ConnectMode.
func connectMode(s string) probe.ConnectMode {
	switch s {
	case "hotplug":
		return probe.ConnectHotPlug
	case "underreset":
		return probe.ConnectUnderReset
	default:
		return probe.ConnectNormal
	}
}

// Run drives the full accept -> loop -> close cycle for one client
// connection: connect the probe, force halt, (re)initialize C3/C4/C5,
// then dispatch packets until the client disconnects or sends a
// process-fatal condition.
func (s *Session) Run(conn net.Conn) error {
	s.codec = rsp.NewCodec(conn)

	if err := s.reattach(); err != nil {
		return err
	}
	defer s.p.Close()

	for {
		payload, err := s.codec.ReadPacket()
		if err == rsp.ErrBreak {
			s.p.Halt()
			continue
		}
		if err != nil {
			return nil // disconnect or malformed stream: clean teardown
		}

		reply, terminate := s.dispatch(payload)
		if reply != nil {
			if err := s.codec.WritePacket(reply); err != nil {
				return fmt.Errorf("session: write reply: %w", err)
			}
		}
		if terminate {
			return nil
		}
	}
}

// reattach connects the probe (per the configured connect mode), forces a
// halt, and (re)initializes the breakpoint, watchpoint, and cache
// managers — the resynchronization spec §7 requires after any reset or
// reconnect, since their hardware state does not survive one.
func (s *Session) reattach() error {
	if st := s.p.Connect(connectMode(s.cfg.ConnectMode)); st != probe.StatusOK {
		return fmt.Errorf("session: probe connect failed: status %d", st)
	}
	s.attached = true

	if st := s.p.Halt(); st != probe.StatusOK {
		return fmt.Errorf("session: initial halt failed: status %d", st)
	}

	if err := s.ct.Init(); err != nil {
		return fmt.Errorf("session: cache tracker init: %w", err)
	}
	if err := s.bm.Init(s.ct.Present); err != nil {
		return fmt.Errorf("session: breakpoint manager init: %w", err)
	}
	if err := s.wm.Init(); err != nil {
		return fmt.Errorf("session: watchpoint manager init: %w", err)
	}

	if g, ok := chipdb.Lookup(s.p.ChipID()); ok {
		s.geom = g
		s.haveGeom = true
	} else {
		s.haveGeom = false
	}

	return nil
}
