package session

import (
	"fmt"
	"os"
	"time"

	"github.com/stlinkgdb/stlinkgdb/pkg/armdbg"
	"github.com/stlinkgdb/stlinkgdb/pkg/probe"
)

// pollInterval is how often the continue loop polls the target for a halt
// while also checking for a client interrupt, per spec's state machine.
const pollInterval = 100 * time.Millisecond

// continueState names the states of the continue/semihosting loop (spec
// "State machine of the continue loop (C7 x C8)").
type continueState int

const (
	stateRunning continueState = iota
	statePolledHalt
	stateSemihostServicing
	stateInterruptRequested
	stateReturned
)

// continueLoop resumes the target and polls until it halts (ordinary
// breakpoint/watchpoint, a client interrupt, or exhaustion of the
// semihosting loop), returning "S05" in every case per spec §4.8.
func (s *Session) continueLoop() []byte {
	if err := s.ct.Sync(); err != nil {
		return errReply
	}
	if st := s.p.Run(); st != probe.StatusOK {
		return errReply
	}

	state := stateRunning
	for {
		switch state {
		case stateRunning:
			if interrupted, _ := s.codec.PeekInterrupt(); interrupted {
				state = stateInterruptRequested
				continue
			}
			halted, st := s.p.TargetHalted()
			if st != probe.StatusOK {
				return errReply
			}
			if halted {
				state = statePolledHalt
				continue
			}
			time.Sleep(pollInterval)

		case statePolledHalt:
			if s.atSemihostingTrap() {
				state = stateSemihostServicing
				continue
			}
			state = stateReturned

		case stateSemihostServicing:
			if err := s.serviceSemihost(); err != nil {
				return errReply
			}
			if s.semi.Exited {
				state = stateReturned
				continue
			}
			if err := s.ct.Sync(); err != nil {
				return errReply
			}
			if st := s.p.Run(); st != probe.StatusOK {
				return errReply
			}
			state = stateRunning

		case stateInterruptRequested:
			if st := s.p.Halt(); st != probe.StatusOK {
				return errReply
			}
			state = stateReturned

		case stateReturned:
			return []byte("S05")
		}
	}
}

// atSemihostingTrap reports whether the halted PC sits on the BKPT #0xAB
// semihosting magic, semihosting servicing is currently enabled, and the
// halt isn't actually a user breakpoint GDB set on that same half-word
// (spec §4.7).
func (s *Session) atSemihostingTrap() bool {
	if !s.cfg.Semihosting {
		return false
	}
	pc, st := s.p.ReadReg(armdbg.RegPC)
	if st != probe.StatusOK {
		return false
	}
	if s.bm.Contains(pc) {
		return false
	}
	trap, err := s.semi.IsTrap(pc)
	if err != nil {
		return false
	}
	return trap
}

func (s *Session) serviceSemihost() error {
	pc, st := s.p.ReadReg(armdbg.RegPC)
	if st != probe.StatusOK {
		return fmt.Errorf("session: failed to read PC for semihosting: status %d", st)
	}
	return s.semi.Service(pc)
}

// fatalProbeLoss reports cause on stderr and exits(1). Used when the probe
// cannot be reacquired after a kill-driven reopen. It does no probe cleanup
// of its own: the kill path has already exited debug mode and closed the
// probe, and the target is not returned to free-run.
func fatalProbeLoss(cause error) {
	fmt.Fprintln(os.Stderr, "stlinkgdb: probe lost, cannot continue:", cause)
	os.Exit(1)
}
