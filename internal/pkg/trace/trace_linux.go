//go:build linux && amd64

package trace

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// gracePeriod is the bounded timeout spec.md §4.2/§5 gives a traced
// process group to exit on SIGTERM/SIGINT before SIGKILL is issued.
const gracePeriod = 10 * time.Second

// monitoredSyscalls is the path-accepting subset of syscalls spec.md
// §4.2 names. The int is which argument register (0-indexed) carries the
// path, per the x86_64 syscall ABI (Rdi, Rsi, Rdx, Rcx, R8, R9 in order).
var monitoredSyscalls = map[uint64]int{
	unix.SYS_OPEN:       0, // open(path, flags, mode)
	unix.SYS_OPENAT:     1, // openat(dirfd, path, flags, mode)
	unix.SYS_EXECVE:     0, // execve(path, argv, envp)
	unix.SYS_STAT:       0, // stat(path, buf)
	unix.SYS_LSTAT:      0, // lstat(path, buf)
	unix.SYS_NEWFSTATAT: 1, // newfstatat(dirfd, path, buf, flags)
	unix.SYS_ACCESS:     0, // access(path, mode)
	unix.SYS_READLINK:   0, // readlink(path, buf, bufsiz)
	unix.SYS_READLINKAT: 1, // readlinkat(dirfd, path, buf, bufsiz)
}

// tracee tracks per-pid syscall-enter/exit alternation state, since every
// PTRACE_SYSCALL stop toggles between the enter and exit of the same
// syscall.
type tracee struct {
	pendingSyscall uint64
	pendingPath    string
	atEntry        bool
}

func trace(ctx context.Context, argv []string, env []string) (Result, error) {
	if len(argv) == 0 {
		return Result{}, fmt.Errorf("trace: empty command")
	}

	bin, err := exec.LookPath(argv[0])
	if err != nil {
		return Result{}, fmt.Errorf("trace: %w", err)
	}

	cmd := exec.Command(bin, argv[1:]...)
	cmd.Env = env
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Stdin = os.Stdin
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Ptrace:    true,
		Setpgid:   true,
		Pdeathsig: syscall.SIGKILL,
	}

	if err := cmd.Start(); err != nil {
		return Result{}, classifyStartErr(err)
	}
	pid := cmd.Process.Pid

	var ws unix.WaitStatus
	if _, err := unix.Wait4(pid, &ws, 0, nil); err != nil {
		return Result{}, fmt.Errorf("trace: initial wait4: %w", err)
	}

	_ = unix.PtraceSetOptions(pid, unix.PTRACE_O_TRACECLONE|unix.PTRACE_O_TRACEFORK|
		unix.PTRACE_O_TRACEVFORK|unix.PTRACE_O_TRACEEXEC|unix.PTRACE_O_EXITKILL)

	done := make(chan result, 1)
	go runLoop(pid, done)

	select {
	case r := <-done:
		return r.res, r.err
	case <-ctx.Done():
		pgid, _ := unix.Getpgid(pid)
		_ = unix.Kill(-pgid, syscall.SIGTERM)
		select {
		case r := <-done:
			return r.res, r.err
		case <-time.After(gracePeriod):
			_ = unix.Kill(-pgid, syscall.SIGKILL)
			r := <-done
			return r.res, r.err
		}
	}
}

func classifyStartErr(err error) error {
	if os.IsPermission(err) {
		return &ErrPtraceUnavailable{Cause: err}
	}
	return fmt.Errorf("trace: starting child: %w", err)
}

type result struct {
	res Result
	err error
}

func runLoop(initialPid int, done chan<- result) {
	tracees := map[int]*tracee{initialPid: {}}
	var observed []string
	exitStatus := 0

	resume := func(pid int) {
		_ = unix.PtraceSyscall(pid, 0)
	}
	resume(initialPid)

	for len(tracees) > 0 {
		var ws unix.WaitStatus
		pid, err := unix.Wait4(-1, &ws, 0, nil)
		if err != nil {
			break
		}

		if ws.Exited() || ws.Signaled() {
			if pid == initialPid {
				exitStatus = ws.ExitStatus()
			}
			delete(tracees, pid)
			continue
		}

		if !ws.Stopped() {
			continue
		}

		t, tracked := tracees[pid]
		if !tracked {
			t = &tracee{}
			tracees[pid] = t
		}

		sig := ws.StopSignal()
		if sig == unix.SIGTRAP && (ws.TrapCause() == unix.PTRACE_EVENT_CLONE ||
			ws.TrapCause() == unix.PTRACE_EVENT_FORK ||
			ws.TrapCause() == unix.PTRACE_EVENT_VFORK) {
			if childPid, err := unix.PtraceGetEventMsg(pid); err == nil {
				tracees[int(childPid)] = &tracee{}
			}
			resume(pid)
			continue
		}

		if sig != unix.SIGTRAP {
			// Deliver the signal transparently rather than swallowing it,
			// per spec.md §4.2's cooperative scheduling model.
			_ = unix.PtraceSyscall(pid, int(sig))
			continue
		}

		handleSyscallStop(pid, t, &observed)
		resume(pid)
	}

	done <- result{res: Result{ExitStatus: exitStatus, ObservedPaths: observed}}
}

func handleSyscallStop(pid int, t *tracee, observed *[]string) {
	var regs unix.PtraceRegs
	if err := unix.PtraceGetRegs(pid, &regs); err != nil {
		return
	}

	if !t.atEntry {
		nr := regs.Orig_rax
		if argIndex, ok := monitoredSyscalls[nr]; ok {
			addr := syscallArg(&regs, argIndex)
			if path := readCString(pid, addr); path != "" {
				t.pendingSyscall = nr
				t.pendingPath = path
				t.atEntry = true
			}
		}
		return
	}

	// Exit of a previously recorded syscall entry: Rax holds the
	// return value; negative means failure, per the x86_64 ABI.
	t.atEntry = false
	ret := int64(regs.Rax)
	if ret < 0 {
		return
	}

	// Duplicates are not removed at this layer; classify.Classify
	// aggregates repeats into a single entry downstream.
	resolved := canonicalize(pid, t.pendingPath)
	if resolved != "" {
		*observed = append(*observed, resolved)
	}
}

func syscallArg(regs *unix.PtraceRegs, index int) uint64 {
	switch index {
	case 0:
		return regs.Rdi
	case 1:
		return regs.Rsi
	case 2:
		return regs.Rdx
	case 3:
		return regs.R10
	case 4:
		return regs.R8
	default:
		return regs.R9
	}
}

// readCString reads a NUL-terminated string from the tracee's memory at
// addr via /proc/<pid>/mem.
func readCString(pid int, addr uint64) string {
	if addr == 0 {
		return ""
	}
	mem, err := os.OpenFile(fmt.Sprintf("/proc/%d/mem", pid), os.O_RDONLY, 0)
	if err != nil {
		return ""
	}
	defer mem.Close()

	const chunk = 256
	const maxLen = 4096
	buf := make([]byte, 0, chunk)
	offset := int64(addr)
	for len(buf) < maxLen {
		tmp := make([]byte, chunk)
		n, err := mem.ReadAt(tmp, offset+int64(len(buf)))
		if n == 0 && err != nil {
			break
		}
		tmp = tmp[:n]
		if idx := indexByte(tmp, 0); idx >= 0 {
			buf = append(buf, tmp[:idx]...)
			return string(buf)
		}
		buf = append(buf, tmp...)
	}
	return string(buf)
}

func indexByte(b []byte, c byte) int {
	for i, v := range b {
		if v == c {
			return i
		}
	}
	return -1
}

// canonicalize resolves a possibly-relative path against the tracee's
// cwd at the time of the call, then cleans it (spec.md §4.2).
func canonicalize(pid int, path string) string {
	if path == "" {
		return ""
	}
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	cwd, err := os.Readlink(fmt.Sprintf("/proc/%d/cwd", pid))
	if err != nil {
		return filepath.Clean(path)
	}
	return filepath.Clean(filepath.Join(cwd, path))
}
