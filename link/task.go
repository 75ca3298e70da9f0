package link

import (
	"encoding/binary"
	"fmt"

	"github.com/stratify-tools/link/transport"
)

const taskNameSize = 24

// TaskInfo is a per-slot snapshot of one target task or thread.
type TaskInfo struct {
	TID         int
	PID         int
	Name        string
	MemLoc      uint32
	MemSize     uint32
	MallocLoc   uint32
	StackPtr    uint32
	Timer       uint64
	Priority    byte
	PrioCeiling byte
	IsThread    bool
	IsActive    bool
	IsEnabled   bool
}

// StackSize is the derived stack usage: mem_loc + mem_size - stack_ptr.
func (t TaskInfo) StackSize() uint32 { return t.MemLoc + t.MemSize - t.StackPtr }

// HeapSize is the derived heap usage: zero for a pure thread (it shares its
// parent process's heap), otherwise malloc_loc - mem_loc.
func (t TaskInfo) HeapSize() uint32 {
	if t.IsThread {
		return 0
	}
	return t.MallocLoc - t.MemLoc
}

// MemoryUtilizationPct is (stack_size+heap_size)*100/mem_size.
func (t TaskInfo) MemoryUtilizationPct() uint32 {
	if t.MemSize == 0 {
		return 0
	}
	return (t.StackSize() + t.HeapSize()) * 100 / t.MemSize
}

func decodeTaskInfo(tid int, data []byte) (TaskInfo, error) {
	const fixedSize = 4 + taskNameSize + 4 + 4 + 4 + 4 + 8 + 1 + 1 + 1
	if len(data) < fixedSize {
		return TaskInfo{}, fmt.Errorf("short task_info response: %d bytes", len(data))
	}
	off := 0
	pid := int(binary.LittleEndian.Uint32(data[off : off+4]))
	off += 4
	name := cString(data[off : off+taskNameSize])
	off += taskNameSize
	memLoc := binary.LittleEndian.Uint32(data[off : off+4])
	off += 4
	memSize := binary.LittleEndian.Uint32(data[off : off+4])
	off += 4
	mallocLoc := binary.LittleEndian.Uint32(data[off : off+4])
	off += 4
	stackPtr := binary.LittleEndian.Uint32(data[off : off+4])
	off += 4
	timer := binary.LittleEndian.Uint64(data[off : off+8])
	off += 8
	prio := data[off]
	off++
	prioCeiling := data[off]
	off++
	flags := data[off]

	return TaskInfo{
		TID:         tid,
		PID:         pid,
		Name:        name,
		MemLoc:      memLoc,
		MemSize:     memSize,
		MallocLoc:   mallocLoc,
		StackPtr:    stackPtr,
		Timer:       timer,
		Priority:    prio,
		PrioCeiling: prioCeiling,
		IsThread:    flags&0x1 != 0,
		IsActive:    flags&0x2 != 0,
		IsEnabled:   flags&0x4 != 0,
	}, nil
}

// GetTaskInfo issues one ioctl for id and decodes the snapshot.
func (s *Session) GetTaskInfo(id int) (TaskInfo, error) {
	const op = "task_get_info"
	if err := s.guard(op); err != nil {
		return TaskInfo{}, err
	}
	if s.client == nil {
		return TaskInfo{}, s.fail(op, KindNotConnected, nil)
	}

	req := make([]byte, 4)
	binary.LittleEndian.PutUint32(req, uint32(id))
	data, err := s.client.Call(transport.OpTaskGetInfo, req)
	if err != nil {
		return TaskInfo{}, err // out-of-range enumeration terminator handled by caller
	}
	info, err := decodeTaskInfo(id, data)
	if err != nil {
		return TaskInfo{}, s.fail(op, KindTransport, err)
	}
	return info, nil
}

// EnumerateTasks iterates ids from 0 until GetTaskInfo returns a Device
// error (treated as "out of range" and suppressed, not surfaced),
// collecting only enabled entries.
func (s *Session) EnumerateTasks() ([]TaskInfo, error) {
	const op = "enumerate_tasks"
	if err := s.guard(op); err != nil {
		return nil, err
	}

	var tasks []TaskInfo
	for id := 0; ; id++ {
		info, err := s.GetTaskInfo(id)
		if err != nil {
			if transport.IsDeviceError(err) {
				break
			}
			return tasks, err
		}
		if info.IsEnabled {
			tasks = append(tasks, info)
		}
	}
	return tasks, nil
}

// GetPid returns the pid of the first task matching name, scanning linearly
// and exiting early on the first match.
func (s *Session) GetPid(name string) (int, bool, error) {
	tasks, err := s.EnumerateTasks()
	if err != nil {
		return 0, false, err
	}
	for _, t := range tasks {
		if t.Name == name {
			return t.PID, true, nil
		}
	}
	return 0, false, nil
}

// IsPidRunning reports whether any task has the given pid.
func (s *Session) IsPidRunning(pid int) (bool, error) {
	tasks, err := s.EnumerateTasks()
	if err != nil {
		return false, err
	}
	for _, t := range tasks {
		if t.PID == pid {
			return true, nil
		}
	}
	return false, nil
}

// KillPid sends the kill opcode for pid with the given signal number.
func (s *Session) KillPid(pid int, sig int) error {
	const op = "kill_pid"
	if err := s.guard(op); err != nil {
		return err
	}
	if s.client == nil {
		return s.fail(op, KindNotConnected, nil)
	}
	req := make([]byte, 8)
	binary.LittleEndian.PutUint32(req[0:4], uint32(pid))
	binary.LittleEndian.PutUint32(req[4:8], uint32(sig))
	if _, err := s.client.Call(transport.OpKillPid, req); err != nil {
		return s.fail(op, classifyTransportErr(err), err)
	}
	return nil
}
