package amd64

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/tinyrange/adder/internal/asm"
)

var (
	ErrNotCommitted     = errors.New("code buffer has uncommitted changes")
	ErrStaleHandle      = errors.New("stale entry point: code buffer was altered after it was acquired")
	ErrReleased         = errors.New("code buffer released")
	ErrOffsetOutOfRange = errors.New("offset outside emitted code")

	// ErrUnsupportedPlatform is returned when generated code cannot run on
	// the host. Encoding works everywhere.
	ErrUnsupportedPlatform = errors.New("native execution requires linux/amd64")
)

// AssemblyOffset is a byte offset into a code buffer.
type AssemblyOffset int

type bufferState int

const (
	stateWritable bufferState = iota
	stateCommitted
	stateReleased
)

const defaultCapacity = 4096

// Assembler owns a region of executable memory that machine code is appended
// to. Code becomes callable after Commit, through an entry point acquired
// from a locked View. Alter rewrites committed code in place and recommits
// it; every Func acquired before the alteration reports ErrStaleHandle from
// then on.
//
// An Assembler is safe for concurrent use. Calls into generated code hold a
// read lock, so the bytes cannot change underneath a running call.
type Assembler struct {
	mu         sync.RWMutex
	mem        []byte
	size       int
	state      bufferState
	generation uint64
	capacity   int
	log        *slog.Logger
}

// Option configures an Assembler.
type Option func(*Assembler) error

// WithCapacity sets the initial size of the executable region. It is rounded
// up to whole pages; the region grows on demand.
func WithCapacity(n int) Option {
	return func(a *Assembler) error {
		if n <= 0 {
			return fmt.Errorf("capacity must be positive, got %d", n)
		}
		a.capacity = n
		return nil
	}
}

// WithLogger sets the logger used for buffer lifecycle events.
func WithLogger(l *slog.Logger) Option {
	return func(a *Assembler) error {
		if l != nil {
			a.log = l
		}
		return nil
	}
}

// NewAssembler allocates an empty, writable code buffer. Allocation failures
// wrap asm.ErrAllocation.
func NewAssembler(opts ...Option) (*Assembler, error) {
	a := &Assembler{capacity: defaultCapacity, log: slog.Default()}
	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, err
		}
	}

	mem, err := mapRegion(roundToPage(a.capacity))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", asm.ErrAllocation, err)
	}
	a.mem = mem
	a.log.Debug("jit: allocated code buffer", "capacity", len(mem))
	return a, nil
}

// Offset returns the position the next Push writes to.
func (a *Assembler) Offset() AssemblyOffset {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return AssemblyOffset(a.size)
}

// Generation returns the number of alterations and remaps the buffer has
// gone through. Entry points are only valid for the generation they were
// acquired in.
func (a *Assembler) Generation() uint64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.generation
}

// Bytes returns a copy of the emitted code.
func (a *Assembler) Bytes() []byte {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.state == stateReleased {
		return nil
	}
	return append([]byte(nil), a.mem[:a.size]...)
}

// Push encodes instrs and appends them. A committed buffer is reopened for
// writing and must be committed again before any entry point is called.
func (a *Assembler) Push(instrs ...asm.Instr) error {
	code, err := EncodeAll(instrs)
	if err != nil {
		return err
	}
	return a.append(code)
}

// Ret appends a return instruction.
func (a *Assembler) Ret() error {
	return a.append(EncodeRet())
}

// MustPush is like Push but panics if an instruction cannot be encoded.
func (a *Assembler) MustPush(instrs ...asm.Instr) {
	if err := a.Push(instrs...); err != nil {
		panic(err)
	}
}

func (a *Assembler) append(code []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.openLocked(); err != nil {
		return err
	}
	if err := a.writeLocked(a.size, code); err != nil {
		return err
	}
	return nil
}

// Commit makes the emitted code executable and read-only.
func (a *Assembler) Commit() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.commitLocked()
}

func (a *Assembler) commitLocked() error {
	switch a.state {
	case stateReleased:
		return ErrReleased
	case stateCommitted:
		return nil
	}
	if err := protectRegion(a.mem, true); err != nil {
		return fmt.Errorf("commit code buffer: %w", err)
	}
	a.state = stateCommitted
	a.log.Debug("jit: committed code buffer", "size", a.size, "generation", a.generation)
	return nil
}

// openLocked makes the region writable again.
func (a *Assembler) openLocked() error {
	switch a.state {
	case stateReleased:
		return ErrReleased
	case stateWritable:
		return nil
	}
	if err := protectRegion(a.mem, false); err != nil {
		return fmt.Errorf("reopen code buffer: %w", err)
	}
	a.state = stateWritable
	return nil
}

// writeLocked copies code to pos, growing the region if needed. The region
// must be writable.
func (a *Assembler) writeLocked(pos int, code []byte) error {
	if pos < 0 || pos > a.size {
		return fmt.Errorf("%w: write at %d, size %d", ErrOffsetOutOfRange, pos, a.size)
	}
	end := pos + len(code)
	if end > len(a.mem) {
		if err := a.growLocked(end); err != nil {
			return err
		}
	}
	copy(a.mem[pos:end], code)
	if end > a.size {
		a.size = end
	}
	return nil
}

// growLocked moves the code to a larger region. Addresses change, so every
// outstanding entry point becomes stale.
func (a *Assembler) growLocked(need int) error {
	newCap := len(a.mem) * 2
	for newCap < need {
		newCap *= 2
	}
	mem, err := mapRegion(roundToPage(newCap))
	if err != nil {
		return fmt.Errorf("%w: grow to %d bytes: %w", asm.ErrAllocation, newCap, err)
	}
	copy(mem, a.mem[:a.size])
	if err := unmapRegion(a.mem); err != nil {
		a.log.Warn("jit: unmap old code buffer", "error", err)
	}
	a.mem = mem
	a.generation++
	a.log.Debug("jit: grew code buffer", "capacity", len(mem), "generation", a.generation)
	return nil
}

// Alter reopens the buffer, lets fn rewrite it through a Modifier and
// commits the result. The generation is bumped even if fn fails, since the
// bytes may already have changed.
func (a *Assembler) Alter(fn func(m *Modifier) error) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.openLocked(); err != nil {
		return err
	}

	m := &Modifier{a: a}
	ferr := fn(m)
	a.generation++

	if err := a.commitLocked(); err != nil {
		return err
	}
	if ferr != nil {
		return fmt.Errorf("alter code buffer: %w", ferr)
	}
	a.log.Debug("jit: altered code buffer", "size", a.size, "generation", a.generation)
	return nil
}

// Release unmaps the code buffer. Entry points acquired from it fail with
// ErrReleased afterwards.
func (a *Assembler) Release() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state == stateReleased {
		return nil
	}
	err := unmapRegion(a.mem)
	a.mem = nil
	a.size = 0
	a.state = stateReleased
	a.generation++
	a.log.Debug("jit: released code buffer")
	if err != nil {
		return fmt.Errorf("release code buffer: %w", err)
	}
	return nil
}

// Reader returns a handle for obtaining locked views of committed code.
func (a *Assembler) Reader() *Reader {
	return &Reader{a: a}
}

// Reader hands out read-locked views of an Assembler.
type Reader struct {
	a *Assembler
}

// Lock acquires the read lock and returns a view of the committed code. The
// caller must Unlock the view, and must not alter the buffer while holding
// it.
func (r *Reader) Lock() (*View, error) {
	a := r.a
	a.mu.RLock()
	switch a.state {
	case stateReleased:
		a.mu.RUnlock()
		return nil, ErrReleased
	case stateWritable:
		a.mu.RUnlock()
		return nil, ErrNotCommitted
	}
	return &View{a: a}, nil
}

// View is a read-locked, committed snapshot of a code buffer.
type View struct {
	a        *Assembler
	unlocked bool
}

// Len returns the number of committed code bytes.
func (v *View) Len() int {
	return v.a.size
}

// Ptr returns the address of offset within the committed code.
func (v *View) Ptr(offset AssemblyOffset) (uintptr, error) {
	if v.unlocked {
		return 0, fmt.Errorf("view used after unlock")
	}
	if offset < 0 || int(offset) >= v.a.size {
		return 0, fmt.Errorf("%w: %d, size %d", ErrOffsetOutOfRange, offset, v.a.size)
	}
	return regionAddr(v.a.mem, int(offset)), nil
}

// Entry returns a callable entry point at offset. The handle is bound to the
// current generation of the buffer.
func (v *View) Entry(offset AssemblyOffset) (Func, error) {
	entry, err := v.Ptr(offset)
	if err != nil {
		return Func{}, err
	}
	call, err := bindNative(entry)
	if err != nil {
		return Func{}, err
	}
	return Func{
		a:          v.a,
		offset:     offset,
		generation: v.a.generation,
		entry:      entry,
		call:       call,
	}, nil
}

// Unlock releases the read lock. It is safe to call more than once.
func (v *View) Unlock() {
	if v.unlocked {
		return
	}
	v.unlocked = true
	v.a.mu.RUnlock()
}

// Func is an entry point into a committed code buffer. It does not keep the
// buffer alive.
type Func struct {
	a          *Assembler
	offset     AssemblyOffset
	generation uint64
	entry      uintptr
	call       func() int64
}

var _ asm.NativeFunc = Func{}

// Call runs the code and returns RAX as a signed integer. It fails instead
// of executing when the buffer was altered, grown, reopened or released
// since the handle was acquired.
func (fn Func) Call() (int64, error) {
	if fn.a == nil || fn.call == nil {
		return 0, fmt.Errorf("amd64.Func: call on zero value")
	}

	a := fn.a
	a.mu.RLock()
	defer a.mu.RUnlock()

	switch {
	case a.state == stateReleased:
		return 0, ErrReleased
	case a.generation != fn.generation:
		return 0, fmt.Errorf("%w (acquired at generation %d, buffer at %d)", ErrStaleHandle, fn.generation, a.generation)
	case a.state != stateCommitted:
		return 0, ErrNotCommitted
	}
	return fn.call(), nil
}

// MustCall is like Call but panics on error.
func (fn Func) MustCall() int64 {
	v, err := fn.Call()
	if err != nil {
		panic(err)
	}
	return v
}

// Entry returns the address the handle jumps to.
func (fn Func) Entry() uintptr {
	return fn.entry
}

// Offset returns the offset of the entry point within its buffer.
func (fn Func) Offset() AssemblyOffset {
	return fn.offset
}

// Generation returns the buffer generation the handle was acquired in.
func (fn Func) Generation() uint64 {
	return fn.generation
}

// Modifier rewrites code inside Assembler.Alter. Writes start at offset 0
// unless moved with Goto, and may run past the current end of the code.
type Modifier struct {
	a   *Assembler
	pos int
}

// Goto moves the write position. offset may equal the current code size to
// append.
func (m *Modifier) Goto(offset AssemblyOffset) error {
	if offset < 0 || int(offset) > m.a.size {
		return fmt.Errorf("%w: %d, size %d", ErrOffsetOutOfRange, offset, m.a.size)
	}
	m.pos = int(offset)
	return nil
}

// Offset returns the current write position.
func (m *Modifier) Offset() AssemblyOffset {
	return AssemblyOffset(m.pos)
}

// End returns the current size of the code, the offset an append would
// start at.
func (m *Modifier) End() AssemblyOffset {
	return AssemblyOffset(m.a.size)
}

// Push encodes instrs at the write position, overwriting existing bytes.
func (m *Modifier) Push(instrs ...asm.Instr) error {
	code, err := EncodeAll(instrs)
	if err != nil {
		return err
	}
	return m.write(code)
}

// Ret writes a return instruction at the write position.
func (m *Modifier) Ret() error {
	return m.write(EncodeRet())
}

func (m *Modifier) write(code []byte) error {
	if err := m.a.writeLocked(m.pos, code); err != nil {
		return err
	}
	m.pos += len(code)
	return nil
}

// Compile assembles instrs followed by a return into a fresh buffer and
// returns the entry point together with a release function.
func Compile(instrs []asm.Instr, opts ...Option) (Func, func(), error) {
	a, err := NewAssembler(opts...)
	if err != nil {
		return Func{}, nil, err
	}
	release := func() { _ = a.Release() }

	fn, err := compileInto(a, instrs)
	if err != nil {
		release()
		return Func{}, nil, err
	}
	return fn, release, nil
}

// MustCompile is like Compile but panics on error and never releases the
// buffer.
func MustCompile(instrs []asm.Instr) Func {
	fn, _, err := Compile(instrs)
	if err != nil {
		panic(err)
	}
	return fn
}

func compileInto(a *Assembler, instrs []asm.Instr) (Func, error) {
	start := a.Offset()
	if err := a.Push(instrs...); err != nil {
		return Func{}, fmt.Errorf("emit instructions: %w", err)
	}
	if err := a.Ret(); err != nil {
		return Func{}, fmt.Errorf("emit return: %w", err)
	}
	if err := a.Commit(); err != nil {
		return Func{}, err
	}

	view, err := a.Reader().Lock()
	if err != nil {
		return Func{}, err
	}
	defer view.Unlock()
	return view.Entry(start)
}

func roundToPage(n int) int {
	ps := pageSize()
	return ((n + ps - 1) / ps) * ps
}
