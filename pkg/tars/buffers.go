package tars

import (
	"math/bits"

	"github.com/timandy/routine"
)

// encodeBuffer is a goroutine-local append buffer reused across encodes.
// The inUse flag detects re-entrant borrows: an encode triggered from
// inside another encode on the same goroutine (for example through a
// formatting hook) would otherwise corrupt the shared buffer.
type encodeBuffer struct {
	w     Writer
	inUse bool
}

// initialBufferCap is the starting capacity of goroutine-local buffers.
const initialBufferCap = 128

// shrinkThreshold is the capacity above which the shrink policy engages.
const shrinkThreshold = 1 << 20 // 1 MiB

// Two locals: one for the schema-driven path, one for the raw path, so
// a raw encode embedded in a schema encode does not alias the buffer.
var (
	structEncodeBuffer = routine.NewThreadLocalWithInitial(newEncodeBuffer)
	rawEncodeBuffer    = routine.NewThreadLocalWithInitial(newEncodeBuffer)
)

func newEncodeBuffer() *encodeBuffer {
	return &encodeBuffer{w: Writer{buf: make([]byte, 0, initialBufferCap)}}
}

// acquire borrows the buffer, failing on re-entrant use.
func (b *encodeBuffer) acquire() error {
	if b.inUse {
		return NewEncodeError("goroutine-local buffer already borrowed", ErrReentrantEncode)
	}
	b.inUse = true
	b.w.Reset()
	return nil
}

// release returns the buffer and applies the shrink policy: a long-lived
// buffer whose high-water mark far exceeds its steady-state use is cut
// back to the next power of two above the bytes actually used.
func (b *encodeBuffer) release() {
	used := b.w.Len()
	if b.w.Cap() > shrinkThreshold && used < b.w.Cap()/4 {
		newCap := nextPow2(used)
		if newCap < initialBufferCap {
			newCap = initialBufferCap
		}
		b.w.buf = make([]byte, 0, newCap)
	}
	b.inUse = false
}

// nextPow2 returns the smallest power of two >= n.
func nextPow2(n int) int {
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(n-1))
}

// withEncodeBuffer runs fn with the goroutine-local buffer borrowed,
// returning the encoded bytes as a fresh copy. The buffer is released
// on every exit path, including panics.
func withEncodeBuffer(local routine.ThreadLocal[*encodeBuffer], fn func(w *Writer) error) ([]byte, error) {
	b := local.Get()
	if err := b.acquire(); err != nil {
		return nil, err
	}
	defer b.release()
	if err := fn(&b.w); err != nil {
		return nil, err
	}
	return b.w.BytesCopy(), nil
}
