package tars

import (
	"github.com/blockberries/tarsberry/internal/wire"
)

// Type identifies how a value is encoded on the wire.
// Re-exported from internal/wire for public use.
type Type = wire.Type

// Wire type constants (4-bit codes 0..=13; 14 and 15 are invalid).
const (
	// TypeInt1 is a 1-byte signed integer.
	TypeInt1 = wire.TypeInt1

	// TypeInt2 is a 2-byte big-endian signed integer.
	TypeInt2 = wire.TypeInt2

	// TypeInt4 is a 4-byte big-endian signed integer.
	TypeInt4 = wire.TypeInt4

	// TypeInt8 is an 8-byte big-endian signed integer.
	TypeInt8 = wire.TypeInt8

	// TypeFloat is a 4-byte big-endian float.
	TypeFloat = wire.TypeFloat

	// TypeDouble is an 8-byte big-endian double.
	TypeDouble = wire.TypeDouble

	// TypeString1 is a string with a 1-byte length prefix.
	TypeString1 = wire.TypeString1

	// TypeString4 is a string with a 4-byte big-endian length prefix.
	TypeString4 = wire.TypeString4

	// TypeMap begins a map container.
	TypeMap = wire.TypeMap

	// TypeList begins a list container.
	TypeList = wire.TypeList

	// TypeStructBegin opens a nested struct.
	TypeStructBegin = wire.TypeStructBegin

	// TypeStructEnd closes a nested struct.
	TypeStructEnd = wire.TypeStructEnd

	// TypeZeroTag is a zero-valued scalar carried entirely by the head.
	TypeZeroTag = wire.TypeZeroTag

	// TypeSimpleList is the byte-array specialization of List.
	TypeSimpleList = wire.TypeSimpleList
)

// MaxDepth is the recursion cap applied by the reader, scanner,
// serializer, and deserializer. Inputs nesting beyond this fail with
// ErrMaxDepthExceeded instead of overflowing the stack.
const MaxDepth = 100

// MaxTag is the largest field tag the wire format can carry.
const MaxTag = 255

// Dict is a schema-less Tars record: a tag-keyed map of any-dispatchable
// values. Dict is the unit of the raw codec and the decoded shape of
// struct-valued Any fields.
type Dict = map[uint8]any

// BytesMode selects how schema-less decoding materializes SimpleList
// payloads, which are structurally ambiguous (byte string, UTF-8 text,
// or an embedded serialized struct).
type BytesMode uint8

const (
	// BytesRaw returns SimpleList payloads as []byte, always.
	BytesRaw BytesMode = 0

	// BytesString decodes SimpleList payloads as strings when they are
	// valid text, else returns []byte.
	BytesString BytesMode = 1

	// BytesAuto first probes the payload as a complete embedded struct
	// (returning a Dict on success), then tries text, then falls back to
	// []byte. The struct check precedes the text check; callers that
	// need determinism should use BytesRaw.
	BytesAuto BytesMode = 2
)

// Options configures decoding behavior.
type Options struct {
	// Bytes selects SimpleList payload promotion for schema-less decodes.
	Bytes BytesMode

	// FallbackGBK enables a GBK transcoding fallback for string payloads
	// that are not valid UTF-8. The Tencent JCE ecosystem routinely
	// carries GBK-encoded strings.
	FallbackGBK bool
}

// DefaultOptions are the default decoding options.
var DefaultOptions = Options{
	Bytes: BytesAuto,
}

// Version information, set by ldflags at build time.
var (
	// Version is the semantic version of the library.
	Version = "dev"

	// GitCommit is the git commit hash.
	GitCommit = "unknown"

	// BuildDate is the build timestamp.
	BuildDate = "unknown"
)

// VersionInfo returns a formatted version string.
func VersionInfo() string {
	return Version + " (" + GitCommit + ", " + BuildDate + ")"
}
