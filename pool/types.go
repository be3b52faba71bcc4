package pool

import (
	"go.uber.org/zap"

	scriptheap "github.com/wippyai/script-heap"
	"github.com/wippyai/script-heap/internal/stream"
	"github.com/wippyai/script-heap/rtti"
)

// Handle is a script-visible reference to a managed object.
// Handle 0 is the null handle.
type Handle int32

// ValueType classifies a registered object.
type ValueType uint8

const (
	ValueUndefined ValueType = iota
	// ValueScriptObject is an object allocated on behalf of a script.
	ValueScriptObject
	// ValueEngineObject is an engine-owned struct exposed to scripts.
	ValueEngineObject
	// ValuePluginObject is owned by an extension.
	ValuePluginObject
)

func (v ValueType) String() string {
	switch v {
	case ValueScriptObject:
		return "script"
	case ValueEngineObject:
		return "engine"
	case ValuePluginObject:
		return "plugin"
	default:
		return "undefined"
	}
}

// Manager knows the layout of one kind of managed object.
type Manager interface {
	// TypeName is the stable tag written into save data.
	TypeName() string
	// Dispose releases the object's memory. Unless force is set it first
	// drops (without disposing) every handle the object holds. It returns
	// false if the object must stay registered.
	Dispose(addr scriptheap.Addr, force bool) bool
	// CalcSerializeSize predicts the payload size Serialize will write.
	CalcSerializeSize(addr scriptheap.Addr) uint32
	Serialize(addr scriptheap.Addr, w *stream.Writer) error
	// Unserialize reads size payload bytes, rebuilds the object and
	// registers it under handle.
	Unserialize(handle Handle, r *stream.Reader, size uint32) error
	// RemapTypeIDs rewrites embedded type ids.
	RemapTypeIDs(addr scriptheap.Addr, m rtti.Remap) error
	// TraverseRefs calls fn for every non-null handle the object holds.
	TraverseRefs(addr scriptheap.Addr, fn func(Handle))
}

// Reader resolves save data type tags to managers.
type Reader interface {
	ManagerFor(typeName string) (Manager, bool)
}

// Managers is a Reader backed by a map.
type Managers map[string]Manager

func (m Managers) ManagerFor(typeName string) (Manager, bool) {
	mgr, ok := m[typeName]
	return mgr, ok
}

// Add registers mgr under its type name.
func (m Managers) Add(mgr Manager) {
	m[mgr.TypeName()] = mgr
}

// EventType identifies a lifecycle notification.
type EventType uint8

const (
	EventCreated EventType = iota
	EventDisposed
	EventCollected
	EventRestored
)

func (e EventType) String() string {
	switch e {
	case EventCreated:
		return "created"
	case EventDisposed:
		return "disposed"
	case EventCollected:
		return "collected"
	case EventRestored:
		return "restored"
	default:
		return "unknown"
	}
}

// Event describes an object lifecycle change.
type Event struct {
	TypeName string
	Addr     scriptheap.Addr
	Handle   Handle
	Type     EventType
}

// Observer receives lifecycle events.
type Observer interface {
	OnObjectEvent(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) OnObjectEvent(e Event) { f(e) }

// Stats are cumulative pool counters.
type Stats struct {
	Added             uint64
	AddedPersistent   uint64
	Removed           uint64
	RemovedPersistent uint64
	RemovedGC         uint64
	RemovedGCDetached uint64
	MaxObjectsPresent uint64
	GCTimesRun        uint64
}

// Default configuration values.
const (
	DefaultGCInterval        = 1024
	DefaultMaxHandle         = int32(1<<31 - 1)
	DefaultMaxRestoredHandle = int32(1 << 22)
)

// Config configures a Pool.
type Config struct {
	// Logger overrides the package logger.
	Logger *zap.Logger
	// GCInterval is the number of object creations between automatic
	// collections. Zero selects DefaultGCInterval; negative disables
	// automatic collection.
	GCInterval int
	// MaxHandle is the largest handle the pool will issue.
	// Zero selects DefaultMaxHandle.
	MaxHandle int32
	// MaxRestoredHandle is the largest handle accepted from save data.
	// The handle table grows to the largest restored handle, so this
	// bounds the memory a corrupt save can claim. Zero selects
	// DefaultMaxRestoredHandle; it never exceeds MaxHandle.
	MaxRestoredHandle int32
}

// DefaultConfig returns the default pool configuration.
func DefaultConfig() Config {
	return Config{
		GCInterval:        DefaultGCInterval,
		MaxHandle:         DefaultMaxHandle,
		MaxRestoredHandle: DefaultMaxRestoredHandle,
	}
}
