package runtime

import (
	stderrors "errors"
	"os"

	jsonv2 "github.com/go-json-experiment/json"
	"github.com/tailscale/hujson"
	"go.uber.org/zap"

	"github.com/wippyai/script-heap/dynobj"
	"github.com/wippyai/script-heap/errors"
	"github.com/wippyai/script-heap/heap"
	"github.com/wippyai/script-heap/pool"
)

// Backend selects the linear memory behind the script heap.
type Backend string

const (
	// BackendArena keeps the heap in a Go byte slice.
	BackendArena Backend = "arena"
	// BackendWasm keeps the heap in a wazero linear memory, so that a wasm
	// interpreter can share it.
	BackendWasm Backend = "wasm"
)

// Options configures a Runtime.
type Options struct {
	// Logger overrides the package logger.
	Logger *zap.Logger `json:"-"`

	Backend Backend `json:"backend"`
	// InitialMemory is the heap size reserved up front, in bytes.
	InitialMemory uint32 `json:"initialMemory"`
	// MemoryLimit caps the heap size in bytes; 0 means no limit.
	MemoryLimit uint32 `json:"memoryLimit"`

	// GCInterval is the number of object creations between collections
	// run by MaybeRunGC; negative disables them.
	GCInterval int `json:"gcInterval"`
	// MaxHandle is the largest handle the pool issues.
	MaxHandle int32 `json:"maxHandle"`

	TextMode dynobj.TextMode `json:"textMode"`
	// FormatBuffer limits the output of String.Format, terminator included.
	FormatBuffer int `json:"formatBuffer"`
	// Characters is the size of the engine character table.
	Characters int `json:"characters"`
}

// DefaultOptions returns the default runtime configuration.
func DefaultOptions() Options {
	return Options{
		Backend:       BackendArena,
		InitialMemory: heap.PageSize,
		GCInterval:    pool.DefaultGCInterval,
		MaxHandle:     pool.DefaultMaxHandle,
		TextMode:      dynobj.TextUTF8,
		FormatBuffer:  dynobj.DefaultFormatBuffer,
	}
}

// LoadOptions returns DefaultOptions overlaid with each HuJSON file in
// paths, in order. Missing files are skipped.
func LoadOptions(paths ...string) (Options, error) {
	opts := DefaultOptions()
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			if stderrors.Is(err, os.ErrNotExist) {
				continue
			}
			return Options{}, errors.Wrap(errors.PhaseConfig, errors.KindNotFound, err, path)
		}
		if err := opts.merge(data); err != nil {
			return Options{}, errors.New(errors.PhaseConfig, errors.KindInvalidInput).
				Path(path).Cause(err).Build()
		}
	}
	if err := opts.Validate(); err != nil {
		return Options{}, err
	}
	return opts, nil
}

// merge overlays the members present in a HuJSON document.
func (o *Options) merge(huJSON []byte) error {
	data, err := hujson.Standardize(huJSON)
	if err != nil {
		return err
	}
	return jsonv2.Unmarshal(data, o, jsonv2.RejectUnknownMembers(true))
}

// Validate checks the options for values New cannot use.
func (o Options) Validate() error {
	switch o.Backend {
	case "", BackendArena, BackendWasm:
	default:
		return errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Path("backend").Value(string(o.Backend)).Detail("unknown backend %q", o.Backend).Build()
	}
	if o.MemoryLimit != 0 && o.InitialMemory > o.MemoryLimit {
		return errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Path("initialMemory").Value(o.InitialMemory).Detail("exceeds memoryLimit %d", o.MemoryLimit).Build()
	}
	if o.MaxHandle < 0 {
		return errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Path("maxHandle").Value(o.MaxHandle).Detail("must not be negative").Build()
	}
	if o.Characters < 0 {
		return errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Path("characters").Value(o.Characters).Detail("must not be negative").Build()
	}
	return nil
}
