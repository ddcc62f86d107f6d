// Package pow solves the upstream's wasm-based proof-of-work challenges.
package pow

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/yuanshang000/ds2api/internal/upstream"
)

const algorithmDeepSeekHashV1 = "DeepSeekHashV1"

// ErrUnsupportedAlgorithm is returned for any challenge algorithm other than
// DeepSeekHashV1.
var ErrUnsupportedAlgorithm = errors.New("unsupported pow algorithm")

// ErrNoAnswer is returned when the solver kernel exhausts its search space
// without finding a valid nonce. Callers should fetch a fresh challenge.
var ErrNoAnswer = errors.New("pow solver found no answer")

// Solver runs the wasm hashing kernel. The compiled module is cached for the
// process lifetime; each Solve call instantiates a fresh instance so solves
// are safe to run concurrently.
type Solver struct {
	runtime  wazero.Runtime
	compiled wazero.CompiledModule

	mu      sync.Mutex
	counter uint64
}

// NewSolver compiles the wasm kernel at path.
func NewSolver(ctx context.Context, path string) (*Solver, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read wasm module: %w", err)
	}
	rt := wazero.NewRuntime(ctx)
	compiled, err := rt.CompileModule(ctx, raw)
	if err != nil {
		rt.Close(ctx)
		return nil, fmt.Errorf("compile wasm module: %w", err)
	}
	return &Solver{runtime: rt, compiled: compiled}, nil
}

// Close releases the runtime and its compiled module.
func (s *Solver) Close(ctx context.Context) error {
	return s.runtime.Close(ctx)
}

// Solve returns the integer nonce for a challenge.
func (s *Solver) Solve(ctx context.Context, ch *upstream.PowChallenge) (int64, error) {
	if ch.Algorithm != algorithmDeepSeekHashV1 {
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedAlgorithm, ch.Algorithm)
	}
	prefix := fmt.Sprintf("%s_%d_", ch.Salt, ch.ExpireAt)

	s.mu.Lock()
	s.counter++
	name := fmt.Sprintf("pow-%d", s.counter)
	s.mu.Unlock()

	mod, err := s.runtime.InstantiateModule(ctx, s.compiled,
		wazero.NewModuleConfig().WithName(name))
	if err != nil {
		return 0, fmt.Errorf("instantiate wasm module: %w", err)
	}
	defer mod.Close(ctx)

	mem := mod.Memory()
	addToStack := mod.ExportedFunction("__wbindgen_add_to_stack_pointer")
	alloc := mod.ExportedFunction("__wbindgen_export_0")
	solve := mod.ExportedFunction("wasm_solve")
	if mem == nil || addToStack == nil || alloc == nil || solve == nil {
		return 0, errors.New("wasm module missing required exports")
	}

	ret, err := addToStack.Call(ctx, encodeI32(-16))
	if err != nil {
		return 0, fmt.Errorf("adjust stack: %w", err)
	}
	retptr := uint32(ret[0])
	defer addToStack.Call(ctx, encodeI32(16))

	ptrC, lenC, err := writeString(ctx, mem, alloc, ch.Challenge)
	if err != nil {
		return 0, err
	}
	ptrP, lenP, err := writeString(ctx, mem, alloc, prefix)
	if err != nil {
		return 0, err
	}

	if _, err := solve.Call(ctx,
		uint64(retptr),
		uint64(ptrC), uint64(lenC),
		uint64(ptrP), uint64(lenP),
		api.EncodeF64(float64(ch.Difficulty)),
	); err != nil {
		return 0, fmt.Errorf("wasm_solve: %w", err)
	}

	statusRaw, ok := mem.ReadUint32Le(retptr)
	if !ok {
		return 0, errors.New("read solve status out of bounds")
	}
	if int32(statusRaw) == 0 {
		return 0, ErrNoAnswer
	}
	valueRaw, ok := mem.ReadUint64Le(retptr + 8)
	if !ok {
		return 0, errors.New("read solve answer out of bounds")
	}
	return int64(math.Float64frombits(valueRaw)), nil
}

func writeString(ctx context.Context, mem api.Memory, alloc api.Function, s string) (uint32, uint32, error) {
	data := []byte(s)
	res, err := alloc.Call(ctx, uint64(len(data)), 1)
	if err != nil {
		return 0, 0, fmt.Errorf("wasm alloc: %w", err)
	}
	ptr := uint32(res[0])
	if !mem.Write(ptr, data) {
		return 0, 0, errors.New("wasm memory write out of bounds")
	}
	return ptr, uint32(len(data)), nil
}

func encodeI32(v int32) uint64 {
	return uint64(uint32(v))
}

// EncodeAnswer serializes a solved challenge into the header value the
// completion endpoint expects.
func EncodeAnswer(ch *upstream.PowChallenge, answer int64) (string, error) {
	body := struct {
		Algorithm  string `json:"algorithm"`
		Challenge  string `json:"challenge"`
		Salt       string `json:"salt"`
		Answer     int64  `json:"answer"`
		Signature  string `json:"signature"`
		TargetPath string `json:"target_path"`
	}{
		Algorithm:  ch.Algorithm,
		Challenge:  ch.Challenge,
		Salt:       ch.Salt,
		Answer:     answer,
		Signature:  ch.Signature,
		TargetPath: ch.TargetPath,
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal pow answer: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}
