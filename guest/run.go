package guest

import (
	"context"

	"github.com/tetratelabs/wazero"
	"go.uber.org/zap"

	"github.com/wippyai/motor-rt/abi"
	"github.com/wippyai/motor-rt/errors"
)

// Run compiles wasm, links it against the runtime host module and calls
// its exported function fn with args.
func Run(ctx context.Context, vt *abi.VTable, wasm []byte, fn string, args ...uint64) ([]uint64, error) {
	r := wazero.NewRuntime(ctx)
	defer r.Close(ctx)

	if _, err := NewHost(vt).Instantiate(ctx, r); err != nil {
		return nil, err
	}

	compiled, err := r.CompileModule(ctx, wasm)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseGuest, errors.KindInvalidInput, err, "compile guest")
	}

	mod, err := r.InstantiateModule(ctx, compiled,
		wazero.NewModuleConfig().WithName("guest").WithStartFunctions())
	if err != nil {
		return nil, errors.Wrap(errors.PhaseGuest, errors.KindInternal, err, "instantiate guest")
	}

	entry := mod.ExportedFunction(fn)
	if entry == nil {
		return nil, errors.NotFound(errors.PhaseGuest, "export", fn)
	}

	Logger().Debug("calling guest", zap.String("func", fn), zap.Int("args", len(args)))
	results, err := entry.Call(ctx, args...)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseGuest, errors.KindInternal, err, "guest "+fn)
	}
	return results, nil
}
