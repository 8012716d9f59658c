package clspv

import (
	"context"
	"fmt"
)

// Emission is what a compiler produces for one invocation.
type Emission struct {
	// Status is zero on success and non-zero on any failure.
	Status int
	// Words is the emitted SPIR-V binary, possibly partial on failure.
	Words []uint32
	// Log holds diagnostics. It may be non-empty on success (warnings).
	Log string
}

// Compiler is the external compiler capability. Implementations must not
// panic across this interface; failures are reported through the status and
// the log only.
type Compiler interface {
	// CompileFromSourceString compiles an OpenCL C program. extra carries
	// additional source and is always empty when called through Result.
	CompileFromSourceString(ctx context.Context, source, extra, options string) Emission
}

// CompilerFunc adapts a plain function to the Compiler interface.
type CompilerFunc func(ctx context.Context, source, extra, options string) Emission

// CompileFromSourceString calls f.
func (f CompilerFunc) CompileFromSourceString(ctx context.Context, source, extra, options string) Emission {
	return f(ctx, source, extra, options)
}

// invoke calls cc and converts a panic into a failed emission.
func invoke(ctx context.Context, cc Compiler, source, extra, options string) (em Emission) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("compiler panicked: %v", r)
			em = Emission{
				Status: StatusFailed,
				Log:    fmt.Sprintf("internal compiler error: %v\n", r),
			}
		}
	}()
	return cc.CompileFromSourceString(ctx, source, extra, options)
}
