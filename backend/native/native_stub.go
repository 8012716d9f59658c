//go:build !clspv || !cgo

package native

import (
	"context"

	"github.com/chazu/clspv"
)

const available = false

type libraryCompiler struct{}

func (libraryCompiler) CompileFromSourceString(ctx context.Context, source, extra, options string) clspv.Emission {
	return clspv.Emission{Status: clspv.StatusFailed, Log: "error: " + ErrUnavailable.Error() + "\n"}
}

func imagePath() string {
	return ""
}
