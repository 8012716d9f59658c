// Package native links the clspv compiler library through cgo.
//
// The binding is only compiled with the "clspv" build tag and cgo enabled,
// and expects libclspv_ffi and libclspv_combined on the linker path:
//
//	CGO_LDFLAGS=-L/path/to/clspv/lib go build -tags clspv ./...
//
// clspv keeps process-wide LLVM state, so every compilation goes through a
// single clspv.Worker.
package native

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"os"
	"runtime/debug"
	"sync"

	"github.com/chazu/clspv"
)

// ErrUnavailable is returned by New when the binary was built without the
// native binding.
var ErrUnavailable = errors.New("native: clspv library not linked (build with -tags clspv)")

// Available reports whether the native binding is linked in.
func Available() bool {
	return available
}

// New returns a serialized compiler backed by the linked library. The
// caller should Stop the worker when done.
func New() (*clspv.Worker, error) {
	if !available {
		return nil, ErrUnavailable
	}
	return clspv.NewWorker(libraryCompiler{}), nil
}

// Identity fingerprints the linked compiler: the build info of this binary
// and the contents of the image the binding was loaded from (the
// executable when that cannot be determined). It changes whenever the
// clspv library is relinked.
func Identity() string {
	return identity()
}

var identity = sync.OnceValue(func() string {
	h := sha256.New()
	if bi, ok := debug.ReadBuildInfo(); ok {
		io.WriteString(h, bi.String())
	}

	path := imagePath()
	if path == "" {
		path, _ = os.Executable()
	}
	if f, err := os.Open(path); err == nil {
		io.Copy(h, f)
		f.Close()
	}
	return hex.EncodeToString(h.Sum(nil)[:8])
})
