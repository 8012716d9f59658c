//go:build clspv && cgo

package native

/*
#cgo CXXFLAGS: -std=c++17
#cgo LDFLAGS: -lclspv_ffi -lclspv_combined -lstdc++ -ldl
#define _GNU_SOURCE
#include <dlfcn.h>
#include <stdlib.h>
#include "shim.h"

// Path of the loaded image that holds the shim and the clspv code linked
// with it, or NULL.
static const char *clspv_go_image_path(void) {
    Dl_info info;
    if (dladdr((void *)&clspv_go_compile, &info) == 0) {
        return NULL;
    }
    return info.dli_fname;
}
*/
import "C"

import (
	"context"
	"unsafe"

	"github.com/chazu/clspv"
)

const available = true

// libraryCompiler calls clspv::CompileFromSourceString. It is not safe for
// concurrent use; New wraps it in a Worker.
type libraryCompiler struct{}

func (libraryCompiler) CompileFromSourceString(ctx context.Context, source, extra, options string) clspv.Emission {
	if err := ctx.Err(); err != nil {
		return clspv.Emission{Status: clspv.StatusFailed, Log: "error: " + err.Error() + "\n"}
	}

	cSource := C.CString(source)
	defer C.free(unsafe.Pointer(cSource))
	cExtra := C.CString(extra)
	defer C.free(unsafe.Pointer(cExtra))
	cOptions := C.CString(options)
	defer C.free(unsafe.Pointer(cOptions))

	var em C.clspv_go_emission
	C.clspv_go_compile(
		cSource, C.size_t(len(source)),
		cExtra, C.size_t(len(extra)),
		cOptions, C.size_t(len(options)),
		&em,
	)
	defer C.clspv_go_emission_free(&em)

	out := clspv.Emission{Status: int(em.status)}
	if em.output != nil && em.output_size > 0 {
		words := unsafe.Slice((*uint32)(unsafe.Pointer(em.output)), int(em.output_size))
		out.Words = make([]uint32, len(words))
		copy(out.Words, words)
	}
	if em.log != nil && em.log_size > 0 {
		out.Log = C.GoStringN(em.log, C.int(em.log_size))
	}
	return out
}

func imagePath() string {
	p := C.clspv_go_image_path()
	if p == nil {
		return ""
	}
	return C.GoString(p)
}
