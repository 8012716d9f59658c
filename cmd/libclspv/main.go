// Package main builds libclspv, the C interface to the clspv compiler.
// This is built with -buildmode=c-shared; clspv_ffi.h is the public header.
package main

/*
#include <stdlib.h>
#include "result.h"
*/
import "C"
import (
	"unsafe"

	"github.com/chazu/clspv"
	"github.com/chazu/clspv/internal/handles"
)

func main() {}

// ============================================================================
// Buffer helpers
// ============================================================================

// allocWords returns C heap storage for n words, or nil.
var allocWords = func(n int) unsafe.Pointer {
	return C.malloc(C.size_t(n) * C.size_t(unsafe.Sizeof(uint32(0))))
}

func emptyOutput() *C.uint32_t {
	return &C.clspv_empty_output[0]
}

func emptyLog() *C.char {
	return &C.clspv_empty_log[0]
}

func resetBuffers(res *C.clspv_result) {
	if res.output != nil && res.output != emptyOutput() {
		C.free(unsafe.Pointer(res.output))
	}
	if res.log != nil && res.log != emptyLog() {
		C.free(unsafe.Pointer(res.log))
	}
	res.output = emptyOutput()
	res.output_size = 0
	res.log = emptyLog()
	res.log_size = 0
}

// storeWords copies words to the C heap. It reports false if the copy
// could not be allocated; the output is then left empty.
func storeWords(res *C.clspv_result, words []uint32) bool {
	if len(words) == 0 {
		return true
	}
	p := allocWords(len(words))
	if p == nil {
		return false
	}
	copy(unsafe.Slice((*uint32)(p), len(words)), words)
	res.output = (*C.uint32_t)(p)
	res.output_size = C.size_t(len(words))
	return true
}

func storeLog(res *C.clspv_result, text string) {
	if text == "" {
		return
	}
	res.log = C.CString(text)
	res.log_size = C.size_t(len(text))
}

func tokenOf(res *C.clspv_result) handles.Token {
	return handles.Token(res.token)
}

// ============================================================================
// Result lifecycle
// ============================================================================

//export clspv_result_alloc
func clspv_result_alloc() *C.clspv_result {
	res := (*C.clspv_result)(C.calloc(1, C.sizeof_clspv_result))
	if res == nil {
		return nil
	}
	res.token = C.uint64_t(lib.alloc())
	resetBuffers(res)
	return res
}

//export clspv_result_free
func clspv_result_free(res *C.clspv_result) {
	if res == nil {
		return
	}
	if err := lib.release(tokenOf(res)); err != nil {
		log.Warningf("clspv_result_free: %v", err)
		return
	}
	resetBuffers(res)
	res.token = 0
	C.free(unsafe.Pointer(res))
}

// ============================================================================
// Accessors
// ============================================================================

//export clspv_result_get_output
func clspv_result_get_output(res *C.clspv_result, output **C.uint32_t, outputSize *C.size_t) {
	if output == nil || outputSize == nil {
		return
	}
	if res == nil {
		*output, *outputSize = emptyOutput(), 0
		return
	}
	*output, *outputSize = res.output, res.output_size
}

//export clspv_result_get_output_log
func clspv_result_get_output_log(res *C.clspv_result, output **C.char, outputSize *C.size_t) {
	if output == nil || outputSize == nil {
		return
	}
	if res == nil {
		*output, *outputSize = emptyLog(), 0
		return
	}
	*output, *outputSize = res.log, res.log_size
}

// ============================================================================
// Compilation
// ============================================================================

//export compile_from_source_string
func compile_from_source_string(program, options *C.char, result *C.clspv_result) C.int {
	if result == nil {
		return C.int(clspv.StatusOf(clspv.ErrNilResult))
	}

	var src, opts string
	if program != nil {
		src = C.GoString(program)
	}
	if options != nil {
		opts = C.GoString(options)
	}

	c := lib.compile(tokenOf(result), src, opts)
	if c.stored {
		resetBuffers(result)
		if !storeWords(result, c.words) {
			log.Errorf("compile_from_source_string: out of memory copying %d words", len(c.words))
			storeLog(result, c.log+"error: out of memory copying the output\n")
			return C.int(clspv.StatusFailed)
		}
		storeLog(result, c.log)
	}
	return C.int(c.status)
}
