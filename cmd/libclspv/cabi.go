package main

/*
#include <stdlib.h>
#include "result.h"
*/
import "C"
import "unsafe"

// cView is what one accessor call handed back, read the way C reads it.
type cView struct {
	nonNull bool
	size    int
	// terminated reports a NUL byte at ptr[size]; only meaningful for logs.
	terminated bool
	words      []uint32
	text       string
}

// cLifecycle records one alloc/compile/free sequence driven through the
// exported functions.
type cLifecycle struct {
	allocated    bool
	emptyOutput  cView
	emptyLog     cView
	status       int
	output       cView
	log          cView
	stableOutput bool
}

// runCLifecycle allocates a result, reads both buffers, compiles program
// with options, reads both buffers twice and frees the result. Tests
// cannot use cgo directly, so the C side of the exports is exercised here.
func runCLifecycle(program, options string) cLifecycle {
	var lc cLifecycle

	res := clspv_result_alloc()
	if res == nil {
		return lc
	}
	lc.allocated = true
	defer clspv_result_free(res)

	lc.emptyOutput = readOutput(res)
	lc.emptyLog = readLog(res)

	cprog := C.CString(program)
	defer C.free(unsafe.Pointer(cprog))
	copts := C.CString(options)
	defer C.free(unsafe.Pointer(copts))
	lc.status = int(compile_from_source_string(cprog, copts, res))

	lc.output = readOutput(res)
	lc.log = readLog(res)

	var p1, p2 *C.uint32_t
	var n1, n2 C.size_t
	clspv_result_get_output(res, &p1, &n1)
	clspv_result_get_output(res, &p2, &n2)
	lc.stableOutput = p1 == p2 && n1 == n2
	return lc
}

// runCCompileTwice compiles into one result twice and reports both
// statuses and whether the output buffer survived the second call.
func runCCompileTwice(first, second string) (int, int, bool) {
	res := clspv_result_alloc()
	defer clspv_result_free(res)

	c1 := C.CString(first)
	defer C.free(unsafe.Pointer(c1))
	c2 := C.CString(second)
	defer C.free(unsafe.Pointer(c2))
	empty := C.CString("")
	defer C.free(unsafe.Pointer(empty))

	s1 := compile_from_source_string(c1, empty, res)
	before := readOutput(res)
	s2 := compile_from_source_string(c2, empty, res)
	after := readOutput(res)

	same := before.size == after.size
	for i := range before.words {
		same = same && before.words[i] == after.words[i]
	}
	return int(s1), int(s2), same
}

// runCNullGuards calls every export with NULL arguments. It reports the
// compile status and what the accessors return for a NULL result.
func runCNullGuards() (int, cView, cView) {
	clspv_result_free(nil)

	res := clspv_result_alloc()
	clspv_result_get_output(res, nil, nil)
	clspv_result_get_output_log(res, nil, nil)
	clspv_result_free(res)

	status := int(compile_from_source_string(nil, nil, nil))
	return status, readOutput(nil), readLog(nil)
}

func readOutput(res *C.clspv_result) cView {
	var p *C.uint32_t
	var n C.size_t
	clspv_result_get_output(res, &p, &n)
	v := cView{nonNull: p != nil, size: int(n)}
	if p != nil && n > 0 {
		v.words = append([]uint32(nil), unsafe.Slice((*uint32)(unsafe.Pointer(p)), int(n))...)
	}
	return v
}

func readLog(res *C.clspv_result) cView {
	var p *C.char
	var n C.size_t
	clspv_result_get_output_log(res, &p, &n)
	v := cView{nonNull: p != nil, size: int(n)}
	if p != nil {
		b := unsafe.Slice((*byte)(unsafe.Pointer(p)), int(n)+1)
		v.terminated = b[n] == 0
		v.text = string(b[:n])
	}
	return v
}
