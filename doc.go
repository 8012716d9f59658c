// Package clspv exchanges compilation results with the clspv OpenCL C to
// SPIR-V compiler through an owned result handle.
//
// A Result owns two buffers: the emitted SPIR-V words and the compiler log.
// The lifecycle is linear:
//
//	res := clspv.NewResult()
//	defer res.Free()
//
//	if err := res.Compile(ctx, compiler, source, "-cl-std=CL2.0"); err != nil {
//	    // err is a *CompileError carrying the status and log
//	}
//	words, _ := res.Output()
//	log, _ := res.Log()
//
// Output and Log return borrowed views. A view is only valid while the
// Result that produced it is live; after Free it reports Valid() == false
// and refuses to copy.
//
// The compiler itself is a collaborator behind the Compiler interface. See
// the backend/process and backend/native packages for real implementations
// and clspvtest for an in-process fake.
//
// The clspv_result C ABI is exported by cmd/libclspv, which is built with
// -buildmode=c-shared on top of this package.
package clspv
