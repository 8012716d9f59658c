package main

import (
	"context"
	"errors"
	"os"
	"sync"

	"github.com/chazu/clspv"
	"github.com/chazu/clspv/config"
	"github.com/chazu/clspv/internal/driver"
	"github.com/chazu/clspv/internal/handles"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("clspv.ffi")

// library is the process-wide state behind the exported functions.
type library struct {
	results *handles.Table[*clspv.Result]

	once sync.Once
	cc   clspv.Compiler
	open func() (clspv.Compiler, error)
}

var lib = newLibrary(openFromConfig)

func newLibrary(open func() (clspv.Compiler, error)) *library {
	return &library{
		results: handles.NewTable[*clspv.Result](),
		open:    open,
	}
}

// openFromConfig builds the compiler from the clspv.toml found above the
// working directory, or from defaults.
func openFromConfig() (clspv.Compiler, error) {
	wd, err := os.Getwd()
	if err != nil {
		wd = "."
	}
	cfg, err := config.FindAndLoad(wd)
	if err != nil {
		return nil, err
	}
	driver.ConfigureLogging(cfg)

	d, err := driver.Open(context.Background(), cfg, driver.Options{})
	if err != nil {
		return nil, err
	}
	return d.Compiler, nil
}

// compiler returns the shared compiler, building it on first use. A
// failure to build it yields a compiler that reports the failure in every
// log.
func (l *library) compiler() clspv.Compiler {
	l.once.Do(func() {
		cc, err := l.open()
		if err != nil {
			msg := "error: " + err.Error() + "\n"
			cc = clspv.CompilerFunc(func(context.Context, string, string, string) clspv.Emission {
				return clspv.Emission{Status: clspv.StatusFailed, Log: msg}
			})
		}
		l.cc = cc
	})
	return l.cc
}

func (l *library) alloc() handles.Token {
	return l.results.Put(clspv.NewResult())
}

func (l *library) release(tok handles.Token) error {
	res, err := l.results.Delete(tok)
	if err != nil {
		return err
	}
	return res.Free()
}

// compiled is what one compile call hands back to the C side.
type compiled struct {
	status int
	words  []uint32
	log    string
	// stored is false when the call was rejected before compiling; the
	// result keeps its previous buffers.
	stored bool
}

// compile runs one compilation into the result behind tok and returns the
// boundary status together with owned copies of both buffers.
func (l *library) compile(tok handles.Token, program, options string) compiled {
	res, ok := l.results.Get(tok)
	if !ok {
		return compiled{status: clspv.StatusOf(clspv.ErrNilResult)}
	}

	err := res.Compile(context.Background(), l.compiler(), program, options)
	var ce *clspv.CompileError
	if err != nil && !errors.As(err, &ce) {
		log.Warningf("compile rejected: %v", err)
		return compiled{status: clspv.StatusOf(err)}
	}

	c := compiled{status: clspv.StatusOf(err), stored: true}
	out, err := res.Output()
	if err != nil {
		return compiled{status: clspv.StatusOf(err)}
	}
	logView, err := res.Log()
	if err != nil {
		return compiled{status: clspv.StatusOf(err)}
	}
	if c.words, err = out.Copy(); err != nil {
		return compiled{status: clspv.StatusOf(err)}
	}
	if c.log, err = clspv.Text(logView); err != nil {
		return compiled{status: clspv.StatusOf(err)}
	}
	return c
}
