package cache

import (
	"context"

	"github.com/chazu/clspv"
)

// Compiler serves emissions from a Store and falls back to an inner
// compiler on a miss. Storage errors are logged and never fail a
// compilation.
type Compiler struct {
	store *Store
	id    string
	inner clspv.Compiler
}

// Wrap puts store in front of inner. id identifies the inner compiler
// (path and version, for instance) and is part of every key.
func Wrap(store *Store, id string, inner clspv.Compiler) *Compiler {
	return &Compiler{store: store, id: id, inner: inner}
}

// CompileFromSourceString implements clspv.Compiler.
func (c *Compiler) CompileFromSourceString(ctx context.Context, source, extra, options string) clspv.Emission {
	key := KeyFor(c.id, extra+"\x00"+source, options)

	rec, ok, err := c.store.Get(ctx, key)
	switch {
	case err != nil:
		log.Warningf("cache lookup failed, compiling: %v", err)
	case ok:
		log.Debugf("hit %s", key)
		return rec.Emission()
	}

	em := c.inner.CompileFromSourceString(ctx, source, extra, options)
	if em.Status != clspv.StatusOK {
		return em
	}

	err = c.store.Put(ctx, key, &Record{
		Status:     em.Status,
		Words:      em.Words,
		Log:        em.Log,
		CompilerID: c.id,
	})
	if err != nil {
		log.Warningf("storing %s: %v", key, err)
	}
	return em
}
