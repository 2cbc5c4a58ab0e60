package catalog

import (
	"sync/atomic"

	"github.com/rotisserie/eris"
)

// Holder publishes the current catalog for hot reload. Readers always see
// a complete catalog: reloads build a new one and swap the pointer.
type Holder struct {
	cur atomic.Pointer[Catalog]
}

// NewHolder returns a Holder serving c.
func NewHolder(c *Catalog) *Holder {
	h := &Holder{}
	h.cur.Store(c)
	return h
}

// Current returns the catalog in effect.
func (h *Holder) Current() *Catalog {
	return h.cur.Load()
}

// Lookup resolves code against the current catalog.
func (h *Holder) Lookup(code string) (ProductRule, bool) {
	return h.cur.Load().Lookup(code)
}

// Swap installs c and returns the catalog it replaced.
func (h *Holder) Swap(c *Catalog) *Catalog {
	return h.cur.Swap(c)
}

// Reload loads the catalog at path and installs it. On error the current
// catalog stays in place.
func (h *Holder) Reload(path string) (*Catalog, error) {
	c, err := Load(path)
	if err != nil {
		return nil, eris.Wrap(err, "catalog: reload")
	}
	h.Swap(c)
	return c, nil
}
