package disasm

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// OutputCache memoises successful tool output by command line, so that
// returning to a caller does not run objdump again.
type OutputCache struct {
	lru *lru.Cache[string, string]
}

// NewOutputCache returns a cache holding up to size outputs, or nil when
// size is not positive. A nil cache never hits.
func NewOutputCache(size int) (*OutputCache, error) {
	if size <= 0 {
		return nil, nil
	}
	c, err := lru.New[string, string](size)
	if err != nil {
		return nil, err
	}
	return &OutputCache{lru: c}, nil
}

func (c *OutputCache) get(cmd Command) (string, bool) {
	if c == nil {
		return "", false
	}
	return c.lru.Get(cmd.String())
}

func (c *OutputCache) add(cmd Command, out string) {
	if c == nil {
		return
	}
	c.lru.Add(cmd.String(), out)
}

// Len is the number of cached outputs.
func (c *OutputCache) Len() int {
	if c == nil {
		return 0
	}
	return c.lru.Len()
}

// Purge drops every cached output.
func (c *OutputCache) Purge() {
	if c == nil {
		return
	}
	c.lru.Purge()
}
