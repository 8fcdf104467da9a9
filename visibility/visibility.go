// Package visibility marks files hidden from normal directory listings, where the platform has a
// way to do that without renaming.
package visibility

import "errors"

// ErrUnsupported is returned by Hide on platforms with no hidden attribute.
var ErrUnsupported = errors.ErrUnsupported

type Hider interface {
	Hide(path string) error
}

type HiderFunc func(path string) error

func (f HiderFunc) Hide(path string) error { return f(path) }

// OS hides files with the platform's native attribute.
type OS struct{}

func (OS) Hide(path string) error { return hide(path) }

// Nop hides nothing and never fails.
type Nop struct{}

func (Nop) Hide(string) error { return nil }
