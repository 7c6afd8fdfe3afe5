// Package discovery finds the generated request artifacts under a source
// tree.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// DefaultSuffix is the file name suffix of Relay TypeScript artifacts.
const DefaultSuffix = ".graphql.ts"

// ErrSymlinkLoop is passed to the skip hook for a directory that resolves
// to one of its own ancestors. Directories reached through several
// unrelated links are walked once per link.
var ErrSymlinkLoop = errors.New("discovery: symlink loop")

// Locator enumerates candidate files under a root directory. Symbolic links
// are followed. Entries that cannot be read are skipped and reported to the
// skip hook; they never abort a walk.
type Locator struct {
	suffix string
	onSkip func(path string, err error)
}

type Option func(*Locator)

// WithSuffix overrides DefaultSuffix.
func WithSuffix(s string) Option { return func(l *Locator) { l.suffix = s } }

// WithSkipHook registers fn to be told about every skipped entry.
func WithSkipHook(fn func(path string, err error)) Option {
	return func(l *Locator) { l.onSkip = fn }
}

func NewLocator(opts ...Option) *Locator {
	l := &Locator{suffix: DefaultSuffix}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Walk calls fn for every matching regular file under root, in lexical
// order within each directory. It returns an error only when root itself is
// unusable, the context is done, or fn fails.
//
// Every call traverses the file system again; nothing is cached.
func (l *Locator) Walk(ctx context.Context, root string, fn func(path string) error) error {
	fi, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("failed to access root directory %q: %w", root, err)
	}
	if !fi.IsDir() {
		if fi.Mode().IsRegular() && l.match(fi.Name()) {
			return fn(root)
		}
		return nil
	}
	w := &walk{Locator: l, ancestors: make(map[string]bool), fn: fn}
	return w.dir(ctx, root)
}

func (l *Locator) match(name string) bool { return strings.HasSuffix(name, l.suffix) }

func (l *Locator) skip(path string, err error) {
	if l.onSkip != nil {
		l.onSkip(path, err)
	}
}

type walk struct {
	*Locator
	ancestors map[string]bool // resolved paths of the directories being walked
	fn        func(string) error
}

func (w *walk) dir(ctx context.Context, dir string) error {
	real, err := filepath.EvalSymlinks(dir)
	if err != nil {
		w.skip(dir, err)
		return nil
	}
	if w.ancestors[real] {
		w.skip(dir, ErrSymlinkLoop)
		return nil
	}
	w.ancestors[real] = true
	defer delete(w.ancestors, real)

	entries, err := os.ReadDir(dir)
	if err != nil {
		w.skip(dir, err)
		return nil
	}
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		path := filepath.Join(dir, e.Name())
		mode := e.Type()
		if mode&fs.ModeSymlink != 0 {
			fi, err := os.Stat(path)
			if err != nil {
				w.skip(path, err)
				continue
			}
			mode = fi.Mode().Type()
		}
		switch {
		case mode.IsDir():
			if err := w.dir(ctx, path); err != nil {
				return err
			}
		case mode.IsRegular() && w.match(e.Name()):
			if err := w.fn(path); err != nil {
				return err
			}
		}
	}
	return nil
}
