// Package pipeline signs every request descriptor found under a source
// tree.
//
// Files are handed to a bounded pool of workers. Each worker reads one file,
// extracts its descriptor and signs the query text, then sends the outcome
// on a single results channel. The goroutine that called Run is the only
// reader of that channel and the only writer of the signature collector.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/hanpama/querysign/internal/descriptor"
	"github.com/hanpama/querysign/internal/eventbus"
	"github.com/hanpama/querysign/internal/events"
	"github.com/hanpama/querysign/internal/language"
	"github.com/hanpama/querysign/internal/signatures"
	"github.com/hanpama/querysign/internal/signer"
)

// Pipeline applies extraction and signing to a source tree.
type Pipeline struct {
	extractor descriptor.Extractor
	key       signer.Key
	opt       Options
}

// New creates a Pipeline. The key is shared read-only by all workers.
func New(extractor descriptor.Extractor, key signer.Key, opts ...Option) *Pipeline {
	op := defaultOptions()
	for _, f := range opts {
		f(&op)
	}
	op.normalize()
	return &Pipeline{extractor: extractor, key: key, opt: op}
}

// Result summarises a run.
type Result struct {
	Signatures *signatures.Collector
	Files      int
	Signed     int
	Skipped    int
	// Failures is sorted by path.
	Failures []*FileError
	Duration time.Duration
}

// FileError is a failure confined to one file.
type FileError struct {
	Path string
	Err  error
}

func (e *FileError) Error() string { return e.Path + ": " + e.Err.Error() }

func (e *FileError) Unwrap() error { return e.Err }

// RunError reports every file that failed during a run.
type RunError struct {
	Failures []*FileError
}

func (e *RunError) Error() string {
	msgs := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		msgs[i] = f.Error()
	}
	return fmt.Sprintf("%d file(s) failed: %s", len(e.Failures), strings.Join(msgs, "; "))
}

func (e *RunError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f
	}
	return errs
}

type outcome struct {
	path  string
	entry *signatures.Entry
	err   error
}

// Run processes every file under root. The returned Result is never nil.
//
// Per-file failures do not stop the run; they are collected and returned
// together as a *RunError after all files have been processed. A root that
// cannot be walked is returned as a plain error.
func (p *Pipeline) Run(ctx context.Context, root string) (*Result, error) {
	start := time.Now()
	workers := p.opt.Workers
	log := p.opt.Logger.WithField("root", root)
	eventbus.Publish(ctx, p.opt.Bus, events.RunStart{Root: root, Strategy: strategyName(p.extractor), Workers: workers})

	results := make(chan outcome, workers)
	var walkErr error
	go func() {
		defer close(results)
		var g errgroup.Group
		g.SetLimit(workers)
		walkErr = p.opt.Locator.Walk(ctx, root, func(path string) error {
			g.Go(func() error {
				results <- p.handle(ctx, path)
				return nil
			})
			return nil
		})
		_ = g.Wait()
	}()

	res := &Result{Signatures: signatures.NewCollector()}
	for o := range results {
		res.Files++
		switch {
		case o.err != nil:
			res.Failures = append(res.Failures, &FileError{Path: o.path, Err: o.err})
		case o.entry != nil:
			res.Signed++
			res.Signatures.Add(*o.entry)
		default:
			res.Skipped++
		}
	}
	res.Duration = time.Since(start)
	sort.Slice(res.Failures, func(i, j int) bool { return res.Failures[i].Path < res.Failures[j].Path })

	for _, c := range res.Signatures.Collisions() {
		log.WithFields(logrus.Fields{
			"name":    c.Name,
			"kept":    c.Kept,
			"dropped": c.Dropped,
		}).Warn("operation name declared by several files")
	}

	var err error
	switch {
	case walkErr != nil:
		err = fmt.Errorf("walk %s: %w", root, walkErr)
	case len(res.Failures) > 0:
		err = &RunError{Failures: res.Failures}
	}
	eventbus.Publish(ctx, p.opt.Bus, events.RunFinish{
		Root:       root,
		Files:      res.Files,
		Signed:     res.Signed,
		Operations: res.Signatures.Len(),
		Skipped:    res.Skipped,
		Failed:     len(res.Failures),
		Err:        err,
		Duration:   res.Duration,
	})
	log.WithFields(logrus.Fields{
		"files":    res.Files,
		"signed":   res.Signed,
		"skipped":  res.Skipped,
		"failed":   len(res.Failures),
		"duration": res.Duration,
	}).Info("signing run finished")
	return res, err
}

// handle runs on a worker goroutine.
func (p *Pipeline) handle(ctx context.Context, path string) outcome {
	start := time.Now()
	eventbus.Publish(ctx, p.opt.Bus, events.FileStart{Path: path})
	o := p.process(ctx, path)

	fin := events.FileFinish{Path: path, Duration: time.Since(start)}
	log := p.opt.Logger.WithField("path", path)
	switch {
	case o.err != nil:
		fin.Outcome, fin.Err = events.OutcomeFailed, o.err
		log.WithError(o.err).Error("extraction failed")
	case o.entry != nil:
		fin.Outcome, fin.Name = events.OutcomeSigned, o.entry.Name
		log.WithField("name", o.entry.Name).Debug("signed")
	default:
		fin.Outcome = events.OutcomeSkipped
		log.Debug("no descriptor")
	}
	eventbus.Publish(ctx, p.opt.Bus, fin)
	return o
}

func (p *Pipeline) process(ctx context.Context, path string) outcome {
	content, err := os.ReadFile(path)
	if err != nil {
		return outcome{path: path, err: err}
	}
	d, err := p.extractor.Extract(ctx, content)
	if errors.Is(err, descriptor.ErrNoDescriptor) {
		return outcome{path: path}
	}
	if err != nil {
		return outcome{path: path, err: err}
	}

	entry := &signatures.Entry{
		Name:      d.Name,
		Signature: p.key.Sign(d.Text).Hex(),
		Source:    path,
		Kind:      d.OperationKind,
	}
	if entry.Kind == "" && p.opt.OperationKinds {
		if kind, err := language.OperationKind(d.Text, d.Name); err == nil {
			entry.Kind = string(kind)
		} else {
			p.opt.Logger.WithField("path", path).WithError(err).Debug("cannot determine operation kind")
		}
	}
	return outcome{path: path, entry: entry}
}

func strategyName(ex descriptor.Extractor) string {
	switch ex.(type) {
	case *descriptor.StructuralExtractor:
		return descriptor.Structural.String()
	case *descriptor.TextualExtractor:
		return descriptor.Textual.String()
	default:
		return fmt.Sprintf("%T", ex)
	}
}
