package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/npillmayer/rulegen/codegen"
	"github.com/npillmayer/rulegen/rules"
	"github.com/npillmayer/rulegen/ruleslang"
	"github.com/npillmayer/rulegen/schema"
	"github.com/pkg/errors"
	"github.com/pterm/pterm"
	"golang.org/x/sync/errgroup"
)

// job is a set of rule files compiled against a common schema.
type job struct {
	rules  []string
	schema string
	out    string // output directory
	pkg    string // package clause of generated code, may be empty
}

func newJob(rules []string, schema string) *job {
	return &job{rules: rules, schema: schema, out: "."}
}

// inputs lists all files a job reads.
func (j *job) inputs() []string {
	return append(append([]string{}, j.rules...), j.schema)
}

// compile parses and compiles all rule files concurrently. Every file gets its
// own compiler state; the schema is shared read-only. The first error cancels
// the remaining files.
func (j *job) compile(ctx context.Context) ([]*rules.Program, error) {
	s, err := schema.Load(j.schema)
	if err != nil {
		return nil, err
	}
	progs := make([]*rules.Program, len(j.rules))
	g, gctx := errgroup.WithContext(ctx)
	for i, path := range j.rules {
		i, path := i, path
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rs, err := ruleslang.LoadRules(path, s)
			if err != nil {
				return err
			}
			prog, err := rules.Compile(path, rs, s)
			if err != nil {
				return err
			}
			progs[i] = prog
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return progs, nil
}

// emit generates code for all programs concurrently.
func (j *job) emit(ctx context.Context, progs []*rules.Program) ([]*codegen.Result, error) {
	results := make([]*codegen.Result, len(progs))
	g, gctx := errgroup.WithContext(ctx)
	for i, prog := range progs {
		i, prog := i, prog
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := codegen.Generate(prog, codegen.Options{Package: j.pkg})
			if err != nil {
				return errors.Wrapf(err, "%s", prog.File)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	origin := make(map[string]string, len(results))
	for i, res := range results {
		if other, ok := origin[res.DeclName]; ok {
			return nil, errors.Errorf("%s and %s would both generate %s", other, progs[i].File, res.DeclName)
		}
		origin[res.DeclName] = progs[i].File
	}
	return results, nil
}

// run compiles and generates all rule files of a job. Files are written only
// after every rule file has been compiled successfully. run returns the paths
// of the files written; outputs which are up to date are not rewritten.
func (j *job) run(ctx context.Context) ([]string, error) {
	progs, err := j.compile(ctx)
	if err != nil {
		return nil, err
	}
	results, err := j.emit(ctx, progs)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(j.out, 0o755); err != nil {
		return nil, errors.Wrapf(err, "cannot create output directory %s", j.out)
	}
	var written []string
	for _, res := range results {
		decl := filepath.Join(j.out, res.DeclName)
		impl := filepath.Join(j.out, res.ImplName)
		if upToDate(decl, res.Decl, impl, res.Impl, res.Fingerprint) {
			tracer().Infof("%s is up to date", decl)
			continue
		}
		if err := os.WriteFile(decl, res.Decl, 0o644); err != nil {
			return written, errors.Wrapf(err, "cannot write %s", decl)
		}
		written = append(written, decl)
		if err := os.WriteFile(impl, res.Impl, 0o644); err != nil {
			return written, errors.Wrapf(err, "cannot write %s", impl)
		}
		written = append(written, impl)
	}
	return written, nil
}

// generate runs a job and reports the outcome.
func (j *job) generate(ctx context.Context) error {
	written, err := j.run(ctx)
	if err != nil {
		return err
	}
	if len(written) == 0 {
		pterm.Info.Println("all outputs are up to date")
	}
	for _, f := range written {
		pterm.Info.Println(fmt.Sprintf("wrote %s", f))
	}
	return nil
}

// check compiles the rule files of a job and reports their sizes.
func (j *job) check(ctx context.Context) error {
	progs, err := j.compile(ctx)
	if err != nil {
		return err
	}
	for _, p := range progs {
		pterm.Info.Println(fmt.Sprintf("%s: %d rules for %d operators", p.File, p.Size(), len(p.Groups)))
	}
	return nil
}

// upToDate is true if the files on disk carry the current fingerprint and
// content.
func upToDate(declPath string, decl []byte, implPath string, impl []byte, fingerprint string) bool {
	old, err := os.ReadFile(declPath)
	if err != nil {
		return false
	}
	if codegen.FingerprintOf(old) != fingerprint {
		tracer().Debugf("%s is stale", declPath)
		return false
	}
	if !bytes.Equal(old, decl) {
		return false
	}
	oldImpl, err := os.ReadFile(implPath)
	return err == nil && bytes.Equal(oldImpl, impl)
}
