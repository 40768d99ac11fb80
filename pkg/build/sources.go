package build

import (
	"context"
	"errors"
	"path/filepath"
	"sort"
	"sync"

	"github.com/kilnpkg/kiln/pkg/deps"
	"github.com/kilnpkg/kiln/pkg/logging"
)

// runPass applies fn to every source file, fanning out over p.jobs
// workers. Compiler invocations run lock-free; workers take the graph
// lock only to publish results. All failures are collected and reported
// together, sorted for stable output.
func (p *Planner) runPass(ctx context.Context, sources []string, fn func(context.Context, string) error) error {
	if p.jobs == 1 {
		var errs []error
		for _, src := range sources {
			if err := fn(ctx, src); err != nil {
				errs = append(errs, err)
			}
		}
		return joinSorted(errs)
	}

	jobs := make(chan string)
	var wg sync.WaitGroup

	var errMu sync.Mutex
	var errs []error

	for i := 0; i < p.jobs; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for src := range jobs {
				if err := fn(ctx, src); err != nil {
					errMu.Lock()
					errs = append(errs, err)
					errMu.Unlock()
				}
			}
		}()
	}
	for _, src := range sources {
		jobs <- src
	}
	close(jobs)
	wg.Wait()

	return joinSorted(errs)
}

func joinSorted(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	sort.Slice(errs, func(i, j int) bool {
		return errs[i].Error() < errs[j].Error()
	})
	return errors.Join(errs...)
}

// processSrc extracts one source file's header dependencies and declares
// its compile target.
func (p *Planner) processSrc(ctx context.Context, src string) error {
	ex, err := p.extractor.Extract(ctx, src, false)
	if err != nil {
		return err
	}
	objTarget := filepath.Join(deps.MirrorDir(src, p.Manifest.SrcDir(), p.objDir), ex.Target)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.objTargets[objTarget] = struct{}{}
	p.defineCompileTarget(objTarget, src, ex.Headers, false)
	return nil
}

// processTestSrc declares a test object and test binary for src when it
// contains effective test code. Runs after the source pass so the object
// closure can see every compile target.
func (p *Planner) processTestSrc(ctx context.Context, src string) error {
	hasTest, err := p.detector.ContainsTestCode(ctx, src)
	if err != nil {
		return err
	}
	if !hasTest {
		return nil
	}

	ex, err := p.extractor.Extract(ctx, src, true)
	if err != nil {
		return err
	}

	testDir := deps.MirrorDir(src, p.Manifest.SrcDir(), p.testDir)
	testObj := filepath.Join(testDir, ex.Target)
	testBin := testObj + ".test"

	logging.DebugContext(ctx, "defining test target", "bin", testBin)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.defineCompileTarget(testObj, src, ex.Headers, true)

	testDeps := map[string]struct{}{testObj: {}}
	p.resolver.Collect(testDeps, deps.Stem(src), ex.Headers, p.objTargets)
	p.g.DefineTarget(testBin, []string{linkBinCommand}, testDeps, "")
	p.testTargets[testBin] = struct{}{}
	return nil
}
