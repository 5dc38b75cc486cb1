// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package jsontests

import (
	"context"
	"runtime"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Fantom-foundation/vmtests/go/jsontests/fixture"
	"github.com/Fantom-foundation/vmtests/go/tosca"
	"github.com/ethereum/go-ethereum/log"
	"golang.org/x/sync/errgroup"
)

// Config summarizes the options of running fixtures.
type Config struct {
	Interpreter tosca.Interpreter
	Revision    tosca.Revision
	Limits      tosca.Limits
	// Jobs is the number of fixtures run in parallel, NumCPU if not positive.
	Jobs int
	// FailFast stops the dispatching of further fixtures after the first
	// failure.
	FailFast bool
}

// DefaultConfig returns a configuration running fixtures on the given
// interpreter using the Frontier rules and the limits of the EVM.
func DefaultConfig(interpreter tosca.Interpreter) Config {
	return Config{
		Interpreter: interpreter,
		Revision:    tosca.R00_Frontier,
		Limits:      tosca.DefaultLimits,
		Jobs:        runtime.NumCPU(),
	}
}

// Verdict is the result of running a single fixture.
type Verdict struct {
	Name string
	// Reason is the exit reason of the execution, valid if Executed is set.
	Reason   tosca.ExitReason
	Executed bool
	// Err is nil if the fixture passed.
	Err     error
	Elapsed time.Duration
}

func (v *Verdict) Passed() bool {
	return v.Err == nil
}

// Report summarizes the verdicts of a suite run.
type Report struct {
	// Verdicts is sorted by fixture name.
	Verdicts []Verdict
	Passed   int
	Failed   int
	// Skipped counts fixtures not run due to a cancellation or FailFast.
	Skipped int
}

// Failures lists the verdicts of all failed fixtures.
func (r *Report) Failures() []Verdict {
	var res []Verdict
	for _, verdict := range r.Verdicts {
		if !verdict.Passed() {
			res = append(res, verdict)
		}
	}
	return res
}

// RunFixture runs a single fixture: its inputs are built, executed, and the
// outcome is checked against the fixture's expectations.
func RunFixture(f *fixture.Fixture, cfg Config) Verdict {
	start := time.Now()
	verdict := Verdict{Name: f.Name}
	verdict.Err = func() error {
		if err := f.Validate(); err != nil {
			return err
		}
		inputs, err := BuildInputs(f)
		if err != nil {
			return err
		}
		outcome, err := Execute(cfg.Interpreter, inputs, cfg.Revision, cfg.Limits)
		if err != nil {
			return err
		}
		verdict.Reason = outcome.Reason
		verdict.Executed = true
		return Verify(f, outcome)
	}()
	verdict.Elapsed = time.Since(start)
	return verdict
}

// RunSuite runs the given fixtures in parallel. The onVerdict callback, if
// not nil, is invoked for every completed fixture from the worker goroutines
// and must thus be thread-safe. Fixture failures are reported through the
// verdicts of the resulting report; an error is only returned if the context
// got cancelled before all fixtures could be run.
func RunSuite(ctx context.Context, fixtures []*fixture.Fixture, cfg Config, onVerdict func(Verdict)) (Report, error) {
	jobs := cfg.Jobs
	if jobs <= 0 {
		jobs = runtime.NumCPU()
	}

	var group errgroup.Group
	group.SetLimit(jobs)

	var (
		mu       sync.Mutex
		verdicts = make([]Verdict, 0, len(fixtures))
		failed   atomic.Bool
	)

	for _, f := range fixtures {
		if ctx.Err() != nil || (cfg.FailFast && failed.Load()) {
			break
		}
		f := f
		group.Go(func() error {
			if ctx.Err() != nil || (cfg.FailFast && failed.Load()) {
				return nil
			}
			verdict := RunFixture(f, cfg)
			if verdict.Passed() {
				log.Debug("Fixture passed", "name", verdict.Name, "reason", verdict.Reason, "elapsed", verdict.Elapsed)
			} else {
				log.Warn("Fixture failed", "name", verdict.Name, "err", verdict.Err)
				failed.Store(true)
			}
			mu.Lock()
			verdicts = append(verdicts, verdict)
			mu.Unlock()
			if onVerdict != nil {
				onVerdict(verdict)
			}
			return nil
		})
	}
	// Workers never fail, errors are reported through verdicts.
	_ = group.Wait()

	slices.SortFunc(verdicts, func(a, b Verdict) int {
		return strings.Compare(a.Name, b.Name)
	})
	report := Report{Verdicts: verdicts}
	for _, verdict := range verdicts {
		if verdict.Passed() {
			report.Passed++
		} else {
			report.Failed++
		}
	}
	report.Skipped = len(fixtures) - len(verdicts)

	if report.Skipped > 0 && ctx.Err() != nil {
		return report, ctx.Err()
	}
	return report, nil
}
