// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package main

import (
	"fmt"
	"io"
	"os"
	"runtime/pprof"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Fantom-foundation/vmtests/go/jsontests"
	"github.com/dsnet/golib/unitconv"
	"github.com/urfave/cli/v2"
)

var RunCmd = cli.Command{
	Action:    doRun,
	Name:      "run",
	Usage:     "Run VM test fixtures on an interpreter",
	ArgsUsage: "<path>...",
	Flags: []cli.Flag{
		&EngineFlag.flag,
		&RevisionFlag.flag,
		&FilterFlag.flag,
		&JobsFlag.flag,
		&FailFastFlag.flag,
		&CpuProfileFlag.flag,
	},
}

// progressInterval is the period of progress reports printed while running.
const progressInterval = 5 * time.Second

func doRun(context *cli.Context) error {
	if cpuprofileFilename := CpuProfileFlag.Fetch(context); cpuprofileFilename != "" {
		f, err := os.Create(cpuprofileFilename)
		if err != nil {
			return fmt.Errorf("could not create CPU profile: %w", err)
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			return fmt.Errorf("could not start CPU profile: %w", err)
		}
		defer pprof.StopCPUProfile()
	}

	interpreter, err := EngineFlag.Fetch(context)
	if err != nil {
		return err
	}
	revision, err := RevisionFlag.Fetch(context)
	if err != nil {
		return err
	}
	filter, err := FilterFlag.Fetch(context)
	if err != nil {
		return err
	}

	fixtures, loadErrors, err := loadFixtures(context, filter)
	if err != nil {
		return err
	}

	out := context.App.Writer
	for _, err := range loadErrors {
		fmt.Fprintf(out, "Error: %v\n", err)
	}

	cfg := jsontests.DefaultConfig(interpreter)
	cfg.Revision = revision
	cfg.Jobs = JobsFlag.Fetch(context)
	cfg.FailFast = FailFastFlag.Fetch(context)

	fmt.Fprintf(out, "Running %d fixtures on %s using %v rules ...\n", len(fixtures), EngineFlag.name(context), revision)

	var (
		mu      sync.Mutex
		counter atomic.Int64
		failed  atomic.Int64
	)
	stopProgress := startProgressPrinter(out, &mu, &counter, &failed)
	report, err := jsontests.RunSuite(context.Context, fixtures, cfg, func(verdict jsontests.Verdict) {
		counter.Add(1)
		if !verdict.Passed() {
			failed.Add(1)
		}
		mu.Lock()
		defer mu.Unlock()
		printVerdict(out, verdict)
	})
	stopProgress()
	if err != nil {
		return err
	}

	// Summarize the result.
	for _, verdict := range report.Failures() {
		fmt.Fprintf(out, "----------------------------\n")
		fmt.Fprintf(out, "%s: %v\n", verdict.Name, verdict.Err)
	}
	if report.Skipped > 0 {
		fmt.Fprintf(out, "Number of skipped fixtures: %d\n", report.Skipped)
	}

	numFailures := report.Failed + len(loadErrors)
	if numFailures == 0 {
		fmt.Fprintf(out, "All %d fixtures passed successfully!\n", report.Passed)
		return nil
	}
	return fmt.Errorf("failed to pass %d of %d fixtures", numFailures, len(report.Verdicts)+report.Skipped+len(loadErrors))
}

func printVerdict(out io.Writer, verdict jsontests.Verdict) {
	reason := "-"
	if verdict.Executed {
		reason = verdict.Reason.String()
	}
	status := "succeed"
	if !verdict.Passed() {
		status = "FAILED"
	}
	fmt.Fprintf(out, "%s ... %s %s\n", verdict.Name, reason, status)
}

// startProgressPrinter periodically reports the progress of a run until the
// returned function is called, which prints a final report.
func startProgressPrinter(out io.Writer, mu *sync.Mutex, counter, failed *atomic.Int64) func() {
	done := make(chan struct{})
	printerDone := make(chan struct{})
	go func() {
		defer close(printerDone)
		ticker := time.NewTicker(progressInterval)
		defer ticker.Stop()
		startTime := time.Now()
		lastTime := startTime
		lastCounter := int64(0)

		printProgress := func(now time.Time) {
			cur := counter.Load()
			rate := formatRate(cur-lastCounter, now.Sub(lastTime))
			lastTime = now
			lastCounter = cur

			relativeTime := now.Sub(startTime)
			mu.Lock()
			defer mu.Unlock()
			fmt.Fprintf(out,
				"[t=%4d:%02d] - Processing ~%s fixtures per second, total %d, failed %d\n",
				int(relativeTime.Seconds())/60, int(relativeTime.Seconds())%60,
				rate, cur, failed.Load(),
			)
		}

		for {
			select {
			case <-done:
				printProgress(time.Now())
				return
			case now := <-ticker.C:
				printProgress(now)
			}
		}
	}()
	return func() {
		close(done)
		<-printerDone
	}
}

// formatRate formats the number of fixtures processed per second, or "?" if
// no time has passed.
func formatRate(count int64, elapsed time.Duration) string {
	if elapsed <= 0 {
		return "?"
	}
	return unitconv.FormatPrefix(float64(count)/elapsed.Seconds(), unitconv.SI, 0)
}
