// Package scheduler periodically scans a drop directory for corpus exports
// and feeds unprocessed files to the processor.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/MikeSquared-Agency/helm/internal/corpus"
)

// CorpusProcessor handles one corpus export file end to end.
type CorpusProcessor interface {
	ProcessFile(ctx context.Context, path string) error
}

type Scheduler struct {
	cron      *cron.Cron
	dir       string
	statePath string
	proc      CorpusProcessor
	logger    *slog.Logger
	ctx       context.Context
	cancel    context.CancelFunc
}

func New(dir, statePath string, proc CorpusProcessor, logger *slog.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:      cron.New(cron.WithLocation(time.UTC)),
		dir:       dir,
		statePath: statePath,
		proc:      proc,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start registers the scan on the given cron schedule and starts the timer.
func (s *Scheduler) Start(schedule string) error {
	_, err := s.cron.AddFunc(schedule, func() {
		if err := s.Scan(s.ctx); err != nil {
			s.logger.Error("corpus scan failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("register scan schedule %q: %w", schedule, err)
	}
	s.cron.Start()
	s.logger.Info("corpus scan scheduled", "dir", s.dir, "schedule", schedule)
	return nil
}

// Stop halts the timer and cancels any running scan.
func (s *Scheduler) Stop() {
	s.cancel()
	s.cron.Stop()
}

// Scan processes every unprocessed, non-duplicate JSONL export in the drop
// directory, oldest path first.
func (s *Scheduler) Scan(ctx context.Context) error {
	state, err := LoadState(s.statePath)
	if err != nil {
		return fmt.Errorf("load scan state: %w", err)
	}

	paths, err := filepath.Glob(filepath.Join(s.dir, "*.jsonl"))
	if err != nil {
		return fmt.Errorf("glob corpus dir: %w", err)
	}
	sort.Strings(paths)

	var candidates []string
	var fingerprints []fileFingerprint
	for _, path := range paths {
		if state.IsProcessed(path) {
			continue
		}
		c, err := corpus.LoadJSONL(path)
		if err != nil {
			s.logger.Warn("skipping unreadable export", "path", path, "error", err)
			state.AddError(fmt.Sprintf("%s: %v", path, err))
			continue
		}
		candidates = append(candidates, path)
		fingerprints = append(fingerprints, buildFingerprint(path, c))
	}

	duplicates := findDuplicates(fingerprints)

	processed := 0
	for _, path := range candidates {
		if duplicates[path] {
			s.logger.Info("skipping duplicate export", "path", path)
			state.MarkProcessed(path)
			continue
		}
		if err := s.proc.ProcessFile(ctx, path); err != nil {
			s.logger.Error("export processing failed", "path", path, "error", err)
			state.AddError(fmt.Sprintf("%s: %v", path, err))
			continue
		}
		state.MarkProcessed(path)
		processed++
	}

	if err := state.Save(); err != nil {
		return fmt.Errorf("save scan state: %w", err)
	}

	if len(candidates) > 0 {
		s.logger.Info("corpus scan complete",
			"candidates", len(candidates),
			"processed", processed,
			"duplicates", len(duplicates),
		)
	}
	return nil
}
