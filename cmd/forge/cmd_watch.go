package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ndjc/forge/internal/pipeline"
)

var watchCmd = &cobra.Command{
	Use:   "watch [directory]",
	Short: "Watch a directory and run contracts as they arrive",
	Long: `Watches a drop directory for contract JSON files and feeds each new
file through the pipeline. Processed files are renamed with a status
suffix so a crashed watcher never reprocesses finished work.

Stop with Ctrl-C.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	pl, led, err := buildPipeline(cfg)
	if err != nil {
		return err
	}
	defer led.Close()

	dir := args[0]
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	// Catch contracts dropped before the watcher started.
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if isContractFile(e.Name()) {
			processDropped(cmd, pl, filepath.Join(dir, e.Name()))
		}
	}

	logger.Info("watching for contracts", zap.String("dir", dir))
	for {
		select {
		case <-cmd.Context().Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) {
				continue
			}
			if !isContractFile(filepath.Base(event.Name)) {
				continue
			}
			// Writers may still be flushing when the event fires.
			time.Sleep(100 * time.Millisecond)
			processDropped(cmd, pl, event.Name)
		case werr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch error", zap.Error(werr))
		}
	}
}

func isContractFile(name string) bool {
	return strings.HasSuffix(name, ".json") &&
		!strings.HasSuffix(name, ".done.json") &&
		!strings.HasSuffix(name, ".failed.json")
}

func processDropped(cmd *cobra.Command, pl *pipeline.Pipeline, path string) {
	ct, err := readContract(path)
	if err != nil {
		logger.Warn("dropped file is not a contract", zap.String("path", path), zap.Error(err))
		markProcessed(path, false)
		return
	}
	outcome, err := pl.Run(cmd.Context(), ct)
	if outcome != nil {
		printOutcome(path, outcome)
	}
	if err != nil {
		logger.Warn("run failed", zap.String("path", path), zap.Error(err))
	}
	markProcessed(path, err == nil)
}

func markProcessed(path string, ok bool) {
	suffix := ".failed.json"
	if ok {
		suffix = ".done.json"
	}
	dst := strings.TrimSuffix(path, ".json") + suffix
	if err := os.Rename(path, dst); err != nil {
		logger.Warn("could not mark contract processed", zap.String("path", path), zap.Error(err))
	}
}
