package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// PolicySlotApplier installs newSource for the named policy slot,
// matching engine.Engine.SetPolicyFn's signature so the watcher can call
// straight into it without this package depending on engine.
type PolicySlotApplier func(slot, newSource string) (string, error)

// PolicyWatcher watches a directory of policy source files and hot-swaps
// the corresponding policy slot through apply whenever a watched file
// changes, so decayFn/recallScoreFn/etc. can be edited without a process
// restart. A file's base name (minus extension) must match one of
// feedback.PolicySlots for its changes to be applied.
type PolicyWatcher struct {
	dir     string
	apply   PolicySlotApplier
	logger  *zap.Logger
	watcher *fsnotify.Watcher
	stopCh  chan struct{}

	mu      sync.Mutex
	timers  map[string]*time.Timer
}

// NewPolicyWatcher starts watching dir for changes to files named after
// policy slots (e.g. "recall-score.scm"). slots restricts which base
// names are recognized.
func NewPolicyWatcher(dir string, slots []string, apply PolicySlotApplier, logger *zap.Logger) (*PolicyWatcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create policy file watcher: %w", err)
	}
	if err := fsWatcher.Add(dir); err != nil {
		fsWatcher.Close()
		return nil, fmt.Errorf("watch policy dir %s: %w", dir, err)
	}

	pw := &PolicyWatcher{
		dir: dir, apply: apply, logger: logger, watcher: fsWatcher,
		stopCh: make(chan struct{}), timers: make(map[string]*time.Timer),
	}

	slotSet := make(map[string]bool, len(slots))
	for _, s := range slots {
		slotSet[s] = true
	}

	go pw.loop(slotSet)
	logger.Info("policy hot reload enabled", zap.String("dir", dir))
	return pw, nil
}

const policyReloadDebounce = 300 * time.Millisecond

func (pw *PolicyWatcher) loop(slots map[string]bool) {
	defer pw.watcher.Close()

	for {
		select {
		case event, ok := <-pw.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			slot := slotNameFor(event.Name)
			if !slots[slot] {
				continue
			}
			pw.debounce(slot, event.Name)

		case err, ok := <-pw.watcher.Errors:
			if !ok {
				return
			}
			pw.logger.Error("policy file watcher error", zap.Error(err))

		case <-pw.stopCh:
			return
		}
	}
}

func (pw *PolicyWatcher) debounce(slot, path string) {
	pw.mu.Lock()
	defer pw.mu.Unlock()

	if t, ok := pw.timers[slot]; ok {
		t.Stop()
	}
	pw.timers[slot] = time.AfterFunc(policyReloadDebounce, func() { pw.reload(slot, path) })
}

func (pw *PolicyWatcher) reload(slot, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		pw.logger.Error("read policy source", zap.String("slot", slot), zap.Error(err))
		return
	}

	id, err := pw.apply(slot, string(data))
	if err != nil {
		pw.logger.Error("apply hot-reloaded policy", zap.String("slot", slot), zap.Error(err))
		return
	}
	pw.logger.Info("policy slot hot-reloaded", zap.String("slot", slot), zap.String("version", id))
}

// Stop stops the watcher goroutine.
func (pw *PolicyWatcher) Stop() {
	close(pw.stopCh)
}

func slotNameFor(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
