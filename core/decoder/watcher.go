// ===== Weight reloading =====

package decoder

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDebounce coalesces the event bursts editors and atomic writes
// produce into one reload.
const reloadDebounce = 200 * time.Millisecond

// WatchWeights hot-reloads the weights file whenever it changes on disk,
// until ctx is cancelled. The containing directory is watched rather
// than the file itself, so replace-by-rename keeps triggering.
func (d *Decoder) WatchWeights(ctx context.Context) error {
	if d.weightsPath == "" {
		return ErrNoWeightsFile
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("decoder: watch weights: %w", err)
	}
	if err := w.Add(filepath.Dir(d.weightsPath)); err != nil {
		w.Close()
		return fmt.Errorf("decoder: watch weights: %w", err)
	}
	go d.watchLoop(ctx, w)
	return nil
}

func (d *Decoder) watchLoop(ctx context.Context, w *fsnotify.Watcher) {
	defer w.Close()
	target := filepath.Clean(d.weightsPath)
	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			pending = time.After(reloadDebounce)
		case <-pending:
			pending = nil
			if err := d.ReloadWeights(); err != nil {
				d.logger.Warn("weight reload failed, keeping current weights", "error", err)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			d.logger.Warn("weights watcher error", "error", err)
		}
	}
}

// ReloadWeights rereads the weights file and swaps in a fresh ensemble.
// In-flight decodes finish under the weights they started with; the
// translation cache is dropped since cached scores no longer hold.
func (d *Decoder) ReloadWeights() error {
	w, err := loadWeights(d.weightsPath)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	ens, err := buildEnsemble(d.cfg, d.vocab, w, d.grammars)
	if err != nil {
		return err
	}
	d.weights = w
	d.ens = ens
	d.models = ens.Estimators()
	for _, g := range d.grammars {
		if inv, ok := g.(interface{ Invalidate() }); ok {
			inv.Invalidate()
		}
		g.Sort(d.models)
	}
	if d.cache != nil {
		d.cache.Purge()
	}
	d.metrics.Reloads.Inc()
	d.logger.Info("weights reloaded", "path", d.weightsPath, "weights", w.Len())
	return nil
}
