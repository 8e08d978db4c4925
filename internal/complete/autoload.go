package complete

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/diillson/wrensh/internal/metrics"
	"github.com/diillson/wrensh/internal/parsetree"
	"github.com/diillson/wrensh/internal/token"
)

// Autoloader watches a completion-script directory (one ".wrensh" file
// per command, by convention named after it) and keeps the RuleSet in
// sync with it, debouncing bursts of filesystem events the way the
// teacher's plugin manager does.
type Autoloader struct {
	dir     string
	rules   *RuleSet
	logger  *zap.Logger
	metrics *metrics.CompletionMetrics
	watcher *fsnotify.Watcher

	// limiter caps reparse throughput independent of the debounce timer
	// above: debounce batches a single burst of events into one flush,
	// but a directory under heavy churn (many distinct files rewritten
	// in sequence) can still issue reparses faster than worth doing.
	limiter *rate.Limiter

	closeOnce sync.Once
}

func NewAutoloader(dir string, rules *RuleSet, logger *zap.Logger, m *metrics.CompletionMetrics) (*Autoloader, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	a := &Autoloader{
		dir:     dir,
		rules:   rules,
		logger:  logger,
		metrics: m,
		watcher: watcher,
		limiter: rate.NewLimiter(rate.Every(50*time.Millisecond), 4),
	}
	a.ReloadAll()
	if err := watcher.Add(dir); err != nil {
		logger.Warn("could not watch completion autoload directory", zap.Error(err), zap.String("dir", dir))
	}
	go a.watch()
	return a, nil
}

func (a *Autoloader) Close() {
	a.closeOnce.Do(func() {
		a.watcher.Close()
	})
}

func (a *Autoloader) watch() {
	var timer *time.Timer
	pending := make(map[string]struct{})
	var mu sync.Mutex

	flush := func() {
		mu.Lock()
		files := make([]string, 0, len(pending))
		for f := range pending {
			files = append(files, f)
		}
		pending = make(map[string]struct{})
		mu.Unlock()
		for _, f := range files {
			a.reloadOne(f)
		}
	}

	for {
		select {
		case ev, ok := <-a.watcher.Events:
			if !ok {
				return
			}
			if !strings.HasSuffix(ev.Name, ".wrensh") {
				continue
			}
			mu.Lock()
			pending[ev.Name] = struct{}{}
			mu.Unlock()
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(500*time.Millisecond, flush)
		case err, ok := <-a.watcher.Errors:
			if !ok {
				return
			}
			a.logger.Error("completion autoload watch error", zap.Error(err))
		}
	}
}

// ReloadAll parses every *.wrensh file in the autoload directory once,
// used at startup and available for a manual "reload completions".
func (a *Autoloader) ReloadAll() {
	entries, err := os.ReadDir(a.dir)
	if err != nil {
		a.logger.Error("could not read completion autoload directory", zap.Error(err), zap.String("dir", a.dir))
		return
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".wrensh") {
			continue
		}
		a.reloadOne(filepath.Join(a.dir, e.Name()))
	}
}

func (a *Autoloader) reloadOne(path string) {
	if a.limiter != nil {
		_ = a.limiter.Wait(context.Background())
	}
	reloadID := uuid.New()
	command := strings.TrimSuffix(filepath.Base(path), ".wrensh")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			a.rules.Remove(command)
			if a.metrics != nil {
				a.metrics.AutoloadEvictions.Inc()
			}
			return
		}
		a.logger.Warn("could not read completion script", zap.String("path", path), zap.Error(err))
		return
	}

	src := string(data)
	toks := token.Tokenize(src, 0)
	tree, errs := parsetree.Parse(src, toks, parsetree.ContinueAfterError)
	if errs.HasAny() {
		a.logger.Warn("completion script has syntax errors, skipping", zap.String("path", path))
		return
	}
	entries := parseCompleteCalls(&tree, src, command)
	for _, e := range entries {
		a.rules.AddOption(e.command, false, e.option)
	}
	if a.metrics != nil {
		a.metrics.AutoloadReparses.Inc()
	}
	a.logger.Debug("reloaded completion script",
		zap.String("reload_id", reloadID.String()),
		zap.String("command", command),
		zap.Int("options", len(entries)))
}
