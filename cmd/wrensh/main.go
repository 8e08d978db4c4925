// Command wrensh is the interactive shell built on top of the
// internal/jobexec core. It wires internal/complete's RuleSet,
// Autoloader, Highlighter, Completer, and Autosuggester to a
// github.com/peterh/liner read loop, matching the way the teacher's
// ChatCLI.Start wires cli.completer/historyManager to a *liner.State.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/peterh/liner"
	"go.uber.org/zap"

	"github.com/diillson/wrensh/internal/complete"
	"github.com/diillson/wrensh/internal/env"
	"github.com/diillson/wrensh/internal/jobexec"
	"github.com/diillson/wrensh/internal/logging"
	"github.com/diillson/wrensh/internal/metrics"
	"github.com/diillson/wrensh/internal/parsetree"
	"github.com/diillson/wrensh/internal/shellconfig"
	"github.com/diillson/wrensh/internal/shtypes"
	"github.com/diillson/wrensh/internal/token"
	"github.com/diillson/wrensh/internal/version"
)

func main() {
	var (
		showVersion = flag.Bool("version", false, "print the version and exit")
		showHelp    = flag.Bool("help", false, "print usage and exit")
		command     = flag.String("c", "", "run command and exit, like sh -c")
		metricsAddr = flag.Int("metrics-port", 0, "serve Prometheus metrics on this port (0 disables)")
		dumpRules   = flag.Bool("dump-rules", false, "print every loaded completion rule as YAML and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String("wrensh"))
		return
	}
	if *showHelp {
		printUsage()
		return
	}

	logger := logging.New(logging.Options{
		Level:   os.Getenv("WRENSH_LOG_LEVEL"),
		Env:     os.Getenv("WRENSH_ENV"),
		LogFile: os.Getenv("WRENSH_LOG_FILE"),
	})
	defer logger.Sync()

	cfg := shellconfig.New(logger)
	cfg.Load()

	jobMetrics := metrics.NewJobMetrics()
	completionMetrics := metrics.NewCompletionMetrics()
	if *metricsAddr > 0 {
		srv := metrics.NewServer(*metricsAddr, logger)
		srv.Start()
	}

	e := env.NewFromOS()
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "/"
	}

	ex := jobexec.New(e, cwd, logger, jobMetrics, cfg)

	rules := complete.NewRuleSet()
	completeDir := cfg.GetString("WRENSH_COMPLETE_PATH")
	autoloader, err := complete.NewAutoloader(completeDir, rules, logger, completionMetrics)
	if err != nil {
		logger.Warn("completion autoload disabled", zap.Error(err))
	} else {
		defer autoloader.Close()
	}

	if *dumpRules {
		out, err := rules.Dump()
		if err != nil {
			fmt.Fprintln(os.Stderr, "wrensh: dump-rules:", err)
			os.Exit(1)
		}
		os.Stdout.Write(out)
		return
	}

	if *command != "" {
		status, errs := ex.Execute(*command)
		for _, e := range errs {
			fmt.Fprintln(os.Stderr, e.Error())
		}
		os.Exit(status)
	}

	if flag.NArg() > 0 {
		runScript(ex, flag.Arg(0))
		return
	}

	runInteractive(ex, rules, logger)
}

func runScript(ex *jobexec.Executor, path string) {
	src, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "wrensh: %s: %v\n", path, err)
		os.Exit(1)
	}
	status, errs := ex.Execute(string(src))
	for _, e := range errs {
		fmt.Fprintln(os.Stderr, e.Error())
	}
	os.Exit(status)
}

func printUsage() {
	fmt.Println("usage: wrensh [-c command] [script]")
	flag.PrintDefaults()
}

// shellState bundles everything the liner completer/highlighter
// callbacks close over, since liner.Completer only takes the raw line.
type shellState struct {
	ex          *jobexec.Executor
	completer   *complete.Completer
	highlighter *complete.Highlighter
	suggester   *complete.Autosuggester
	history     []string
}

func runInteractive(ex *jobexec.Executor, rules *complete.RuleSet, logger *zap.Logger) {
	st := &shellState{
		ex: ex,
		completer: &complete.Completer{
			Env:           ex.Env.Snapshot(),
			Cwd:           ex.Cwd,
			Rules:         rules,
			Functions:     ex.FunctionNames,
			ConditionEval: func(script string) bool { status, _ := ex.Execute(script); return status == 0 },
		},
		highlighter: &complete.Highlighter{
			Env:       ex.Env.Snapshot(),
			Cwd:       ex.Cwd,
			Functions: ex.IsFunction,
		},
		suggester: &complete.Autosuggester{Env: ex.Env.Snapshot(), Cwd: ex.Cwd},
	}

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)
	line.SetWordCompleter(st.wordCompleter)

	historyPath := historyFilePath()
	if f, err := os.Open(historyPath); err == nil {
		if _, err := line.ReadHistory(f); err != nil {
			logger.Warn("failed to read history", zap.Error(err))
		}
		f.Close()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	fmt.Println(version.String("wrensh"))
	for {
		select {
		case <-ctx.Done():
			saveHistory(line, historyPath, logger)
			return
		default:
		}

		st.refreshSnapshots(ex)
		prompt := promptString(ex)
		input, err := line.Prompt(prompt)
		if err != nil {
			if err == liner.ErrPromptAborted || err == io.EOF {
				saveHistory(line, historyPath, logger)
				return
			}
			logger.Error("prompt read failed", zap.Error(err))
			continue
		}

		trimmed := strings.TrimSpace(input)
		if trimmed == "" {
			continue
		}
		if trimmed == "exit" || trimmed == "quit" {
			saveHistory(line, historyPath, logger)
			return
		}

		line.AppendHistory(input)
		st.history = append(st.history, input)

		status, errs := ex.Execute(input)
		for _, e := range errs {
			fmt.Fprintln(os.Stderr, e.Error())
		}
		_ = status
	}
}

func (st *shellState) refreshSnapshots(ex *jobexec.Executor) {
	snap := ex.Env.Snapshot()
	st.completer.Env = snap
	st.completer.Cwd = ex.Cwd
	st.highlighter.Env = snap
	st.highlighter.Cwd = ex.Cwd
	st.suggester.Env = snap
	st.suggester.Cwd = ex.Cwd
}

// wordCompleter adapts complete.Completer's tree-based API to
// liner.WordCompleter's (head, completions, tail) contract: liner
// replaces whatever lies between head and tail with the chosen
// completion plus a trailing space.
func (st *shellState) wordCompleter(line string, pos int) (string, []string, string) {
	tree := parseForCompletion(line)
	results := st.completer.Complete(&tree, line, pos)
	if len(results) == 0 {
		return line[:pos], nil, line[pos:]
	}

	start := wordStart(line, pos)
	texts := make([]string, 0, len(results))
	for _, r := range results {
		texts = append(texts, r.Text)
	}
	return line[:start], texts, line[pos:]
}

// parseForCompletion parses as much of an in-progress line as it can,
// per spec.md §4.E's mandated ContinueAfterError|IncludeComments|
// AcceptIncomplete mode.
func parseForCompletion(src string) shtypes.Tree {
	toks := token.Tokenize(src, token.AcceptUnfinished)
	tree, _ := parsetree.Parse(src, toks, parsetree.ContinueAfterError|parsetree.IncludeComments|parsetree.AcceptIncomplete)
	return tree
}

func wordStart(line string, pos int) int {
	i := pos
	for i > 0 && !isWordBoundary(line[i-1]) {
		i--
	}
	return i
}

func isWordBoundary(b byte) bool {
	switch b {
	case ' ', '\t', '|', '&', ';', '<', '>', '(', ')':
		return true
	}
	return false
}

// SOH/STX (\x01/\x02) mark the span of a prompt that liner must not
// count toward the visible cursor column, so escape codes inside it
// don't throw off line-editing math.
const (
	ignoreStart = "\x01"
	ignoreEnd   = "\x02"
)

const (
	colorCyan  = "\x1b[36m"
	colorReset = "\x1b[0m"
)

func promptColorize(text, color string) string {
	return ignoreStart + color + ignoreEnd + text + ignoreStart + colorReset + ignoreEnd
}

func promptString(ex *jobexec.Executor) string {
	base := filepath.Base(ex.Cwd)
	return promptColorize(base, colorCyan) + "> "
}

func historyFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".wrensh_history"
	}
	return filepath.Join(home, ".wrensh_history")
}

// maxHistoryBytes caps the on-disk history file; once exceeded the old
// file is rotated aside rather than silently truncated.
const maxHistoryBytes = 1 * 1024 * 1024

func saveHistory(line *liner.State, path string, logger *zap.Logger) {
	if info, err := os.Stat(path); err == nil && info.Size() >= maxHistoryBytes {
		backup := fmt.Sprintf("%s.bak-%d", path, time.Now().Unix())
		if err := os.Rename(path, backup); err != nil {
			logger.Warn("failed to rotate history", zap.Error(err))
		} else {
			logger.Info("rotated history file", zap.String("backup", backup))
		}
	}

	f, err := os.Create(path)
	if err != nil {
		logger.Warn("failed to save history", zap.Error(err))
		return
	}
	defer f.Close()
	if _, err := line.WriteHistory(f); err != nil {
		logger.Warn("failed to write history", zap.Error(err))
	}
}
