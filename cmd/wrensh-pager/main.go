// Command wrensh-pager reads candidate completions from one file
// descriptor, lets the user choose one in a column UI, and writes the
// chosen completion to another file descriptor, grounded on spec.md §6
// and the teacher's term.GetSize-based terminal-width probing (see
// cli/agent/ui_renderer.go's RenderTimelineEvent).
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/mattn/go-runewidth"
	"golang.org/x/term"

	"github.com/diillson/wrensh/internal/version"
)

// Wire-format separator bytes between a completion's items and its
// shared description, and between grouped items sharing one
// description. Chosen from the control-character range so they never
// collide with ordinary completion text.
const (
	fieldSep = '\x1e' // separates the item group from the description
	itemSep  = '\x1d' // separates items that share one description
)

type candidate struct {
	items []string
	desc  string
}

func main() {
	var (
		completionFD = flag.Int("completion-fd", -1, "file descriptor to read candidate completions from (required)")
		resultFD     = flag.Int("result-fd", -1, "file descriptor to write the chosen completion to (required)")
		prefix       = flag.String("prefix", "", "text to prepend to the chosen completion")
		isQuoted     = flag.Bool("is-quoted", false, "escape double quotes in the chosen completion")
		showHelp     = flag.Bool("help", false, "print usage and exit")
		showVersion  = flag.Bool("version", false, "print the version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String("wrensh-pager"))
		return
	}
	if *showHelp {
		printUsage()
		return
	}
	if *completionFD < 0 || *resultFD < 0 {
		fmt.Fprintln(os.Stderr, "wrensh-pager: --completion-fd and --result-fd are required")
		os.Exit(1)
	}

	in := os.NewFile(uintptr(*completionFD), "completion-fd")
	out := os.NewFile(uintptr(*resultFD), "result-fd")
	if in == nil || out == nil {
		fmt.Fprintln(os.Stderr, "wrensh-pager: invalid file descriptor")
		os.Exit(1)
	}
	defer in.Close()
	defer out.Close()

	candidates := readCandidates(in)
	items := flattenItems(candidates)
	if len(items) == 0 {
		os.Exit(0)
	}

	choice, ok := runPicker(items, *prefix, *isQuoted)
	if !ok {
		os.Exit(1)
	}
	fmt.Fprintln(out, choice)
}

type item struct {
	text string
	desc string
}

func flattenItems(cands []candidate) []item {
	var out []item
	for _, c := range cands {
		for _, it := range c.items {
			out = append(out, item{text: it, desc: c.desc})
		}
	}
	return out
}

// readCandidates parses the completion-fd wire format: one line per
// candidate group, items joined by itemSep, then fieldSep, then the
// shared description (which may be empty).
func readCandidates(f *os.File) []candidate {
	var out []candidate
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		var itemsPart, desc string
		if i := strings.IndexByte(line, fieldSep); i >= 0 {
			itemsPart, desc = line[:i], line[i+1:]
		} else {
			itemsPart = line
		}
		out = append(out, candidate{items: strings.Split(itemsPart, string(itemSep)), desc: desc})
	}
	return out
}

// runPicker lays candidates out in a greedy column grid (6 down to 1
// columns, widest that fits the terminal), lets the user move the
// selection with arrow keys or Tab, and returns the chosen completion
// text (with prefix applied) on Enter.
func runPicker(items []item, prefix string, isQuoted bool) (string, bool) {
	fd := int(os.Stdin.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		// Not a real terminal (e.g. piped input in a test harness):
		// fall back to choosing the first candidate non-interactively.
		return renderText(items[0], prefix, isQuoted), true
	}
	defer term.Restore(fd, oldState)

	sigCh := make(chan os.Signal, 1)
	notifyWinch(sigCh)
	defer signal.Stop(sigCh)

	selected := 0
	cols, colWidths := layout(items)
	redraw(items, selected, cols, colWidths)

	in := bufio.NewReader(os.Stdin)
	for {
		select {
		case <-sigCh:
			cols, colWidths = layout(items)
			redraw(items, selected, cols, colWidths)
			continue
		default:
		}

		b, err := in.ReadByte()
		if err != nil {
			return "", false
		}

		switch b {
		case '\r', '\n':
			fmt.Print("\r\n")
			return renderText(items[selected], prefix, isQuoted), true
		case 3, 27: // Ctrl-C, or the start of an escape sequence / bare Esc
			if b == 3 {
				return "", false
			}
			if peekEscapeSequence(in, &selected, items, cols) {
				redraw(items, selected, cols, colWidths)
				continue
			}
			return "", false
		case '\t':
			selected = (selected + 1) % len(items)
			redraw(items, selected, cols, colWidths)
		}
	}
}

// peekEscapeSequence consumes a CSI arrow-key sequence (ESC [ A/B/C/D)
// and moves selected accordingly, reporting whether it recognized one.
func peekEscapeSequence(in *bufio.Reader, selected *int, items []item, cols int) bool {
	b1, err := in.ReadByte()
	if err != nil || b1 != '[' {
		return false
	}
	b2, err := in.ReadByte()
	if err != nil {
		return false
	}
	n := len(items)
	switch b2 {
	case 'C': // right
		*selected = (*selected + 1) % n
	case 'D': // left
		*selected = (*selected - 1 + n) % n
	case 'B': // down
		if *selected+cols < n {
			*selected += cols
		}
	case 'A': // up
		if *selected-cols >= 0 {
			*selected -= cols
		}
	default:
		return false
	}
	return true
}

// layout picks the widest column count (6 down to 1) whose grid fits
// the terminal width, per spec.md §6's greedy rule.
func layout(items []item) (cols int, colWidths []int) {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		width = 80
	}

	maxWidth := 0
	for _, it := range items {
		if w := displayWidth(it); w > maxWidth {
			maxWidth = w
		}
	}
	if maxWidth == 0 {
		maxWidth = 1
	}

	for try := 6; try >= 1; try-- {
		if try > len(items) {
			continue
		}
		rows := (len(items) + try - 1) / try
		widths := make([]int, try)
		for i, it := range items {
			c := i / rows
			if w := displayWidth(it); w > widths[c] {
				widths[c] = w
			}
		}
		total := 0
		for _, w := range widths {
			total += w + 2
		}
		if total <= width || try == 1 {
			return try, widths
		}
	}
	return 1, []int{maxWidth}
}

func displayWidth(it item) int {
	if it.desc == "" {
		return runewidth.StringWidth(it.text)
	}
	return runewidth.StringWidth(it.text) + 2 + runewidth.StringWidth(it.desc)
}

func redraw(items []item, selected, cols int, colWidths []int) {
	fmt.Print("\x1b[2J\x1b[H")
	rows := (len(items) + cols - 1) / cols
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			i := c*rows + r
			if i >= len(items) {
				continue
			}
			cell := items[i].text
			if items[i].desc != "" {
				cell = cell + "  " + items[i].desc
			}
			pad := colWidths[c] + 2 - runewidth.StringWidth(cell)
			if pad < 0 {
				pad = 0
			}
			if i == selected {
				fmt.Print("\x1b[7m" + cell + "\x1b[0m" + strings.Repeat(" ", pad))
			} else {
				fmt.Print(cell + strings.Repeat(" ", pad))
			}
		}
		fmt.Print("\r\n")
	}
}

func renderText(it item, prefix string, isQuoted bool) string {
	text := prefix + it.text
	if isQuoted {
		text = strings.ReplaceAll(text, `"`, `\"`)
	}
	return text
}

func printUsage() {
	fmt.Println("usage: wrensh-pager --completion-fd N --result-fd N [--prefix STR] [--is-quoted]")
}
