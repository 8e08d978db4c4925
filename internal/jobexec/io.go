package jobexec

import (
	"os"
	"strconv"

	"github.com/diillson/wrensh/internal/expand"
	"github.com/diillson/wrensh/internal/shellerr"
	"github.com/diillson/wrensh/internal/shtypes"
)

// parseRedirOp recovers the fd and the open semantics a redirection
// terminal's raw text encodes. The flattened tree keeps only the
// terminal's TokenKind (via TermKind), not the tokenizer's richer
// Token.RedirFd field, so the leading digit prefix (e.g. the "2" in
// "2>") is re-parsed here the same way internal/token's lexRedirect
// does it.
func parseRedirOp(text string, kind shtypes.TokenKind) (fd int, mode shtypes.RedirMode, flags shtypes.OpenFlag) {
	i := 0
	for i < len(text) && text[i] >= '0' && text[i] <= '9' {
		i++
	}
	hasDigit := i > 0
	var digitFd int
	if hasDigit {
		digitFd, _ = strconv.Atoi(text[:i])
	}

	var op byte
	if i < len(text) {
		op = text[i]
	}
	defaultFd := 1
	switch op {
	case '<':
		defaultFd = 0
	case '^':
		defaultFd = 2
	}
	if hasDigit {
		fd = digitFd
	} else {
		fd = defaultFd
	}

	switch kind {
	case shtypes.TokRedirectIn:
		mode = shtypes.RedirFile
		flags = shtypes.OpenRead
	case shtypes.TokRedirectAppend:
		mode = shtypes.RedirFile
		flags = shtypes.OpenWrite | shtypes.OpenCreate | shtypes.OpenAppend
	case shtypes.TokRedirectNoClobber:
		mode = shtypes.RedirFile
		flags = shtypes.OpenWrite | shtypes.OpenCreate | shtypes.OpenExclusive
	case shtypes.TokRedirectFd:
		mode = shtypes.RedirDupFd
	default:
		mode = shtypes.RedirFile
		flags = shtypes.OpenWrite | shtypes.OpenCreate | shtypes.OpenTruncate
	}
	return fd, mode, flags
}

func toOSFlags(flags shtypes.OpenFlag) int {
	osFlags := 0
	switch {
	case flags&shtypes.OpenRead != 0:
		osFlags = os.O_RDONLY
	case flags&shtypes.OpenAppend != 0:
		osFlags = os.O_WRONLY | os.O_CREATE | os.O_APPEND
	case flags&shtypes.OpenExclusive != 0:
		osFlags = os.O_WRONLY | os.O_CREATE | os.O_EXCL
	default:
		osFlags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}
	return osFlags
}

// buildIOChain expands the Redirection children of an ArgOrRedirList
// into a resolved IOChain, with each target word already through the
// expander (so "> $outfile" works).
func (ex *Executor) buildIOChain(tree *shtypes.Tree, listIdx int, src string, x *expand.Expander) (shtypes.IOChain, shellerr.List) {
	var chain shtypes.IOChain
	var errs shellerr.List
	for _, ci := range tree.Children(listIdx) {
		n := tree.Nodes[ci]
		if n.Type != shtypes.NodeRedirection {
			continue
		}
		children := tree.Children(ci)
		if len(children) == 0 {
			continue
		}
		opNode := tree.Nodes[children[0]]
		fd, mode, flags := parseRedirOp(opNode.Text(src), opNode.TermKind)

		var targetText string
		if len(children) > 1 {
			words, e := x.Expand(tree.Nodes[children[1]].Text(src))
			errs = append(errs, e...)
			if len(words) > 0 {
				targetText = words[0]
			}
		}

		r := shtypes.Redirection{Fd: fd, Mode: mode, OpenFlags: flags}
		switch mode {
		case shtypes.RedirDupFd:
			if targetText == "-" {
				r.Mode = shtypes.RedirCloseFd
			} else if n, err := strconv.Atoi(targetText); err == nil {
				r.SrcFd = n
			}
		default:
			r.Target = targetText
		}
		chain = append(chain, r)
	}
	return chain, errs
}

// applyIOChain walks chain in source order, opening files and
// following fd dups against a running fd->File table seeded with the
// stage's inherited stdin/stdout/stderr, and returns the (possibly
// replaced) triple, any fd>=3 targets resolved along the way (for
// exec.Cmd.ExtraFiles, so redirections like "3>&1" actually reach the
// child), plus every file this call opened so the caller can close them
// once the statement finishes.
//
// extra only covers a contiguous run of fds starting at 3: a gap (fd 3
// set but not fd 4) stops the run there, since os/exec has no way to
// pass fd 4 without also passing something for fd 3's neighbors in
// between.
func applyIOChain(chain shtypes.IOChain, in, out, errOut *os.File) (newIn, newOut, newErr *os.File, extra []*os.File, opened []*os.File, err error) {
	cur := map[int]*os.File{0: in, 1: out, 2: errOut}
	maxFd := 2
	for _, r := range chain {
		switch r.Mode {
		case shtypes.RedirFile:
			f, openErr := os.OpenFile(r.Target, toOSFlags(r.OpenFlags), 0o644)
			if openErr != nil {
				return in, out, errOut, nil, opened, openErr
			}
			opened = append(opened, f)
			cur[r.Fd] = f
		case shtypes.RedirDupFd:
			if src, ok := cur[r.SrcFd]; ok {
				cur[r.Fd] = src
			}
		case shtypes.RedirCloseFd:
			delete(cur, r.Fd)
		}
		if r.Fd > maxFd {
			maxFd = r.Fd
		}
	}
	for fd := 3; fd <= maxFd; fd++ {
		f, ok := cur[fd]
		if !ok {
			break
		}
		extra = append(extra, f)
	}
	return cur[0], cur[1], cur[2], extra, opened, nil
}
