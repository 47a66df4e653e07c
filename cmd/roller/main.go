// Command roller evaluates Roller dice expressions.
//
//	roller                  start a REPL (echoes a transcript when not on a terminal)
//	roller -e '2d6 + 3'     evaluate one program and print its value
//	roller a.roll b.roll    evaluate script files concurrently, printing results in order
package main

import (
	"bufio"
	"bytes"
	"context"
	crand "crypto/rand"
	"encoding/binary"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/caarlos0/env/v11"
	"github.com/mattn/go-isatty"
	"github.com/peterh/liner"
	"github.com/podhmo/roller"
	"github.com/podhmo/roller/object"
	"github.com/podhmo/roller/parser"
	"golang.org/x/sync/errgroup"
)

const (
	banner      = "roller: dice expressions with exact probabilities. Type :help for help."
	contPrompt  = "...     "
	historyFile = ".roller_history"
)

const helpText = `Available commands:
  :help   show this help
  :names  list bound names and built-in functions
  :reset  clear every binding
  :exit   leave the REPL
`

// config holds the settings read from the environment.
type config struct {
	Seed     int64  `env:"ROLLER_SEED" envDefault:"0"`
	LogLevel string `env:"ROLLER_LOG_LEVEL" envDefault:"error"`
	History  string `env:"ROLLER_HISTORY"`
	Prompt   string `env:"ROLLER_PROMPT" envDefault:"roller> "`
	Jobs     int    `env:"ROLLER_JOBS" envDefault:"4"`
}

func loadConfig() (*config, error) {
	var cfg config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if cfg.Jobs < 1 {
		return nil, fmt.Errorf("ROLLER_JOBS must be positive, got %d", cfg.Jobs)
	}
	return &cfg, nil
}

func main() {
	expr := flag.String("e", "", "evaluate `program` and exit")
	flag.Usage = func() {
		fmt.Fprintln(flag.CommandLine.Output(), "Usage: roller [-e program] [file ...]")
		flag.PrintDefaults()
	}
	flag.Parse()

	os.Exit(run(context.Background(), *expr, flag.Args(), os.Stdin, os.Stdout, os.Stderr))
}

// run dispatches to one-shot, batch or REPL mode and returns the exit code.
func run(ctx context.Context, expr string, files []string, stdin io.Reader, stdout, stderr io.Writer) int {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(stderr, "!! %v\n", err)
		return 2
	}
	logger, err := newLogger(stderr, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(stderr, "!! %v\n", err)
		return 2
	}
	seed, err := resolveSeed(cfg.Seed)
	if err != nil {
		fmt.Fprintf(stderr, "!! %v\n", err)
		return 1
	}
	logger.Debug("configured", "seed", seed, "jobs", cfg.Jobs)

	switch {
	case expr != "":
		return evalOne(ctx, expr, stdout, stderr, roller.WithLogger(logger), roller.WithSeed(seed))
	case len(files) > 0:
		return evalFiles(ctx, files, cfg.Jobs, seed, logger, stdout, stderr)
	}

	opts := []roller.Option{roller.WithLogger(logger), roller.WithSeed(seed), roller.WithStdout(stdout)}
	if isTerminal(stdin) && isTerminal(stdout) {
		err = runInteractive(ctx, cfg, stdout, opts)
	} else {
		err = runREPL(ctx, stdin, stdout, cfg.Prompt, opts)
	}
	if err != nil {
		fmt.Fprintf(stderr, "!! %v\n", err)
		return 1
	}
	return 0
}

func isTerminal(v any) bool {
	f, ok := v.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}

func newLogger(w io.Writer, level string) (*slog.Logger, error) {
	var lv slog.Level
	if err := lv.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("ROLLER_LOG_LEVEL: %w", err)
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lv})), nil
}

// resolveSeed returns seed, or a fresh random seed when it is 0.
func resolveSeed(seed int64) (int64, error) {
	if seed != 0 {
		return seed, nil
	}
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}
	return int64(binary.LittleEndian.Uint64(b[:])), nil
}

func evalOne(ctx context.Context, src string, stdout, stderr io.Writer, opts ...roller.Option) int {
	interp, err := roller.NewInterpreter(append(opts, roller.WithStdout(stdout))...)
	if err != nil {
		fmt.Fprintf(stderr, "!! %v\n", err)
		return 1
	}
	result, err := interp.EvalString(ctx, src)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	printResult(stdout, result)
	return 0
}

type fileResult struct {
	out bytes.Buffer
	err error
}

// evalFiles evaluates each file in its own interpreter, at most jobs at a
// time. Output is written in argument order once every file is done. The
// i-th file is seeded with seed+i, so a fixed ROLLER_SEED reproduces a run.
func evalFiles(ctx context.Context, files []string, jobs int, seed int64, logger *slog.Logger, stdout, stderr io.Writer) int {
	results := make([]*fileResult, len(files))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)
	for i, path := range files {
		res := &fileResult{}
		results[i] = res
		g.Go(func() error {
			res.err = evalFile(ctx, path, &res.out, roller.WithLogger(logger.With("file", path)), roller.WithSeed(seed+int64(i)))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		fmt.Fprintf(stderr, "!! %v\n", err)
		return 1
	}

	code := 0
	for i, res := range results {
		stdout.Write(res.out.Bytes())
		if res.err != nil {
			fmt.Fprintf(stderr, "%s: %v\n", files[i], res.err)
			code = 1
		}
	}
	return code
}

func evalFile(ctx context.Context, path string, out io.Writer, opts ...roller.Option) error {
	source, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading file: %w", err)
	}
	interp, err := roller.NewInterpreter(append(opts, roller.WithStdout(out))...)
	if err != nil {
		return err
	}
	result, err := interp.EvalString(ctx, string(source))
	if err != nil {
		return err
	}
	printResult(out, result)
	return nil
}

func printResult(w io.Writer, result *roller.Result) {
	if result.Value.Type() == object.VOID_OBJ {
		return
	}
	fmt.Fprintln(w, result)
}

// session is the state shared by both REPL front ends.
type session struct {
	opts   []roller.Option
	interp *roller.Interpreter
	out    io.Writer
}

func newSession(out io.Writer, opts []roller.Option) (*session, error) {
	s := &session{opts: opts, out: out}
	if err := s.reset(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *session) reset() error {
	interp, err := roller.NewInterpreter(s.opts...)
	if err != nil {
		return fmt.Errorf("creating interpreter: %w", err)
	}
	s.interp = interp
	return nil
}

// handle runs a command or evaluates src. It reports whether the REPL
// should stop.
func (s *session) handle(ctx context.Context, src string) (bool, error) {
	cmd := strings.TrimSpace(src)
	if strings.HasPrefix(cmd, ":") {
		switch cmd {
		case ":exit", ":quit":
			return true, nil
		case ":help":
			fmt.Fprint(s.out, helpText)
		case ":names":
			fmt.Fprintln(s.out, strings.Join(s.interp.Names(), " "))
		case ":reset":
			if err := s.reset(); err != nil {
				return true, err
			}
		default:
			fmt.Fprintf(s.out, "unknown command %s. Type :help for help.\n", cmd)
		}
		return false, nil
	}

	result, err := s.interp.EvalString(ctx, src)
	if err != nil {
		fmt.Fprintf(s.out, "error: %v\n", err)
		return false, nil
	}
	printResult(s.out, result)
	return false, nil
}

// complete reports whether src can be evaluated as is, rather than waiting
// for more lines.
func complete(src string) bool {
	if strings.HasPrefix(strings.TrimSpace(src), ":") {
		return true
	}
	_, err := parser.ParseProgram(src)
	return !parser.IsIncomplete(err)
}

// runREPL reads programs line by line from r, for piped input. Each line is
// echoed after its prompt so the output reads as a transcript. A program
// spans lines until it parses.
func runREPL(ctx context.Context, r io.Reader, out io.Writer, prompt string, opts []roller.Option) error {
	s, err := newSession(out, opts)
	if err != nil {
		return err
	}
	sc := bufio.NewScanner(r)
	var pending strings.Builder
	for sc.Scan() {
		p := prompt
		if pending.Len() > 0 {
			p = contPrompt
			pending.WriteByte('\n')
		}
		fmt.Fprintf(out, "%s%s\n", p, sc.Text())
		pending.WriteString(sc.Text())
		src := pending.String()
		if !complete(src) {
			continue
		}
		pending.Reset()
		if strings.TrimSpace(src) == "" {
			continue
		}
		if quit, err := s.handle(ctx, src); quit || err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}
	if pending.Len() > 0 {
		_, err := s.handle(ctx, pending.String())
		return err
	}
	return nil
}

// runInteractive is the terminal REPL with line editing, history and
// completion of bound names.
func runInteractive(ctx context.Context, cfg *config, out io.Writer, opts []roller.Option) error {
	s, err := newSession(out, opts)
	if err != nil {
		return err
	}

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)
	ln.SetCompleter(func(line string) []string {
		return completions(line, s.interp.Names())
	})

	histPath := cfg.History
	if histPath == "" {
		home, _ := os.UserHomeDir()
		histPath = filepath.Join(home, historyFile)
	}
	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}
	defer func() {
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()

	fmt.Fprintln(out, banner)
	for {
		src, ok := readProgram(ln, cfg.Prompt)
		if !ok {
			fmt.Fprintln(out)
			return nil
		}
		if strings.TrimSpace(src) == "" {
			continue
		}
		ln.AppendHistory(strings.ReplaceAll(src, "\n", " "))
		if quit, err := s.handle(ctx, src); quit || err != nil {
			return err
		}
	}
}

// readProgram prompts until the input parses or cannot be completed. The
// second result is false at end of input.
func readProgram(ln *liner.State, prompt string) (string, bool) {
	var b strings.Builder
	for {
		p := prompt
		if b.Len() > 0 {
			p = contPrompt
		}
		line, err := ln.Prompt(p)
		if errors.Is(err, io.EOF) {
			return "", false
		}
		if errors.Is(err, liner.ErrPromptAborted) {
			return "", true
		}
		if err != nil {
			return "", false
		}

		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)
		if src := b.String(); complete(src) {
			return src, true
		}
	}
}

// completions returns line with its last word completed by each name that
// extends it.
func completions(line string, names []string) []string {
	start := 0
	if i := strings.LastIndexFunc(line, func(r rune) bool {
		return !(r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r))
	}); i >= 0 {
		_, size := utf8.DecodeRuneInString(line[i:])
		start = i + size
	}
	head, word := line[:start], line[start:]
	if word == "" {
		return nil
	}
	var out []string
	for _, name := range names {
		if strings.HasPrefix(name, word) {
			out = append(out, head+name)
		}
	}
	return out
}
