package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/podhmo/roller"
)

func TestREPL(t *testing.T) {
	runCase := func(t *testing.T, input string) string {
		t.Helper()
		out := &bytes.Buffer{}
		opts := []roller.Option{roller.WithSeed(1), roller.WithStdout(out)}
		if err := runREPL(context.Background(), strings.NewReader(input), out, "> ", opts); err != nil {
			t.Fatalf("runREPL failed: %v", err)
		}
		return out.String()
	}

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"simple expression", "1 + 1\n:exit\n", "> 1 + 1\n2\n> :exit\n"},
		{"exit stops reading", ":exit\n1 + 1\n", "> :exit\n"},
		{"declarations print nothing", "let x = 3\nx * x\n", "> let x = 3\n> x * x\n9\n"},
		{"multiline function", "let f = fn(x) do\n  x * 2\nend\nf(21)\n",
			"> let f = fn(x) do\n" + contPrompt + "  x * 2\n" + contPrompt + "end\n> f(21)\n42\n"},
		{"print", `print("hi", 2d1)` + "\n", `> print("hi", 2d1)` + "\nhi {(2, 1)}\n"},
		{"errors do not stop the loop", "1 / 0\n2\n", "> 1 / 0\nerror: arithmetic error: division by zero\n> 2\n2\n"},
		{"reset clears bindings", "let x = 10\nx\n:reset\nx\n",
			"> let x = 10\n> x\n10\n> :reset\n> x\nerror: invalid argument: unbound identifier `x`\n"},
		{"unknown command", ":foo\n", "> :foo\nunknown command :foo. Type :help for help.\n"},
		{"incomplete input at end", "1 +\n", "> 1 +\nerror: parsing script: 1:4: unexpected \"end of input\"\n"},
		{"runaway recursion is only an error", "let f = fn(n) f(n + 1)\nf(0)\n1\n",
			"> let f = fn(n) f(n + 1)\n> f(0)\nerror: invalid argument: maximum call depth 10000 exceeded in `f`\n> 1\n1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, runCase(t, tt.input)); diff != "" {
				t.Errorf("output mismatch (-want +got):\n%s", diff)
			}
		})
	}

	t.Run("metacommand :help", func(t *testing.T) {
		output := runCase(t, ":help\n")
		if !strings.Contains(output, "Available commands:") {
			t.Errorf("expected help message, got %q", output)
		}
	})

	t.Run("metacommand :names", func(t *testing.T) {
		output := runCase(t, "let hp = 1\n:names\n")
		if !strings.Contains(output, "hp ") || !strings.Contains(output, "roll") {
			t.Errorf("expected bound and built-in names, got %q", output)
		}
	})
}

func TestRun(t *testing.T) {
	t.Setenv("ROLLER_SEED", "7")
	t.Setenv("ROLLER_LOG_LEVEL", "error")

	t.Run("expression", func(t *testing.T) {
		var stdout, stderr bytes.Buffer
		code := run(context.Background(), "prob(2d6 > 11, true)", nil, strings.NewReader(""), &stdout, &stderr)
		if code != 0 {
			t.Fatalf("exit code %d, stderr %q", code, stderr.String())
		}
		if diff := cmp.Diff("1/36\n", stdout.String()); diff != "" {
			t.Errorf("stdout mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("expression error", func(t *testing.T) {
		var stdout, stderr bytes.Buffer
		code := run(context.Background(), "1 / 0", nil, strings.NewReader(""), &stdout, &stderr)
		if code != 1 {
			t.Errorf("exit code %d, want 1", code)
		}
		if diff := cmp.Diff("error: arithmetic error: division by zero\n", stderr.String()); diff != "" {
			t.Errorf("stderr mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("piped stdin", func(t *testing.T) {
		var stdout, stderr bytes.Buffer
		code := run(context.Background(), "", nil, strings.NewReader("3 * 3\n"), &stdout, &stderr)
		if code != 0 {
			t.Fatalf("exit code %d, stderr %q", code, stderr.String())
		}
		if diff := cmp.Diff("roller> 3 * 3\n9\n", stdout.String()); diff != "" {
			t.Errorf("stdout mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("same seed, same rolls", func(t *testing.T) {
		var first, second, stderr bytes.Buffer
		run(context.Background(), "[roll(d20), roll(d20), roll(d20)]", nil, strings.NewReader(""), &first, &stderr)
		run(context.Background(), "[roll(d20), roll(d20), roll(d20)]", nil, strings.NewReader(""), &second, &stderr)
		if first.String() != second.String() {
			t.Errorf("ROLLER_SEED=7 gave %q and %q", first.String(), second.String())
		}
	})
}

func TestRun_BadConfig(t *testing.T) {
	tests := []struct {
		name, key, value string
	}{
		{"log level", "ROLLER_LOG_LEVEL", "loud"},
		{"jobs", "ROLLER_JOBS", "0"},
		{"seed", "ROLLER_SEED", "many"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			var stdout, stderr bytes.Buffer
			if code := run(context.Background(), "1", nil, strings.NewReader(""), &stdout, &stderr); code != 2 {
				t.Errorf("exit code %d, want 2", code)
			}
			if !strings.HasPrefix(stderr.String(), "!! ") {
				t.Errorf("unexpected stderr %q", stderr.String())
			}
		})
	}
}

func TestEvalFiles(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		t.Helper()
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
		return path
	}
	files := []string{
		write("a.roll", "print(\"a\")\n1 + 1\n"),
		write("b.roll", "1 / 0\n"),
		write("c.roll", "# chance of a six\nprob(d6, 6)\n"),
		filepath.Join(dir, "missing.roll"),
	}

	t.Setenv("ROLLER_SEED", "3")
	t.Setenv("ROLLER_JOBS", "2")
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), "", files, strings.NewReader(""), &stdout, &stderr)
	if code != 1 {
		t.Errorf("exit code %d, want 1", code)
	}
	if diff := cmp.Diff("a\n2\n1/6\n", stdout.String()); diff != "" {
		t.Errorf("stdout mismatch (-want +got):\n%s", diff)
	}
	wantErr := files[1] + ": arithmetic error: division by zero\n" +
		files[3] + ": reading file: "
	if !strings.HasPrefix(stderr.String(), wantErr) {
		t.Errorf("stderr = %q, want prefix %q", stderr.String(), wantErr)
	}
}

func TestCompletions(t *testing.T) {
	names := []string{"roll", "round", "x"}
	tests := []struct {
		line string
		want []string
	}{
		{"let y = ro", []string{"let y = roll", "let y = round"}},
		{"rol", []string{"roll"}},
		{"f(x", []string{"f(x"}},
		{"1 + ", nil},
		{"", nil},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, completions(tt.line, names)); diff != "" {
				t.Errorf("completions mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestResolveSeed(t *testing.T) {
	if got, err := resolveSeed(5); err != nil || got != 5 {
		t.Errorf("resolveSeed(5) = %d, %v", got, err)
	}
	if _, err := resolveSeed(0); err != nil {
		t.Errorf("resolveSeed(0) failed: %v", err)
	}
}
