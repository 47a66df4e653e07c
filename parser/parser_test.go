package parser

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/podhmo/roller/object"
)

func TestLexer(t *testing.T) {
	src := "let x = 2d6 # comment\n>= d8 \"a\\\"b\" 1.5 != xs"
	want := []Token{
		{Type: LET, Literal: "let", Line: 1, Col: 1},
		{Type: IDENT, Literal: "x", Line: 1, Col: 5},
		{Type: ASSIGN, Literal: "=", Line: 1, Col: 7},
		{Type: DICE, Literal: "2d6", Line: 1, Col: 9},
		{Type: NEWLINE, Literal: "\n", Line: 1, Col: 22},
		{Type: GT_EQ, Literal: ">=", Line: 2, Col: 1},
		{Type: DICE, Literal: "d8", Line: 2, Col: 4},
		{Type: STRING, Literal: `a\"b`, Line: 2, Col: 7},
		{Type: DEC, Literal: "1.5", Line: 2, Col: 14},
		{Type: NOT_EQ, Literal: "!=", Line: 2, Col: 18},
		{Type: IDENT, Literal: "xs", Line: 2, Col: 21},
		{Type: EOF, Line: 2, Col: 23},
	}

	l := NewLexer(src)
	var got []Token
	for {
		tok := l.NextToken()
		got = append(got, tok)
		if tok.Type == EOF {
			break
		}
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("tokens mismatch (-want +got):\n%s", diff)
	}
}

func TestLexer_Illegal(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"12abc", "12abc"},
		{"2d6x", "2d6x"},
		{"!", "!"},
		{"\"open", "unterminated string"},
		{"@", "@"},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			tok := NewLexer(tt.src).NextToken()
			if tok.Type != ILLEGAL || tok.Literal != tt.want {
				t.Errorf("NextToken() = %v %q, want ILLEGAL %q", tok.Type, tok.Literal, tt.want)
			}
		})
	}
}

func TestParseExpr(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"precedence", "1 + 2 * 3", "(1 + (2 * 3))"},
		{"grouping", "(1 + 2) * 3", "((1 + 2) * 3)"},
		{"left associative", "8 - 2 - 1", "((8 - 2) - 1)"},
		{"power right associative", "2 ^ 3 ^ 2", "(2 ^ (3 ^ 2))"},
		{"power binds tighter than negation", "-2 ^ 2", "(-(2 ^ 2))"},
		{"negative exponent", "2 ^ -1", "(2 ^ (-1))"},
		{"not", "not a and b", "((not a) and b)"},
		{"logic", "a or b xor c and d", "(a or (b xor (c and d)))"},
		{"comparison", "a < b + 1", "(a < (b + 1))"},
		{"comparison of logic", "a == b and c != d", "((a == b) and (c != d))"},
		{"dice", "2d6 + d20", "(2d6 + 1d20)"},
		{"dice call", "dice(n, 6)", "dice(n, 6)"},
		{"index", "xs[0][1]", "xs[0][1]"},
		{"call", "f(1, y: 2)", "f(1, y: 2)"},
		{"call spans lines", "f(\n  1,\n  2,\n)", "f(1, 2)"},
		{"call of index", "f(xs)[0]", "f(xs)[0]"},
		{"decl", "let x = 1", "let x = 1"},
		{"assign chain", "x = y = 2", "x = y = 2"},
		{"assign index", `xs[0]["k"] = 3`, `xs[0]["k"] = 3`},
		{"decimal", "1.25", "5/4"},
		{"string", `"a\"b"`, `"a\"b"`},
		{"booleans", "[true, false, none]", "[true, false, none]"},
		{"list trailing comma", "[1, 2,]", "[1, 2]"},
		{"empty list", "[]", "[]"},
		{"empty map", "{}", "{}"},
		{"empty set", "{,}", "{,}"},
		{"set", "{1, 2}", "{1, 2}"},
		{"set of grouped", "{(1 + 2) * 3, 4}", "{((1 + 2) * 3), 4}"},
		{"map", `{"a": 1, "b": 2}`, `{"a": 1, "b": 2}`},
		{"map with grouped key", "{(1): 2}", "{1: 2}"},
		{"distribution", "{(1, 2), (3, 4)}", "{(1, 2), (3, 4)}"},
		{"if", "if a then 1 elif b then 2 else 3", "if a then 1 elif b then 2 else 3"},
		{"if without else", "if a then 1", "if a then 1"},
		{"if on several lines", "if a then 1\nelif b then 2\nelse 3", "if a then 1 elif b then 2 else 3"},
		{"while", "while x < 3 do x = x + 1 end", "while (x < 3) do x = (x + 1) end"},
		{"for", "for i in [1, 2] do print(i) end", "for i in [1, 2] do print(i) end"},
		{"loop", "loop do break end", "loop do break end"},
		{"continue", "loop do continue end", "loop do continue end"},
		{"try", "try 1 / 0 else 0", "try (1 / 0) else 0"},
		{"try on two lines", "try 1 / 0\nelse 0", "try (1 / 0) else 0"},
		{"fn", "fn(a, b) a + b", "fn(a, b) (a + b)"},
		{"block", "do let x = 1; x end", "do let x = 1; x end"},
		{"empty block", "do end", "do end"},
		{"multiline block", "do\n  let x = 1\n\n  x + 1 # more\nend", "do let x = 1; (x + 1) end"},
		{"operator continues line", "1 +\n2", "(1 + 2)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expr, err := ParseExpr(tt.input)
			if err != nil {
				t.Fatalf("ParseExpr(%q) failed: %v", tt.input, err)
			}
			if diff := cmp.Diff(tt.want, expr.String()); diff != "" {
				t.Errorf("String() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseExpr_RoundTrip(t *testing.T) {
	inputs := []string{
		"let total = 3d6 + 2",
		"(d20 >= 11) or (d20 == 1)",
		`{"str": [1, 2], "dex": {,}}`,
		"{(true, 1), (false, 5)}",
		"for x in xs do if (x > 2) then break else continue end",
		"fn(n) if (n <= 1) then 1 else (n * fact((n - 1)))",
		"try m[\"k\"] else none",
	}
	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			first, err := ParseExpr(input)
			if err != nil {
				t.Fatalf("ParseExpr(%q) failed: %v", input, err)
			}
			second, err := ParseExpr(first.String())
			if err != nil {
				t.Fatalf("ParseExpr(%q) failed: %v", first.String(), err)
			}
			if diff := cmp.Diff(first.String(), second.String()); diff != "" {
				t.Errorf("round trip mismatch (-first +second):\n%s", diff)
			}
		})
	}
}

func TestParseProgram(t *testing.T) {
	src := `
# setup
let x = 1; let y = 2
if x < y then
  "less"
else "more"
x + y
`
	exprs, err := ParseProgram(src)
	if err != nil {
		t.Fatalf("ParseProgram failed: %v", err)
	}
	var got []string
	for _, e := range exprs {
		got = append(got, e.String())
	}
	want := []string{
		"let x = 1",
		"let y = 2",
		`if (x < y) then "less" else "more"`,
		"(x + y)",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ParseProgram mismatch (-want +got):\n%s", diff)
	}
}

func TestParseProgram_Empty(t *testing.T) {
	exprs, err := ParseProgram("\n# nothing\n;\n")
	if err != nil {
		t.Fatalf("ParseProgram failed: %v", err)
	}
	if len(exprs) != 0 {
		t.Errorf("got %d expressions, want 0", len(exprs))
	}
}

func TestParseExpr_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"two expressions", "1 2", "1:3: expected newline or ';' after expression, found integer 2"},
		{"unclosed paren", "(1 + 2", `1:7: expected ), found "end of input"`},
		{"chained comparison", "1 < 2 < 3", "1:7: comparison operators cannot be chained"},
		{"duplicate key", `{"a": 1, "a": 2}`, `1:13: duplicate key "a" in map literal`},
		{"bad assignment", "1 = 2", "1:1: cannot assign to 1"},
		{"positional after keyword", "f(x: 1, 2)", "1:9: positional argument after keyword argument"},
		{"unterminated string", `"abc`, "1:1: unexpected unterminated string"},
		{"call of value", "(1)(2)", "1:4: only named functions can be called, not 1"},
		{"bad number", "12abc", `1:1: unexpected "12abc"`},
		{"integer overflow", "99999999999999999999", "1:1: integer literal 99999999999999999999 is out of range"},
		{"missing then", "if a 1", `1:6: expected then, found integer 1`},
		{"missing end", "do 1", `1:5: expected end, found "end of input"`},
		{"empty", "", "1:1: expected one expression, found 0"},
		{"newline ends expression", "1 +", `1:4: unexpected "end of input"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseExpr(tt.input)
			if err == nil {
				t.Fatalf("ParseExpr(%q) succeeded, want error", tt.input)
			}
			var perr *Error
			if !errors.As(err, &perr) {
				t.Fatalf("error is %T, want *parser.Error", err)
			}
			if diff := cmp.Diff(tt.want, err.Error()); diff != "" {
				t.Errorf("error mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseExpr_DuplicateParameters(t *testing.T) {
	_, err := ParseExpr("fn(a, b, a) a")
	if err == nil {
		t.Fatal("expected an error")
	}
	if !errors.Is(err, object.ErrInvalidArg) {
		t.Errorf("errors.Is(%v, ErrInvalidArg) = false", err)
	}
	if !strings.Contains(err.Error(), "argument `a` appeared more than once") {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestIsIncomplete(t *testing.T) {
	tests := []struct {
		src  string
		want bool
	}{
		{"1 +", true},
		{"do\n  let x = 1", true},
		{"f(1,", true},
		{"if a then", true},
		{"1 + )", false},
		{`"open`, false},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			_, err := ParseProgram(tt.src)
			if err == nil {
				t.Fatalf("ParseProgram(%q) succeeded, want error", tt.src)
			}
			if got := IsIncomplete(err); got != tt.want {
				t.Errorf("IsIncomplete(%v) = %v, want %v", err, got, tt.want)
			}
		})
	}
}
