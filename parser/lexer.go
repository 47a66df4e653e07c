package parser

import (
	"fmt"
	"unicode"
)

// TokenType identifies the kind of a token.
type TokenType int

const (
	ILLEGAL TokenType = iota
	EOF
	NEWLINE

	IDENT  // x
	INT    // 12
	DEC    // 1.5
	DICE   // 2d6, d20
	STRING // "abc", without the quotes and still escaped

	ASSIGN    // =
	PLUS      // +
	MINUS     // -
	ASTERISK  // *
	SLASH     // /
	CARET     // ^
	EQ        // ==
	NOT_EQ    // !=
	LT        // <
	LT_EQ     // <=
	GT        // >
	GT_EQ     // >=
	COMMA     // ,
	SEMICOLON // ;
	COLON     // :
	LPAREN    // (
	RPAREN    // )
	LBRACKET  // [
	RBRACKET  // ]
	LBRACE    // {
	RBRACE    // }

	keywordBeg
	LET
	FN
	IF
	THEN
	ELIF
	ELSE
	WHILE
	FOR
	IN
	DO
	END
	LOOP
	TRY
	BREAK
	CONTINUE
	AND
	OR
	XOR
	NOT
	TRUE
	FALSE
	NONE
	keywordEnd
)

var tokenNames = map[TokenType]string{
	ILLEGAL: "ILLEGAL", EOF: "end of input", NEWLINE: "newline",
	IDENT: "identifier", INT: "integer", DEC: "decimal", DICE: "dice", STRING: "string",
	ASSIGN: "=", PLUS: "+", MINUS: "-", ASTERISK: "*", SLASH: "/", CARET: "^",
	EQ: "==", NOT_EQ: "!=", LT: "<", LT_EQ: "<=", GT: ">", GT_EQ: ">=",
	COMMA: ",", SEMICOLON: ";", COLON: ":",
	LPAREN: "(", RPAREN: ")", LBRACKET: "[", RBRACKET: "]", LBRACE: "{", RBRACE: "}",
}

var keywords = map[string]TokenType{
	"let": LET, "fn": FN, "if": IF, "then": THEN, "elif": ELIF, "else": ELSE,
	"while": WHILE, "for": FOR, "in": IN, "do": DO, "end": END, "loop": LOOP,
	"try": TRY, "break": BREAK, "continue": CONTINUE,
	"and": AND, "or": OR, "xor": XOR, "not": NOT,
	"true": TRUE, "false": FALSE, "none": NONE,
}

var punctuation = map[rune]TokenType{
	'+': PLUS, '-': MINUS, '*': ASTERISK, '/': SLASH, '^': CARET,
	',': COMMA, ';': SEMICOLON, ':': COLON,
	'(': LPAREN, ')': RPAREN, '[': LBRACKET, ']': RBRACKET, '{': LBRACE, '}': RBRACE,
}

func init() {
	for word, tok := range keywords {
		tokenNames[tok] = word
	}
}

func (t TokenType) String() string {
	if s, ok := tokenNames[t]; ok {
		return s
	}
	return fmt.Sprintf("token(%d)", int(t))
}

// Token is a lexical token with its 1-based position.
type Token struct {
	Type    TokenType
	Literal string
	Line    int
	Col     int
}

// Lexer splits source text into tokens. Comments run from '#' to the end of
// the line.
type Lexer struct {
	src  []rune
	pos  int
	line int
	col  int
}

// NewLexer returns a lexer over src.
func NewLexer(src string) *Lexer {
	return &Lexer{src: []rune(src), line: 1, col: 1}
}

func (l *Lexer) peek(off int) rune {
	if i := l.pos + off; i < len(l.src) {
		return l.src[i]
	}
	return 0
}

func (l *Lexer) advance() rune {
	ch := l.src[l.pos]
	l.pos++
	if ch == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return ch
}

// NextToken returns the next token, EOF at the end of input.
func (l *Lexer) NextToken() Token {
	for l.pos < len(l.src) {
		ch := l.peek(0)
		if ch == '#' {
			for l.pos < len(l.src) && l.peek(0) != '\n' {
				l.advance()
			}
			continue
		}
		if ch == '\n' || !unicode.IsSpace(ch) {
			break
		}
		l.advance()
	}

	tok := Token{Line: l.line, Col: l.col}
	if l.pos >= len(l.src) {
		tok.Type = EOF
		return tok
	}

	start := l.pos
	ch := l.advance()
	two := func(next rune, yes, no TokenType) TokenType {
		if l.peek(0) == next {
			l.advance()
			return yes
		}
		return no
	}

	switch {
	case ch == '\n':
		tok.Type = NEWLINE
	case ch == '"':
		return l.readString(tok)
	case isDigit(ch):
		return l.readNumber(tok, start)
	case isLetter(ch):
		for isLetter(l.peek(0)) || isDigit(l.peek(0)) {
			l.advance()
		}
		word := string(l.src[start:l.pos])
		tok.Literal = word
		if kw, ok := keywords[word]; ok {
			tok.Type = kw
		} else if isDiceWord(word) {
			tok.Type = DICE
		} else {
			tok.Type = IDENT
		}
		return tok
	case ch == '=':
		tok.Type = two('=', EQ, ASSIGN)
	case ch == '!':
		tok.Type = two('=', NOT_EQ, ILLEGAL)
	case ch == '<':
		tok.Type = two('=', LT_EQ, LT)
	case ch == '>':
		tok.Type = two('=', GT_EQ, GT)
	default:
		tok.Type = ILLEGAL
		if t, ok := punctuation[ch]; ok {
			tok.Type = t
		}
	}
	tok.Literal = string(l.src[start:l.pos])
	return tok
}

func (l *Lexer) readString(tok Token) Token {
	start := l.pos
	for l.pos < len(l.src) {
		switch l.peek(0) {
		case '\\':
			l.advance()
			if l.pos < len(l.src) {
				l.advance()
			}
			continue
		case '"':
			tok.Type = STRING
			tok.Literal = string(l.src[start:l.pos])
			l.advance()
			return tok
		}
		l.advance()
	}
	tok.Type = ILLEGAL
	tok.Literal = "unterminated string"
	return tok
}

// readNumber reads 12, 1.5 or 2d6. A number directly followed by letters
// other than a dice suffix is illegal.
func (l *Lexer) readNumber(tok Token, start int) Token {
	for isDigit(l.peek(0)) {
		l.advance()
	}
	tok.Type = INT
	switch {
	case l.peek(0) == '.' && isDigit(l.peek(1)):
		l.advance()
		for isDigit(l.peek(0)) {
			l.advance()
		}
		tok.Type = DEC
	case l.peek(0) == 'd' && isDigit(l.peek(1)):
		l.advance()
		for isDigit(l.peek(0)) {
			l.advance()
		}
		tok.Type = DICE
	}
	if isLetter(l.peek(0)) {
		for isLetter(l.peek(0)) || isDigit(l.peek(0)) {
			l.advance()
		}
		tok.Type = ILLEGAL
	}
	tok.Literal = string(l.src[start:l.pos])
	return tok
}

// isDiceWord reports whether an identifier-shaped word is a dice literal
// with an implicit count, such as d20.
func isDiceWord(word string) bool {
	if len(word) < 2 || word[0] != 'd' {
		return false
	}
	for _, ch := range word[1:] {
		if !isDigit(ch) {
			return false
		}
	}
	return true
}

func isLetter(ch rune) bool { return ch == '_' || unicode.IsLetter(ch) }

func isDigit(ch rune) bool { return '0' <= ch && ch <= '9' }
