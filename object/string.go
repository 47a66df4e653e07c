package object

import "strings"

// NewString unescapes the body of a double-quoted literal.
//
// Recognized escapes are \\, \", \n, \r and \t. Any other escaped character
// is kept as is, and a backslash at the very end stays a backslash.
// Unicode escapes are not supported.
func NewString(raw string) *String {
	var out strings.Builder
	chars := []rune(raw)
	for i := 0; i < len(chars); i++ {
		ch := chars[i]
		if ch != '\\' {
			out.WriteRune(ch)
			continue
		}
		i++
		if i == len(chars) {
			out.WriteRune('\\')
			break
		}
		switch esc := chars[i]; esc {
		case 'n':
			out.WriteRune('\n')
		case 'r':
			out.WriteRune('\r')
		case 't':
			out.WriteRune('\t')
		default: // includes \\ and \"
			out.WriteRune(esc)
		}
	}
	return &String{Value: out.String()}
}
