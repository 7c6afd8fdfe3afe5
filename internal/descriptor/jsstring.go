package descriptor

import (
	"errors"
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

var errBadEscape = errors.New("invalid escape sequence")

// unquoteJS decodes an ECMAScript string literal including its quotes.
func unquoteJS(raw string) (string, error) {
	if len(raw) < 2 || (raw[0] != '"' && raw[0] != '\'') || raw[len(raw)-1] != raw[0] {
		return "", errors.New("not a string literal")
	}
	s := raw[1 : len(raw)-1]
	if strings.IndexByte(s, '\\') < 0 {
		return s, nil
	}

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' {
			b.WriteByte(c)
			continue
		}
		i++
		if i >= len(s) {
			return "", errBadEscape
		}
		switch c = s[i]; c {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case 'b':
			b.WriteByte('\b')
		case 'f':
			b.WriteByte('\f')
		case 'v':
			b.WriteByte('\v')
		case '0':
			b.WriteByte(0)
		case '\n':
			// line continuation
		case '\r':
			if i+1 < len(s) && s[i+1] == '\n' {
				i++
			}
		case 'x':
			r, err := parseHex(s, i+1, i+3)
			if err != nil {
				return "", err
			}
			b.WriteRune(r)
			i += 2
		case 'u':
			r, next, err := readUnicodeEscape(s, i+1)
			if err != nil {
				return "", err
			}
			i = next - 1
			if utf16.IsSurrogate(r) {
				if next+1 < len(s) && s[next] == '\\' && s[next+1] == 'u' {
					if lo, after, err := readUnicodeEscape(s, next+2); err == nil {
						if dec := utf16.DecodeRune(r, lo); dec != utf8.RuneError {
							b.WriteRune(dec)
							i = after - 1
							continue
						}
					}
				}
				r = utf8.RuneError
			}
			b.WriteRune(r)
		default:
			b.WriteByte(c)
		}
	}
	return b.String(), nil
}

// readUnicodeEscape reads the part of a \u escape starting at i, either
// four hex digits or a braced code point. It returns the rune and the index
// following the escape.
func readUnicodeEscape(s string, i int) (rune, int, error) {
	if i < len(s) && s[i] == '{' {
		end := strings.IndexByte(s[i:], '}')
		if end < 2 {
			return 0, 0, errBadEscape
		}
		r, err := parseHex(s, i+1, i+end)
		if err != nil || r > utf8.MaxRune {
			return 0, 0, errBadEscape
		}
		return r, i + end + 1, nil
	}
	r, err := parseHex(s, i, i+4)
	if err != nil {
		return 0, 0, err
	}
	return r, i + 4, nil
}

func parseHex(s string, from, to int) (rune, error) {
	if to > len(s) || from >= to {
		return 0, errBadEscape
	}
	v, err := strconv.ParseUint(s[from:to], 16, 32)
	if err != nil {
		return 0, errBadEscape
	}
	return rune(v), nil
}
