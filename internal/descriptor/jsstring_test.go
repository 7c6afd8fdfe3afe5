package descriptor

import "testing"

func TestUnquoteJS(t *testing.T) {
	for in, want := range map[string]string{
		`"plain"`:                 "plain",
		`'single'`:                "single",
		`"a\nb\tc"`:               "a\nb\tc",
		`"q(s: \"x\")"`:           `q(s: "x")`,
		`'it\'s'`:                 "it's",
		`"\x41B\u{43}"`:           "ABC",
		`"\uD83D\uDE00"`:          "\U0001F600",
		`"back\\slash\/"`:         `back\slash/`,
		"\"line\\\ncontinued\"":   "linecontinued",
		`"lone \uD800 surrogate"`: "lone \uFFFD surrogate",
	} {
		got, err := unquoteJS(in)
		if err != nil {
			t.Fatalf("unquoteJS(%s): %v", in, err)
		}
		if got != want {
			t.Fatalf("unquoteJS(%s) = %q, want %q", in, got, want)
		}
	}

	for _, in := range []string{`"\x4"`, `"\u12"`, `"\u{}"`, `"trailing\`, `plain`, `"mismatch'`} {
		if _, err := unquoteJS(in); err == nil {
			t.Fatalf("unquoteJS(%s): expected error", in)
		}
	}
}
