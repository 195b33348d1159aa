package locales

import "testing"

func TestNormalize(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in, want string
	}{
		{"en", "en"},
		{"EN-us", "en-us"},
		{"en_US", "en-us"},
		{"  es-MX ", "es-mx"},
		{"pt-br", "pt-br"},
		{"", "en"},
		{"klingon!!", "en"},
		{"123", "en"},
		{"x", "en"},
		{"english language", "en"},
	}
	for _, c := range cases {
		if got := Normalize(c.in); got != c.want {
			t.Errorf("Normalize(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestBase(t *testing.T) {
	t.Parallel()

	if got := Base("en-us"); got != "en" {
		t.Fatalf("Base(en-us) = %q", got)
	}
	if got := Base("es"); got != "es" {
		t.Fatalf("Base(es) = %q", got)
	}
}

func TestSameLanguage(t *testing.T) {
	t.Parallel()

	cases := []struct {
		a, b string
		want bool
	}{
		{"en-US", "en-gb", true},
		{"en", "en-us", true},
		{"en-us", "es-mx", false},
		// both unsalvageable tags collapse to the fallback
		{"??", "!!", true},
		{"pt-BR", "pt", true},
	}
	for _, c := range cases {
		if got := SameLanguage(c.a, c.b); got != c.want {
			t.Errorf("SameLanguage(%q, %q) = %v, want %v", c.a, c.b, got, c.want)
		}
	}
}
