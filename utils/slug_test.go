package utils

import (
	"strings"
	"testing"
)

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Hello World":                              "hello-world",
		"  ¡Hola, Mundo!  Señal en vivo -- 24/7 ": "hola-mundo-senal-en-vivo-247",
		"Canción Ñandú":                            "cancion-nandu",
		"Ya-existe---el  título":                   "ya-existe-el-titulo",
		"!!!":                                      "",
	}
	for in, want := range cases {
		if got := Slugify(in); got != want {
			t.Fatalf("Slugify(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSlugifyTruncates(t *testing.T) {
	got := Slugify(strings.Repeat("abcd ", 100))
	if len(got) > MaxSlugLength {
		t.Fatalf("slug length %d exceeds %d", len(got), MaxSlugLength)
	}
	if strings.HasSuffix(got, "-") {
		t.Fatalf("truncated slug should not end with a dash: %q", got)
	}
}
