package metadata

import "testing"

func TestSuggestKey(t *testing.T) {
	cases := map[string]string{
		"c#":       "C#",
		"Db":       "C#",
		"F sharp":  "F#",
		"f# minor": "F#",
		"B♭":       "A#",
		"a":        "A",
		"c sharpp": "C#",
	}
	for input, want := range cases {
		got, ok := SuggestKey(input)
		if !ok || got != want {
			t.Errorf("SuggestKey(%q) = %q, %v; want %q", input, got, ok, want)
		}
	}

	for _, input := range []string{"", "   ", "xyz"} {
		if got, ok := SuggestKey(input); ok {
			t.Errorf("SuggestKey(%q) should not match, got %q", input, got)
		}
	}
}
