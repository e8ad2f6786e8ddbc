package helpers

import "testing"

func TestExtractJSONPlainObject(t *testing.T) {
	t.Parallel()
	got, err := ExtractJSON(`{"a":1,"b":[2,3]}`)
	if err != nil {
		t.Fatalf("ExtractJSON() error = %v", err)
	}
	if got != `{"a":1,"b":[2,3]}` {
		t.Fatalf("ExtractJSON() = %q", got)
	}
}

func TestExtractJSONFenced(t *testing.T) {
	t.Parallel()
	in := "Here you go:\n```json\n[\"solar output 2024\", \"solar capacity\"]\n```\nHope that helps."
	got, err := ExtractJSON(in)
	if err != nil {
		t.Fatalf("ExtractJSON() error = %v", err)
	}
	if got != `["solar output 2024", "solar capacity"]` {
		t.Fatalf("ExtractJSON() = %q", got)
	}
}

func TestExtractJSONEmbeddedInProse(t *testing.T) {
	t.Parallel()
	in := `The answer is {"response":"text with a } inside a \"string{\"","citations":[]} as requested.`
	got, err := ExtractJSON(in)
	if err != nil {
		t.Fatalf("ExtractJSON() error = %v", err)
	}
	want := `{"response":"text with a } inside a \"string{\"","citations":[]}`
	if got != want {
		t.Fatalf("ExtractJSON() = %q, want %q", got, want)
	}
}

func TestExtractJSONLeadingBOM(t *testing.T) {
	t.Parallel()
	got, err := ExtractJSON("\ufeff{\"a\":1}")
	if err != nil {
		t.Fatalf("ExtractJSON() error = %v", err)
	}
	if got != `{"a":1}` {
		t.Fatalf("ExtractJSON() = %q", got)
	}
}

func TestExtractJSONNoPayload(t *testing.T) {
	t.Parallel()
	if _, err := ExtractJSON("no structured content here"); err == nil {
		t.Fatal("expected error for prose-only input")
	}
	if _, err := ExtractJSON(""); err == nil {
		t.Fatal("expected error for empty input")
	}
}

func TestExtractJSONUnterminated(t *testing.T) {
	t.Parallel()
	if _, err := ExtractJSON(`{"a": [1, 2`); err == nil {
		t.Fatal("expected error for unbalanced input")
	}
}

func TestDomain(t *testing.T) {
	t.Parallel()
	cases := []struct {
		in, want string
	}{
		{"https://www.example.com/path?x=1", "example.com"},
		{"http://news.EXAMPLE.org:8080/a", "news.example.org"},
		{"example.edu/page", "example.edu"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := Domain(tc.in); got != tc.want {
			t.Fatalf("Domain(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
