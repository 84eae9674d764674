package classify

import "testing"

func TestClassifyKinds(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  Kind
	}{
		{"repo with scheme", "https://github.com/acme/widget", RepositorySource},
		{"repo without scheme", "github.com/acme/widget", RepositorySource},
		{"repo with surrounding spaces", "  https://github.com/acme/widget/tree/main  ", RepositorySource},
		{"web url", "https://example.com/article", WebSource},
		{"web url with port", "http://example.com:8080/a/b?c=d", WebSource},
		{"bare domain", "blog.example.org", WebSource},
		{"localhost", "localhost:3000/docs", WebSource},
		{"dotted quad", "http://192.168.1.10/status", WebSource},
		{"topic phrase", "Artificial Intelligence", TopicSource},
		{"topic mentioning github", "why github.com is popular", TopicSource},
		{"empty", "", TopicSource},
		{"single word", "golang", TopicSource},
		{"numeric tld", "example.123", TopicSource},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Classify("instr", tc.input)
			if got.Kind != tc.want {
				t.Errorf("Classify(%q).Kind = %q, want %q", tc.input, got.Kind, tc.want)
			}
		})
	}
}

func TestClassifyRepositoryScenario(t *testing.T) {
	got := Classify("post about AI", "https://github.com/acme/widget")
	want := ClassifiedInput{
		Kind:         RepositorySource,
		Payload:      "https://github.com/acme/widget",
		Instructions: "post about AI",
	}
	if got != want {
		t.Errorf("Classify = %+v, want %+v", got, want)
	}
}

func TestClassifyIdempotent(t *testing.T) {
	inputs := []string{"https://github.com/a/b", "example.com", "quantum computing", " padded.io/x "}
	for _, in := range inputs {
		first := Classify("same", in)
		second := Classify("same", in)
		if first != second {
			t.Errorf("Classify(%q) not stable: %+v vs %+v", in, first, second)
		}
	}
}

func TestClassifyTrimsPayload(t *testing.T) {
	got := Classify("x", "\t https://example.com \n")
	if got.Payload != "https://example.com" {
		t.Errorf("Payload = %q, want trimmed url", got.Payload)
	}
}

func TestParseKind(t *testing.T) {
	if ParseKind("github_repo") != RepositorySource {
		t.Error("github_repo should parse as RepositorySource")
	}
	if ParseKind(" URL ") != WebSource {
		t.Error("URL should parse as WebSource")
	}
	if ParseKind("whatever") != TopicSource {
		t.Error("unknown kind should parse as TopicSource")
	}
}

func TestHasURL(t *testing.T) {
	if !Classify("", "https://github.com/a/b").HasURL() {
		t.Error("repository input should have a url")
	}
	if Classify("", "a topic").HasURL() {
		t.Error("topic input should not have a url")
	}
}
