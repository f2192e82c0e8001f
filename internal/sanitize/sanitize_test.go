package sanitize

import "testing"

func TestSanitize_Img(t *testing.T) {
	out, err := Sanitize(`<p>hello</p><img src="x.png" alt="x">`)
	if err != nil {
		t.Fatalf("Sanitize: %v", err)
	}
	if want := "（此处应有图片，请前往原文链接查看）"; !contains(out, want) {
		t.Fatalf("expected placeholder text in output, got %q", out)
	}
	if contains(out, "<img") {
		t.Fatalf("expected <img> to be removed, got %q", out)
	}
}

func TestSanitize_Pre(t *testing.T) {
	out, err := Sanitize(`<pre>fn main() {}</pre>`)
	if err != nil {
		t.Fatalf("Sanitize: %v", err)
	}
	if contains(out, "<pre") {
		t.Fatalf("expected <pre> to be removed, got %q", out)
	}
	if want := "（此处应有代码块，请前往原文链接查看）"; !contains(out, want) {
		t.Fatalf("expected placeholder text in output, got %q", out)
	}
}

func TestSanitize_AnchorDropsRel(t *testing.T) {
	out, err := Sanitize(`<a href="https://rustcc.cn/x" rel="noopener noreferrer" title="t">link</a>`)
	if err != nil {
		t.Fatalf("Sanitize: %v", err)
	}
	if contains(out, "rel=") {
		t.Fatalf("expected rel attribute to be stripped, got %q", out)
	}
	if !contains(out, `href="https://rustcc.cn/x"`) || !contains(out, `title="t"`) {
		t.Fatalf("expected other attributes preserved, got %q", out)
	}
}

func TestSanitize_DescendsOtherElements(t *testing.T) {
	out, err := Sanitize(`<div><p>text <img src="y.png"></p></div>`)
	if err != nil {
		t.Fatalf("Sanitize: %v", err)
	}
	if contains(out, "<img") {
		t.Fatalf("expected nested <img> to be removed, got %q", out)
	}
	if !contains(out, "<div>") || !contains(out, "<p>") {
		t.Fatalf("expected outer elements preserved, got %q", out)
	}
}

func TestSanitize_Idempotent(t *testing.T) {
	input := `<p>hi</p><img src="a.png"><pre>code</pre><a href="/x" rel="nofollow">y</a>`
	once, err := Sanitize(input)
	if err != nil {
		t.Fatalf("Sanitize: %v", err)
	}
	twice, err := Sanitize(once)
	if err != nil {
		t.Fatalf("Sanitize (second pass): %v", err)
	}
	if once != twice {
		t.Fatalf("sanitize is not idempotent:\nonce:  %q\ntwice: %q", once, twice)
	}
}

func TestSanitize_EmptyFragmentParses(t *testing.T) {
	// html.ParseFragment is tolerant of almost anything, so no input here
	// triggers the parse-error path; this asserts that an empty fragment
	// parses without error.
	if _, err := Sanitize(""); err != nil {
		t.Fatalf("Sanitize(empty): unexpected error: %v", err)
	}
}

func contains(haystack, needle string) bool {
	return len(haystack) >= len(needle) && indexOf(haystack, needle) >= 0
}

func indexOf(haystack, needle string) int {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return i
		}
	}
	return -1
}
