package optimize

import "testing"

func TestNormalizeBaseURL(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"", ""},
		{"https://api.openai.com", "https://api.openai.com/v1"},
		{"https://api.openai.com/v1", "https://api.openai.com/v1"},
		{"https://api.openai.com/v1/", "https://api.openai.com/v1"},
		{"https://proxy.example.com/v1/chat/completions", "https://proxy.example.com/v1"},
		{"https://proxy.example.com/chat/completions", "https://proxy.example.com/v1"},
		{" https://api.openai.com/v1 ", "https://api.openai.com/v1"},
	}
	for _, c := range cases {
		if got := NormalizeBaseURL(c.in); got != c.want {
			t.Errorf("NormalizeBaseURL(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
