package fieldpath

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"testing"
)

func TestGetDotAndBracketEquivalent(t *testing.T) {
	var doc map[string]interface{}
	raw := `{"choices":[{"message":{"content":"hello"}}]}`
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		t.Fatal(err)
	}

	v1, ok1 := Get(doc, "choices[0].message.content")
	v2, ok2 := Get(doc, "choices.0.message.content")
	if !ok1 || !ok2 {
		t.Fatalf("expected both notations to resolve: %v %v", ok1, ok2)
	}
	if v1 != "hello" || v2 != "hello" {
		t.Fatalf("values = %v / %v, want hello", v1, v2)
	}
}

func TestGetMissingIntermediate(t *testing.T) {
	doc := map[string]interface{}{"a": map[string]interface{}{}}

	if _, ok := Get(doc, "a.b.c"); ok {
		t.Fatal("missing intermediate should report not found")
	}
	if _, ok := Get(doc, "x[3].y"); ok {
		t.Fatal("missing array should report not found")
	}
	if _, ok := Get(nil, "a"); ok {
		t.Fatal("nil root should report not found")
	}
}

func TestGetArrayOutOfRange(t *testing.T) {
	var doc map[string]interface{}
	if err := json.Unmarshal([]byte(`{"data":[1,2]}`), &doc); err != nil {
		t.Fatal(err)
	}
	if _, ok := Get(doc, "data[5]"); ok {
		t.Fatal("out of range index should report not found")
	}
	if _, ok := Get(doc, "data[-1]"); ok {
		t.Fatal("negative index should report not found")
	}
}

func TestSetCreatesIntermediates(t *testing.T) {
	root := map[string]interface{}{}
	Set(root, "output.results[0].url", "https://example.com/a.png")

	got := GetString(root, "output.results[0].url")
	if got != "https://example.com/a.png" {
		t.Fatalf("round trip = %q", got)
	}
}

func TestSetOverwritesScalarIntermediate(t *testing.T) {
	root := map[string]interface{}{"a": "scalar"}
	Set(root, "a.b", 1)
	if v, ok := Get(root, "a.b"); !ok || v != 1 {
		t.Fatalf("got %v %v", v, ok)
	}
}

// 随机路径往返：get(set({}, p, v), p) == v
func TestSetGetRoundTripRandomPaths(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	segments := []string{"data", "output", "result", "task", "choices", "message"}

	for i := 0; i < 200; i++ {
		depth := 1 + rng.Intn(5)
		path := ""
		for d := 0; d < depth; d++ {
			if d > 0 {
				path += "."
			}
			if rng.Intn(3) == 0 {
				path += fmt.Sprintf("%s[%d]", segments[rng.Intn(len(segments))], rng.Intn(4))
			} else {
				path += segments[rng.Intn(len(segments))]
			}
		}

		value := fmt.Sprintf("value-%d", i)
		root := map[string]interface{}{}
		Set(root, path, value)
		got, ok := Get(root, path)
		if !ok || got != value {
			t.Fatalf("path %q: got %v %v, want %q", path, got, ok, value)
		}
	}
}

func TestGetNumber(t *testing.T) {
	var doc map[string]interface{}
	if err := json.Unmarshal([]byte(`{"usage":{"prompt_tokens":12}}`), &doc); err != nil {
		t.Fatal(err)
	}
	n, ok := GetNumber(doc, "usage.prompt_tokens")
	if !ok || n != 12 {
		t.Fatalf("got %v %v", n, ok)
	}
	if _, ok := GetNumber(doc, "usage.missing"); ok {
		t.Fatal("missing number should report not found")
	}
}
