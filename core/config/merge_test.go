package config

import (
	"testing"
	"time"
)

func TestDeepMergeStructs(t *testing.T) {
	type Inner struct {
		Value int
		Name  string
	}
	type Outer struct {
		Inner Inner
		Count int
	}

	dst := &Outer{Inner: Inner{Value: 1, Name: "original"}, Count: 10}
	src := &Outer{Inner: Inner{Value: 2}}

	DeepMerge(dst, src)

	if dst.Inner.Value != 2 {
		t.Errorf("Inner.Value: got %d, want 2", dst.Inner.Value)
	}
	if dst.Inner.Name != "original" {
		t.Errorf("Inner.Name: got %s, want original", dst.Inner.Name)
	}
	if dst.Count != 10 {
		t.Errorf("Count: got %d, want 10 (zero value shouldn't override)", dst.Count)
	}
}

func TestDeepMergeMaps(t *testing.T) {
	type S struct {
		M map[string]int
	}

	dst := &S{M: map[string]int{"a": 1, "b": 2}}
	src := &S{M: map[string]int{"b": 20, "c": 3}}

	DeepMerge(dst, src)

	want := map[string]int{"a": 1, "b": 20, "c": 3}
	for k, v := range want {
		if dst.M[k] != v {
			t.Errorf("M[%s]: got %d, want %d", k, dst.M[k], v)
		}
	}
}

func TestDeepMergeSlices(t *testing.T) {
	type S struct {
		Items []string
	}

	dst := &S{Items: []string{"a", "b"}}
	DeepMerge(dst, &S{Items: []string{}})
	if len(dst.Items) != 2 {
		t.Errorf("Items length: got %d, want 2 (empty slice shouldn't overwrite)", len(dst.Items))
	}

	DeepMerge(dst, &S{Items: []string{"x", "y", "z"}})
	if len(dst.Items) != 3 || dst.Items[0] != "x" {
		t.Errorf("Items: got %v, want [x y z]", dst.Items)
	}
}

func TestDeepMergePointers(t *testing.T) {
	type S struct {
		Limit *int
	}

	n := 7
	dst := &S{}
	DeepMerge(dst, &S{Limit: &n})

	if dst.Limit == nil || *dst.Limit != 7 {
		t.Errorf("Limit: got %v, want 7", dst.Limit)
	}
}

func TestDeepMergeMismatchedTypesIgnored(t *testing.T) {
	type A struct{ N int }
	type B struct{ N int }

	dst := &A{N: 1}
	DeepMerge(dst, &B{N: 2})

	if dst.N != 1 {
		t.Errorf("N: got %d, want 1", dst.N)
	}
}

func TestDeepMergeConfig(t *testing.T) {
	dst := DefaultConfig()
	src := &Config{
		Search: SearchConfig{
			MaxPendingFetches: 4,
			FetchTimeout:      time.Second,
		},
		Log: LogConfig{Level: "debug"},
	}

	DeepMerge(dst, src)

	if dst.Search.MaxPendingFetches != 4 {
		t.Errorf("MaxPendingFetches: got %d, want 4", dst.Search.MaxPendingFetches)
	}
	if dst.Search.FetchTimeout != time.Second {
		t.Errorf("FetchTimeout: got %v, want 1s", dst.Search.FetchTimeout)
	}
	if dst.Search.SnippetCacheCost != 1<<16 {
		t.Errorf("SnippetCacheCost should retain default: got %d", dst.Search.SnippetCacheCost)
	}
	if dst.Log.Level != "debug" || dst.Log.Format != "text" {
		t.Errorf("Log: got %+v, want debug/text", dst.Log)
	}
}
