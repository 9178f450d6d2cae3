package main

import "testing"

func TestSplitChunks(t *testing.T) {
	got := splitChunks("first chunk\ncontinues here\n\nsecond chunk\n\n\n   \n\nthird")
	want := []string{"first chunk\ncontinues here", "second chunk", "third"}
	if len(got) != len(want) {
		t.Fatalf("chunks = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("chunk %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSplitChunksNormalizesCRLF(t *testing.T) {
	got := splitChunks("a\r\n\r\nb")
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("chunks = %v, want [a b]", got)
	}
}

func TestSplitChunksEmptyInput(t *testing.T) {
	if got := splitChunks("   \n\n\t\n"); len(got) != 0 {
		t.Fatalf("chunks = %v, want none", got)
	}
}
