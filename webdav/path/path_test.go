package path

import "testing"

func TestNormalize(t *testing.T) {
	cases := []struct{ in, want string }{
		{"/a/b/c", "/a/b/c"},
		{"/a/./b", "/a/b"},
		{"/a/../b", "/b"},
		{"/a/b/../../c", "/c"},
		{"/a//b", "/a/b"},
		{"/a/b/", "/a/b"},
		{"/", "/"},
		{"/../../a", "/a"},
		{"a/b", "a/b"},
	}
	for _, tc := range cases {
		if got := Normalize(tc.in); got != tc.want {
			t.Errorf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{"/a/b/../c/./d//e/", "/../x", "/x/y/z", "/"}
	for _, in := range inputs {
		once := Normalize(in)
		twice := Normalize(once)
		if once != twice {
			t.Errorf("Normalize not idempotent for %q: once=%q twice=%q", in, once, twice)
		}
	}
}

func TestInTree(t *testing.T) {
	if !InTree("/a/b", "/a") {
		t.Error("expected /a/b to be in /a")
	}
	if InTree("/ab", "/a") {
		t.Error("did not expect /ab to be in /a")
	}
	if !InTree("/a", "/a") {
		t.Error("a path is in its own tree")
	}
}
