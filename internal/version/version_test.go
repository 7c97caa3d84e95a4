package version

import (
	"strings"
	"testing"
)

func TestInfo_MatchesGetters(t *testing.T) {
	v, c, d := Info()
	if v == "" || c == "" || d == "" {
		t.Fatalf("build info must not be empty: %q %q %q", v, c, d)
	}
	if GetVersion() != v {
		t.Errorf("GetVersion() = %q, want %q", GetVersion(), v)
	}
	if GetCommit() != c {
		t.Errorf("GetCommit() = %q, want %q", GetCommit(), c)
	}
	if GetDate() != d {
		t.Errorf("GetDate() = %q, want %q", GetDate(), d)
	}
}

func TestString(t *testing.T) {
	s := String()
	for _, part := range []string{"storefront", "version=", "commit=", "date="} {
		if !strings.Contains(s, part) {
			t.Errorf("String() = %q, missing %q", s, part)
		}
	}
}
