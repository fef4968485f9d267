package version

import "testing"

func TestGet(t *testing.T) {
	if Get() == "" {
		t.Error("Get() returned empty version")
	}
}

func TestString_Commit(t *testing.T) {
	orig := Commit
	defer func() { Commit = orig }()

	tests := []struct {
		commit string
		want   string
	}{
		{"", Get()},
		{"abc1234", Get() + " (abc1234)"},
		{"0123456789abcdef", Get() + " (0123456)"},
	}
	for _, tt := range tests {
		Commit = tt.commit
		if got := String(); got != tt.want {
			t.Errorf("String() with Commit=%q = %q, want %q", tt.commit, got, tt.want)
		}
	}
}
