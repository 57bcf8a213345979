package rules

import (
	"testing"

	"github.com/visiona/autovideo/internal/provider"
)

func desc(name string, rank provider.Rank, class ...string) provider.Descriptor {
	return provider.Descriptor{Name: name, Rank: rank, Class: class}
}

func TestCompileErrors(t *testing.T) {
	for _, expr := range []string{
		"rank >",
		"unknownvar == 1",
	} {
		if _, err := Compile(expr); err == nil {
			t.Errorf("Compile(%q): expected error", expr)
		}
	}
}

func TestMatch(t *testing.T) {
	tests := []struct {
		expr string
		d    provider.Descriptor
		want bool
	}{
		{`name == "v4l2src"`, desc("v4l2src", 256), true},
		{`name == "v4l2src"`, desc("rtspsrc", 128), false},
		{`rank >= 128`, desc("rtspsrc", 128), true},
		{`rank >= 128`, desc("testsrc", 64), false},
		{`"Network" in class`, desc("rtspsrc", 128, "Source", "Video", "Network"), true},
		{`"Network" in class`, desc("v4l2src", 256, "Source", "Video", "Device"), false},
		{`rank >= 128 || name == "testsrc"`, desc("testsrc", 64), true},
	}
	for _, tt := range tests {
		c, err := Compile(tt.expr)
		if err != nil {
			t.Fatalf("Compile(%q): %v", tt.expr, err)
		}
		if got := c.Match(tt.d); got != tt.want {
			t.Errorf("Match(%q, %s) = %v, want %v", tt.expr, tt.d.Name, got, tt.want)
		}
	}
}

func TestNonBooleanIsNoMatch(t *testing.T) {
	c, err := Compile(`rank + 1`)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if c.Match(desc("x", 64)) {
		t.Error("non-boolean result must not match")
	}
}
