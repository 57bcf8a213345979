package caps

import "testing"

func TestParseBasic(t *testing.T) {
	c, err := Parse("video/x-raw-yuv, format={I420,I422}; video/x-raw-rgb")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	sts := c.Structures()
	if len(sts) != 2 {
		t.Fatalf("expected 2 structures, got %d", len(sts))
	}
	if sts[0].MediaType != "video/x-raw-yuv" {
		t.Errorf("media type = %q", sts[0].MediaType)
	}
	if got := sts[0].Fields["format"]; len(got) != 2 || got[0] != "I420" || got[1] != "I422" {
		t.Errorf("format values = %v", got)
	}
	if sts[1].MediaType != "video/x-raw-rgb" {
		t.Errorf("media type = %q", sts[1].MediaType)
	}
}

func TestParseAny(t *testing.T) {
	c, err := Parse("ANY")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !c.IsAny() {
		t.Error("expected ANY caps")
	}
}

func TestParseErrors(t *testing.T) {
	for _, expr := range []string{
		"",
		"video/x-raw-yuv, format=",
		"video/x-raw-yuv, =I420",
		"video/x-raw-yuv, bogus",
		"format=I420",
	} {
		if _, err := Parse(expr); err == nil {
			t.Errorf("Parse(%q): expected error", expr)
		}
	}
}

func TestIntersects(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want bool
	}{
		{"same media type", "video/x-raw-yuv", "video/x-raw-yuv", true},
		{"different media type", "video/x-raw-yuv", "application/x-rtp", false},
		{"one of several", "video/x-raw-yuv; video/x-raw-rgb", "video/x-raw-rgb", true},
		{"common field value", "video/x-raw-yuv, format={I420,I422}", "video/x-raw-yuv, format=I420", true},
		{"disjoint field values", "video/x-raw-yuv, format=I420", "video/x-raw-yuv, format=I422", false},
		{"unconstrained field", "video/x-raw-yuv, format=I420", "video/x-raw-yuv", true},
		{"any matches all", "ANY", "application/x-rtp", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := Parse(tt.a)
			if err != nil {
				t.Fatalf("parse a: %v", err)
			}
			b, err := Parse(tt.b)
			if err != nil {
				t.Fatalf("parse b: %v", err)
			}
			if got := a.Intersects(b); got != tt.want {
				t.Errorf("Intersects = %v, want %v", got, tt.want)
			}
			if got := b.Intersects(a); got != tt.want {
				t.Errorf("reverse Intersects = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEmptyMatchesNothing(t *testing.T) {
	empty := New()
	if !empty.IsEmpty() {
		t.Fatal("expected empty caps")
	}
	if empty.Intersects(NewAny()) {
		t.Error("empty caps must not intersect ANY")
	}
	if NewAny().Intersects(empty) {
		t.Error("ANY must not intersect empty caps")
	}
}

func TestDefaultRaw(t *testing.T) {
	c := DefaultRaw()
	rtp := New("application/x-rtp")
	if c.Intersects(rtp) {
		t.Error("raw filter must exclude packetized caps")
	}
	if !c.Intersects(New("video/x-raw-rgb")) {
		t.Error("raw filter must accept raw rgb")
	}
}

func TestStringRoundTrip(t *testing.T) {
	in := "video/x-raw-yuv, format={I420,I422}; video/x-raw-rgb"
	c, err := Parse(in)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	back, err := Parse(c.String())
	if err != nil {
		t.Fatalf("reparse %q: %v", c.String(), err)
	}
	if len(back.Structures()) != 2 {
		t.Errorf("round trip lost structures: %q", back.String())
	}
}
