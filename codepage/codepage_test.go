package codepage

import "testing"

func TestDecodeASCIIPassesThrough(t *testing.T) {
	got, err := Decode(ASCII, []byte("hello"))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got != "hello" {
		t.Errorf("got %q, want %q", got, "hello")
	}
}

func TestDecodeWindows1252(t *testing.T) {
	// 0xE9 in windows-1252 is 'é'.
	got, err := Decode(Windows1252, []byte{0xE9})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got != "é" {
		t.Errorf("got %q, want %q", got, "é")
	}
}

func TestDecodeUnsupportedCodepage(t *testing.T) {
	if _, err := Decode(Name("not-a-real-codepage"), []byte("x")); err == nil {
		t.Fatal("expected error for unsupported codepage, got nil")
	}
}

func TestValid(t *testing.T) {
	cases := []struct {
		name Name
		want bool
	}{
		{ASCII, true},
		{Windows1252, true},
		{Windows949, true},
		{Name("bogus"), false},
	}
	for _, c := range cases {
		if got := Valid(c.name); got != c.want {
			t.Errorf("Valid(%q) = %v, want %v", c.name, got, c.want)
		}
	}
}
