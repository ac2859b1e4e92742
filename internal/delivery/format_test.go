package delivery

import "testing"

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Format
		ok   bool
	}{
		{"auto", FormatAuto, true},
		{"AVIF", FormatAVIF, true},
		{" webp ", FormatWebP, true},
		{"jpg", FormatJPEG, true},
		{"jpeg", FormatJPEG, true},
		{"png", FormatPNG, true},
		{"tiff", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseFormat(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Fatalf("ParseFormat(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestFormatResolve(t *testing.T) {
	tests := []struct {
		name string
		f    Format
		caps Capabilities
		want Format
	}{
		{"auto_avif", FormatAuto, Capabilities{AVIF: true, WebP: true}, FormatAVIF},
		{"auto_webp", FormatAuto, Capabilities{WebP: true}, FormatWebP},
		{"auto_none", FormatAuto, Capabilities{}, FormatJPEG},
		{"explicit_png", FormatPNG, Capabilities{AVIF: true}, FormatPNG},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.f.Resolve(tt.caps); got != tt.want {
				t.Fatalf("Resolve = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCapabilitiesSlowConnection(t *testing.T) {
	if !(Capabilities{ConnectionClass: "2G"}).SlowConnection() {
		t.Fatal("2g should be slow")
	}
	if (Capabilities{ConnectionClass: "4g"}).SlowConnection() {
		t.Fatal("4g should not be slow")
	}
}
