package logging

import (
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name  string
		level string
		debug bool
	}{
		{name: "empty is nop", level: "", debug: false},
		{name: "debug", level: "debug", debug: true},
		{name: "info", level: "info", debug: false},
		{name: "unknown falls back to info", level: "loud", debug: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(tt.level)
			if err != nil {
				t.Fatalf("New(%q) error = %v", tt.level, err)
			}
			if got := l.Core().Enabled(-1); got != tt.debug {
				t.Errorf("debug enabled = %v, want %v", got, tt.debug)
			}
		})
	}
}

func TestHexDump(t *testing.T) {
	if got := HexDump(nil); got != "" {
		t.Errorf("HexDump(nil) = %q, want empty", got)
	}
	if got := HexDump([]byte{0x02, 0x00, 0x17}); got != "020017" {
		t.Errorf("HexDump = %q, want 020017", got)
	}

	long := make([]byte, 300)
	got := HexDump(long)
	if !strings.HasSuffix(got, "...") || len(got) != 512+3 {
		t.Errorf("HexDump(300 bytes) len = %d, want truncated 515", len(got))
	}
}
