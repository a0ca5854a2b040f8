package ui

import (
	"errors"
	"strings"
	"testing"

	"github.com/FastTravelAS/chippy/internal/discovery"
	"github.com/FastTravelAS/chippy/internal/status"
)

func TestStatusReportRender(t *testing.T) {
	tests := []struct {
		name   string
		report StatusReport
		want   []string
		absent []string
	}{
		{
			name: "online with clients",
			report: StatusReport{
				Instance: "gate-1",
				Server:   status.Online,
				Clients:  map[int]string{12: status.ClientTransactionMode, 3: "CONFIGURING"},
			},
			want:   []string{"gate-1", "online", "client 3", "client 12", "transaction mode", "configuring"},
			absent: []string{"On this network"},
		},
		{
			name:   "never started",
			report: StatusReport{Instance: "gate-2"},
			want:   []string{"never started", "0"},
		},
		{
			name: "offline with discovered servers",
			report: StatusReport{
				Instance: "gate-3",
				Server:   status.Offline,
				Discovered: []*discovery.Instance{
					{Name: "gate-4", IP: "10.0.0.4", Port: 44999, Version: "1.0.0"},
					{Name: "gate-5", IP: "10.0.0.5", Port: 44999},
				},
			},
			want: []string{"offline", "On this network", "10.0.0.4:44999", "1.0.0", "unknown"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.report.Width = 80
			out := tt.report.Render()
			for _, s := range tt.want {
				if !strings.Contains(out, s) {
					t.Errorf("output missing %q:\n%s", s, out)
				}
			}
			for _, s := range tt.absent {
				if strings.Contains(out, s) {
					t.Errorf("output unexpectedly contains %q", s)
				}
			}
		})
	}
}

func TestStatusReportClientOrder(t *testing.T) {
	r := StatusReport{Instance: "x", Clients: map[int]string{40: "A", 7: "B", 19: "C"}, Width: 80}
	out := r.Render()
	i7, i19, i40 := strings.Index(out, "client 7"), strings.Index(out, "client 19"), strings.Index(out, "client 40")
	if !(i7 < i19 && i19 < i40) {
		t.Errorf("clients not sorted: %d %d %d", i7, i19, i40)
	}
}

func TestHeaderRender(t *testing.T) {
	h := NewHeader("chippy status", "chippy status", map[string]string{"Redis": "redis://localhost:6379", "Instance": "gate-1"})
	h.SetWidth(80)
	out := h.String()
	if !strings.Contains(out, "CHIPPY STATUS") {
		t.Errorf("title not upper-cased:\n%s", out)
	}
	if strings.Index(out, "Instance:") > strings.Index(out, "Redis:") {
		t.Errorf("params not sorted:\n%s", out)
	}

	bare := NewHeader("version", "chippy version", nil).SetWidth(10).Render()
	if !strings.Contains(bare, "VERSION") {
		t.Errorf("bare header = %q", bare)
	}
}

func TestRenderError(t *testing.T) {
	out := RenderError("Status store unreachable", errors.New("dial tcp: connection refused"), []string{"check --redis-url"}, 70)
	for _, s := range []string{"Status store unreachable", "connection refused", "check --redis-url"} {
		if !strings.Contains(out, s) {
			t.Errorf("output missing %q", s)
		}
	}
}

func TestClampWidth(t *testing.T) {
	tests := []struct{ in, want int }{
		{10, MinTerminalWidth},
		{80, 80},
		{400, MaxContentWidth},
	}
	for _, tt := range tests {
		if got := clampWidth(tt.in); got != tt.want {
			t.Errorf("clampWidth(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
