package safety

import (
	"strings"
	"testing"

	"roadnerd/internal/model"
)

func TestAnalyze(t *testing.T) {
	c := New()

	tests := []struct {
		cmd         string
		risk        model.Risk
		destructive bool
		sudo        bool
	}{
		{"ip addr show", model.RiskLow, false, false},
		{"sudo systemctl restart NetworkManager", model.RiskMedium, false, true},
		{"sudo rm -rf /var/lib/apt/lists", model.RiskHigh, true, true},
		{"DD IF=/dev/zero of=/dev/sda", model.RiskHigh, true, false},
		{"echo ok; sudo reboot", model.RiskHigh, true, true},
		{"pseudosudo thing", model.RiskLow, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.cmd, func(t *testing.T) {
			a := c.Analyze(tt.cmd)
			if a.Risk != tt.risk {
				t.Errorf("Risk = %v, want %v", a.Risk, tt.risk)
			}
			if a.Destructive != tt.destructive {
				t.Errorf("Destructive = %v, want %v", a.Destructive, tt.destructive)
			}
			if a.RequiresSudo != tt.sudo {
				t.Errorf("RequiresSudo = %v, want %v", a.RequiresSudo, tt.sudo)
			}
		})
	}
}

func TestCustomPatterns(t *testing.T) {
	c := New("nmcli radio wifi off")
	if !c.IsDestructive("NMCLI radio wifi OFF") {
		t.Error("expected custom pattern to match case-insensitively")
	}
	if c.IsDestructive("rm -rf /") {
		t.Error("custom table should replace the defaults")
	}
}

func TestPreviewAndSummary(t *testing.T) {
	c := New()
	idea := model.Idea{
		ID:               "a1b2c3d4",
		Hypothesis:       "stale DHCP lease",
		RemediationSteps: []string{"sudo dhclient -r", "sudo reboot"},
	}

	actions := c.Preview(idea)
	if len(actions) != 2 {
		t.Fatalf("expected 2 actions, got %d", len(actions))
	}
	if actions[0].StepID != "a1b2c3d4-fix-1" || actions[0].Destructive || !actions[0].Sudo {
		t.Errorf("unexpected first action: %+v", actions[0])
	}
	if !actions[1].Destructive {
		t.Error("reboot should be destructive")
	}

	summary := Summary(actions)
	if !strings.Contains(summary, "not executed") {
		t.Error("summary should state steps are not executed")
	}
	if !strings.Contains(summary, "1 potentially destructive") {
		t.Errorf("summary missing destructive count: %s", summary)
	}
	if Summary(nil) != "No actions would be taken." {
		t.Error("empty summary mismatch")
	}
}
