// Package sysinfo collects a short description of the local machine for the
// brainstorm prompt. Every field is best effort.
package sysinfo

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"
	psnet "github.com/shirou/gopsutil/v4/net"
)

// Info is a snapshot of the host.
type Info struct {
	Hostname   string   `json:"hostname"`
	OS         string   `json:"os"`
	Platform   string   `json:"platform"`
	Kernel     string   `json:"kernel"`
	Arch       string   `json:"arch"`
	MemTotalMB uint64   `json:"mem_total_mb"`
	MemUsedPct float64  `json:"mem_used_pct"`
	Load1      float64  `json:"load1"`
	Interfaces []string `json:"interfaces"`
	// Connectivity is reported separately by the status endpoint.
	Connectivity *Connectivity `json:"-"`
}

// Provider supplies host information.
type Provider interface {
	Info(ctx context.Context) (Info, error)
}

// Local reads the machine the process runs on. A nil Net uses
// DefaultNetChecker.
type Local struct {
	Net *NetChecker
}

func (l Local) Info(ctx context.Context) (Info, error) {
	info := Info{Arch: runtime.GOARCH, OS: runtime.GOOS}

	checker := DefaultNetChecker()
	if l.Net != nil {
		checker = *l.Net
	}
	conn := checker.Check(ctx)
	info.Connectivity = &conn

	h, err := host.InfoWithContext(ctx)
	if err != nil {
		return info, fmt.Errorf("host info: %w", err)
	}
	info.Hostname = h.Hostname
	info.Kernel = h.KernelVersion
	if h.KernelArch != "" {
		info.Arch = h.KernelArch
	}
	info.Platform = strings.TrimSpace(h.Platform + " " + h.PlatformVersion)

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		info.MemTotalMB = vm.Total / (1024 * 1024)
		info.MemUsedPct = vm.UsedPercent
	}
	if avg, err := load.AvgWithContext(ctx); err == nil {
		info.Load1 = avg.Load1
	}
	if ifaces, err := psnet.InterfacesWithContext(ctx); err == nil {
		for _, iface := range ifaces {
			if iface.Name == "lo" || !hasFlag(iface.Flags, "up") {
				continue
			}
			info.Interfaces = append(info.Interfaces, iface.Name)
		}
	}
	return info, nil
}

// Static returns fixed information, for tests and remote targets.
type Static Info

func (s Static) Info(context.Context) (Info, error) {
	return Info(s), nil
}

// Summary renders the snapshot as a few prompt lines.
func (i Info) Summary() string {
	var sb strings.Builder
	line := func(k, v string) {
		if v != "" {
			fmt.Fprintf(&sb, "%s: %s\n", k, v)
		}
	}
	line("OS", strings.TrimSpace(i.Platform+" ("+i.OS+")"))
	line("Kernel", i.Kernel)
	line("Arch", i.Arch)
	line("Hostname", i.Hostname)
	if i.MemTotalMB > 0 {
		line("Memory", fmt.Sprintf("%d MB, %.0f%% used", i.MemTotalMB, i.MemUsedPct))
	}
	if i.Load1 > 0 {
		line("Load", fmt.Sprintf("%.2f", i.Load1))
	}
	if len(i.Interfaces) > 0 {
		line("Interfaces up", strings.Join(i.Interfaces, ", "))
	}
	if i.Connectivity != nil {
		line("Connectivity", i.Connectivity.String())
	}
	return strings.TrimRight(sb.String(), "\n")
}

func hasFlag(flags []string, want string) bool {
	for _, f := range flags {
		if strings.EqualFold(f, want) {
			return true
		}
	}
	return false
}
