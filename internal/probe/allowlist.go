package probe

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"roadnerd/internal/safety"
)

// ErrCommandRejected marks a verification step that is not an allow-listed
// read-only diagnostic.
var ErrCommandRejected = errors.New("command rejected")

const maxCommandLen = 200

var (
	safeChars = regexp.MustCompile(`^[A-Za-z0-9 ._:/@=,%+|-]+$`)
	spaces    = regexp.MustCompile(`\s+`)
)

// arg is a single conservative argument token.
const arg = `[A-Za-z0-9@._:-]+`

// defaultRules match the first segment of a pipeline. Every rule is
// anchored; verbs that change state are simply absent.
var defaultRules = []string{
	`^ip( -[0-9a-z]+)* (a|addr|address|l|link|r|route|n|neigh|rule|maddr)( (show|list|ls|get)( [A-Za-z0-9._:/-]+)*)?$`,
	`^nmcli( -[a-z]+( [A-Za-z,-]+)?)* ((general|g)( status)?|(device|dev|d)( (status|show( ` + arg + `)?|wifi( list)?))?|(connection|con|c)( (show|s)( --active| ` + arg + `)*)?|(radio|r)( (wifi|wwan|all))?|(networking|n)( connectivity)?)$`,
	`^rfkill( list( (all|wlan|wifi|bluetooth))?)?$`,
	`^iw (dev|list|phy|reg get)( [A-Za-z0-9._-]+( (link|info|station dump))?)?$`,
	`^iwconfig( [A-Za-z0-9._-]+)?$`,
	`^resolvectl( status( [A-Za-z0-9._-]+)?| query ` + arg + `| statistics| (dns|domain)( [A-Za-z0-9._-]+)?)?$`,
	`^systemd-resolve --status$`,
	`^nslookup ` + arg + `( ` + arg + `)?$`,
	`^dig( @` + arg + `)?( \+[a-z]+)*( ` + arg + `){1,2}( \+[a-z]+)*$`,
	`^host( -t [A-Za-z]+)? ` + arg + `( ` + arg + `)?$`,
	`^getent (hosts|ahosts|ahostsv4|ahostsv6) ` + arg + `$`,
	`^ping( -[46qn]| -[Ww] ?[0-9]{1,2})* -c ?[1-5]( -[46qn]| -[Ww] ?[0-9]{1,2})* ` + arg + `$`,
	`^cat (/etc/(resolv\.conf|hosts|hostname|os-release|fstab|nsswitch\.conf|NetworkManager/NetworkManager\.conf)|/proc/(cpuinfo|meminfo|loadavg|uptime|version|swaps|mounts|net/wireless|net/dev|net/route)|/sys/class/power_supply/[A-Za-z0-9_]+/(capacity|status|health|cycle_count|energy_full|energy_full_design)|/sys/class/net/[A-Za-z0-9_.-]+/(operstate|carrier|address))$`,
	`^systemctl( --no-pager| --user| -l| --failed| --type=[a-z]+| --state=[a-z]+)*( (status|is-active|is-enabled|is-failed|show|list-units|list-unit-files)( [A-Za-z0-9@._-]+)*)?( --no-pager| -l)*$`,
	`^journalctl( (-b( -?[0-9]+)?|-k|-x|-e|-q|--no-pager|--list-boots|-p ?[0-7a-z]+|--priority=[0-7a-z]+|-u ?[A-Za-z0-9@._-]+|--unit=[A-Za-z0-9@._-]+|-n ?[0-9]{1,4}|--lines=[0-9]{1,4}|--since[= ][A-Za-z0-9:-]+|--boot(=-?[0-9]+)?|-o ?(short|cat|short-iso)))*$`,
	`^dmesg( (-[HTLkex]+|-t|-l ?[a-z,]+|--level[= ][a-z,]+|--ctime|--color=never|--nopager))*$`,
	`^lsblk( -[a-zA-Z]+| -o ?[A-Z,]+)*( /dev/[a-z0-9]+)?$`,
	`^df( -[hTiPalkm]+)*( /[A-Za-z0-9._/-]*)?$`,
	`^free( -[hmgkbtw]+)*$`,
	`^uptime( -[ps])?$`,
	`^uname( -[asnrvmpio]+)*$`,
	`^lspci( -[nkvDt]+| -s ?[0-9a-fA-F:.]+| -d ?[0-9a-fA-F:]+)*$`,
	`^lsusb( -[vt]+)*$`,
	`^lsmod$`,
	`^ss( -[tulpnaxis46]+)*$`,
	`^netstat( -[tulpnarsie]+)*$`,
	`^ps( (aux|auxf|-ef|-e|-eo [a-z,%]+|-o [a-z,%]+|--sort=-?[a-z%]+|-p [0-9]+|-C [A-Za-z0-9._-]+))*$`,
	`^top( -bn ?1| -b -n ?1)( -o ?%?[A-Za-z]+)?$`,
	`^hostnamectl( status)?$`,
	`^timedatectl( (status|show|timesync-status|show-timesync))?$`,
	`^ethtool( -[iSkP])? [A-Za-z0-9._-]+$`,
	`^sensors( -[Aj])*$`,
	`^upower( -e| --enumerate| -d| --dump| -i [A-Za-z0-9/_.-]+)$`,
	`^acpi( -[abitVs]+)*$`,
	`^lscpu$`,
	`^lshw( -short| -businfo| -C [a-z]+| -class [a-z]+)*$`,
	`^ls( -[la1hd]+)* (/etc/NetworkManager/system-connections|/sys/class/net|/sys/class/power_supply|/dev/disk/by-uuid)/?$`,
	`^(date|whoami|id|hostname)$`,
	`^which [A-Za-z0-9._-]+$`,
}

// filterRules match every pipeline segment after the first.
var filterRules = []string{
	`^grep( -[iEvcnwFo]+| -m ?[0-9]+| -[AB] ?[0-9]+)* [A-Za-z0-9._:/@=,%+-]+$`,
	`^head( -n ?[0-9]+| -[0-9]+| -c ?[0-9]+)?$`,
	`^tail( -n ?[0-9]+| -[0-9]+)?$`,
	`^wc( -[lwc]+)?$`,
	`^sort( -[nrhuk]+| -k ?[0-9,]+)*$`,
	`^uniq( -[cdu]+)*$`,
}

// AllowList decides which verification steps may run.
type AllowList struct {
	rules   []*regexp.Regexp
	filters []*regexp.Regexp
	safety  *safety.Checker
}

// DefaultAllowList returns the built-in read-only diagnostic rules.
func DefaultAllowList() *AllowList {
	return NewAllowList(defaultRules...)
}

// NewAllowList compiles rules for the first pipeline segment. Pipe filters
// are always the built-in set. Invalid expressions panic.
func NewAllowList(rules ...string) *AllowList {
	a := &AllowList{safety: safety.New()}
	for _, r := range rules {
		a.rules = append(a.rules, regexp.MustCompile(r))
	}
	for _, r := range filterRules {
		a.filters = append(a.filters, regexp.MustCompile(r))
	}
	return a
}

// Normalize trims shell-prompt decoration and collapses whitespace.
func Normalize(cmd string) string {
	cmd = strings.TrimSpace(cmd)
	cmd = strings.Trim(cmd, "`")
	cmd = strings.TrimPrefix(cmd, "$ ")
	cmd = strings.TrimPrefix(cmd, "# ")
	return strings.TrimSpace(spaces.ReplaceAllString(cmd, " "))
}

// Admit returns the normalized command, or an error wrapping
// ErrCommandRejected that says why it may not run.
func (a *AllowList) Admit(cmd string) (string, error) {
	norm := Normalize(cmd)
	switch {
	case norm == "":
		return "", fmt.Errorf("%w: empty", ErrCommandRejected)
	case len(norm) > maxCommandLen:
		return "", fmt.Errorf("%w: longer than %d characters", ErrCommandRejected, maxCommandLen)
	case !safeChars.MatchString(norm):
		return "", fmt.Errorf("%w: shell metacharacters", ErrCommandRejected)
	case strings.Contains(norm, "||"):
		return "", fmt.Errorf("%w: shell operator", ErrCommandRejected)
	}
	if a.safety.IsDestructive(norm) {
		return "", fmt.Errorf("%w: destructive", ErrCommandRejected)
	}

	segments := strings.Split(norm, "|")
	for i, seg := range segments {
		seg = strings.TrimSpace(seg)
		table := a.rules
		if i > 0 {
			table = a.filters
		}
		if !matchAny(table, seg) {
			if i == 0 {
				return "", fmt.Errorf("%w: %q is not an allowed diagnostic", ErrCommandRejected, firstWord(seg))
			}
			return "", fmt.Errorf("%w: pipe into %q", ErrCommandRejected, firstWord(seg))
		}
	}
	return norm, nil
}

// Allowed reports whether cmd would be admitted.
func (a *AllowList) Allowed(cmd string) bool {
	_, err := a.Admit(cmd)
	return err == nil
}

func matchAny(rules []*regexp.Regexp, s string) bool {
	for _, r := range rules {
		if r.MatchString(s) {
			return true
		}
	}
	return false
}

func firstWord(s string) string {
	if i := strings.IndexByte(s, ' '); i > 0 {
		return s[:i]
	}
	return s
}
