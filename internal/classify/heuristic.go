package classify

import (
	"regexp"

	"roadnerd/internal/model"
)

type weightedPattern struct {
	re     *regexp.Regexp
	weight float64
}

func pat(expr string, weight float64) weightedPattern {
	return weightedPattern{re: regexp.MustCompile(`(?i)` + expr), weight: weight}
}

// Weighted patterns per category. "dns" is deliberately absent from the
// network table so name-resolution issues are not split across two labels.
var defaultPatterns = map[string][]weightedPattern{
	"wifi": {
		pat(`\bwi-?fi\b|\bwlan\d*\b|\bwireless\b`, 2),
		pat(`\bssid\b|\bwpa_supplicant\b|\biwlwifi\b|\brfkill\b|\bhotspot\b`, 2),
		pat(`\baccess point\b|\bsignal strength\b|\bweak signal\b`, 1.5),
		pat(`\bdisconnect\w*\b|\bdrops?\b|\bdropping\b`, 0.5),
	},
	"dns": {
		pat(`\bdns\b`, 2),
		pat(`\bnslookup\b|\bdig\b|\bsystemd-resolved\b|\bresolvectl\b|\bresolv\.conf\b`, 2),
		pat(`\bnxdomain\b|\bservfail\b|\bcould not resolve\b|\bname resolution\b|\bhost ?name lookup\b`, 2),
		pat(`\bresolv\w*\b|\bresolution\b`, 1.5),
	},
	"network": {
		pat(`\bnetwork\b|\binternet\b|\bethernet\b|\bconnectivity\b`, 1.5),
		pat(`\b(no|lost) (internet|connection|network)\b|\boffline\b|\bunreachable\b`, 2),
		pat(`\bip (addr|route|link)\b|\bdhcp\b|\bgateway\b|\bping\b|\bpacket loss\b`, 1.5),
		pat(`\bvpn\b|\bproxy\b|\bfirewall\b|\brouter\b|\bconnection\b`, 1),
	},
	"power": {
		pat(`\bbattery\b|\bcharger\b|\bcharging\b|\bcharge\b|\bpower (button|supply|adapter)\b`, 2),
		pat(`\b(won'?t|will not|doesn'?t) (turn|power) on\b|\bno lights\b|\bdead\b`, 2),
		pat(`\bplug(ged)?\b|\bpower\b`, 1),
	},
	"boot": {
		pat(`\bboot\w*\b|\bbios\b|\buefi\b|\bgrub\b|\bbootloader\b`, 2),
		pat(`\bkernel panic\b|\bblue screen\b|\bbsod\b|\bstuck (at|on) (logo|startup)\b`, 2),
		pat(`\bstartup\b|\bwon'?t start\b|\bsecure boot\b`, 1),
	},
	"hardware": {
		pat(`\bram\b|\bmemory module\b|\bmotherboard\b|\bssd\b|\bhdd\b|\bnvme\b`, 2),
		pat(`\bdisk\b|\bdrive\b|\bfan\b|\bbeep\w*\b|\bclicking\b|\bsmart\b`, 1.5),
		pat(`\bhardware\b|\busb\b|\bkeyboard\b|\btouchpad\b|\bwebcam\b`, 1),
	},
	"physical": {
		pat(`\bdropped\b|\bspill\w*\b|\bliquid\b|\bwater\b|\bcoffee\b`, 2),
		pat(`\bcracked\b|\bbroken (screen|hinge|port)\b|\bdamage\w*\b|\bbent\b`, 2),
	},
	"software": {
		pat(`\bdriver\w*\b|\bapplication\b|\bprogram\b|\bapp\b`, 1.5),
		pat(`\bcrash\w*\b|\bsegfault\b|\bcorrupt\w*\b|\bmalware\b|\bvirus\b`, 2),
		pat(`\bupdate\w*\b|\bupgrade\w*\b|\binstall\w*\b|\bapt\b|\bdpkg\b|\bsnap\b|\bpackage\w*\b`, 1.5),
	},
	"user": {
		pat(`\bhow (do|to|can)\b|\bdon'?t know\b|\bconfused\b|\bforgot\w*\b`, 2),
		pat(`\bexpected\b|\bsupposed to\b|\bwrong (device|password|account)\b`, 1),
	},
	"performance": {
		pat(`\bslow\w*\b|\blag\w*\b|\bsluggish\b`, 2),
		pat(`\bfreez\w*\b|\bhang\w*\b|\bunresponsive\b`, 1.5),
		pat(`\bhigh (cpu|load|memory)\b|\bswap\w*\b|\biowait\b|\boverheat\w*\b|\bthrottl\w*\b`, 2),
	},
	"system": {
		pat(`\bkernel\b|\bdmesg\b|\bjournalctl\b|\bsystemd\b|\bsystemctl\b`, 1.5),
		pat(`\bservice\b|\bdaemon\b|\bconfiguration\b|\bsettings\b|\bpermission\w*\b`, 1),
		pat(`\bno space left\b|\bdisk full\b|\bread-only file ?system\b|\btime ?zone\b|\bclock\b`, 2),
	},
}

// Heuristic sums the weights of every matched pattern per category and
// normalizes by the total across categories.
type Heuristic struct {
	patterns map[string][]weightedPattern
}

func NewHeuristic() *Heuristic {
	return &Heuristic{patterns: defaultPatterns}
}

func (h *Heuristic) Name() string { return "heuristic" }

func (h *Heuristic) Scores(text string) []model.LabelScore {
	var (
		raw   []model.LabelScore
		total float64
	)
	for _, cat := range Categories {
		var s float64
		for _, wp := range h.patterns[cat] {
			if wp.re.MatchString(text) {
				s += wp.weight
			}
		}
		if s > 0 {
			raw = append(raw, model.LabelScore{Label: cat, Score: s})
			total += s
		}
	}
	if total == 0 {
		return nil
	}
	for i := range raw {
		raw[i].Score = round4(raw[i].Score / total)
	}
	sortScores(raw)
	return raw
}
