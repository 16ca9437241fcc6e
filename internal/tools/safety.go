package tools

import (
	"regexp"
	"strings"
)

// safetyMatcher flags one risky shell pattern. Matches produce warnings
// shown before the confirmation prompt; they never block execution.
type safetyMatcher struct {
	warn  string
	match func(cmd string) bool
}

func substringMatcher(warn string, needles ...string) safetyMatcher {
	return safetyMatcher{warn: warn, match: func(cmd string) bool {
		for _, n := range needles {
			if strings.Contains(cmd, n) {
				return true
			}
		}
		return false
	}}
}

func regexpMatcher(warn, pattern string) safetyMatcher {
	re := regexp.MustCompile(pattern)
	return safetyMatcher{warn: warn, match: re.MatchString}
}

var safetyMatchers = []safetyMatcher{
	regexpMatcher("command runs with elevated privileges (sudo)", `(^|[\s;|&])sudo(\s|$)`),
	substringMatcher("command uses a destructive flag", "--hard", "--force", "-rf", "--no-preserve-root"),
	regexpMatcher("command targets a device node under /dev", `(^|[\s=])/dev/\w`),
	regexpMatcher("command looks like a fork bomb", `:\s*\(\s*\)\s*\{.*\};\s*:`),
	regexpMatcher("dd can overwrite disks and devices", `(^|[\s;|&])dd(\s|$)`),
	regexpMatcher("command pipes downloaded or generated content into an interpreter", `\|\s*(ba|z|da|k)?sh(\s|$)|\|\s*(python[0-9.]*|perl|ruby|node)(\s|$)`),
	substringMatcher("command edits the sudoers configuration", "/etc/sudoers", "visudo"),
	regexpMatcher("command writes to a kernel entropy or zero device", `>\s*/dev/(u?random|zero)|of=/dev/(u?random|zero)`),
}

// SafetyWarnings runs every matcher over the command text and returns the
// warnings to display, one per matched category.
func SafetyWarnings(cmd string) []string {
	var warnings []string
	for _, m := range safetyMatchers {
		if m.match(cmd) {
			warnings = append(warnings, m.warn)
		}
	}
	return warnings
}
