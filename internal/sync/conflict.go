package sync

import (
	"regexp"
	"strings"
)

// conflictRegion matches one merge region. Group 1 is ours, group 2 the
// optional diff3 base, group 3 theirs.
var conflictRegion = regexp.MustCompile(
	`(?ms)^<{7}[^\n]*\n(.*?)(?:^\|{7}[^\n]*\n(.*?))?^={7}[^\n]*\n(.*?)^>{7}[^\n]*$`,
)

// ParseConflict extracts the first conflict region of a file. Without
// markers both sides carry the whole content and there is no base.
func ParseConflict(file, content string) ConflictInfo {
	matches := conflictRegion.FindAllStringSubmatchIndex(content, -1)
	if len(matches) == 0 {
		return ConflictInfo{
			File:          file,
			LocalContent:  content,
			RemoteContent: content,
		}
	}

	m := matches[0]
	info := ConflictInfo{
		File:          file,
		LocalContent:  strings.TrimSpace(content[m[2]:m[3]]),
		RemoteContent: strings.TrimSpace(content[m[6]:m[7]]),
		Hunks:         len(matches),
	}
	if m[4] >= 0 {
		base := strings.TrimSpace(content[m[4]:m[5]])
		info.BaseContent = &base
	}
	return info
}

// HasConflictMarkers reports whether content still carries a merge region
func HasConflictMarkers(content string) bool {
	return conflictRegion.MatchString(content)
}
