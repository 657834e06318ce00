// Package duration reads the elapsed-time text shown next to statuses and
// interactions, and formats elapsed milliseconds back for display.
package duration

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	// a clock must stand alone: "123:45:67" and "12:34:56:78" are not clocks
	clockRe = regexp.MustCompile(`(?:^|[^\d:])(\d{1,2}):([0-5]\d)(?::([0-5]\d))?(?:$|[^\d:])`)

	// units must stand alone ("1h 2m"); glued forms fall through to compactRe
	unitRe = regexp.MustCompile(`\b(\d+)\s*(hours|hour|hrs|hr|heures|heure|h|minutes|minute|min|mn|m|seconds|second|secondes|seconde|secs|sec|s)\b`)

	compactRe = regexp.MustCompile(`(?:(\d+)h)?(?:(\d+)(?:min|mn|m))?(?:(\d+)(?:sec|s))?`)

	spaceReplacer = strings.NewReplacer("\u202f", " ", "\u00a0", " ")
)

// Parse returns the number of seconds expressed by text. Accepted forms, in
// order of precedence: "HH:MM:SS" or "MM:SS", verbal unit lists such as
// "1h 2m 3s" or "4 minutes 9 secondes", and compact forms such as "1h2m3s".
// ok is false when no duration is found or a number does not fit; callers
// must keep their previous state in that case rather than treat it as zero.
func Parse(text string) (seconds int, ok bool) {
	s := strings.ToLower(strings.TrimSpace(spaceReplacer.Replace(text)))
	if s == "" {
		return 0, false
	}

	if m := clockRe.FindStringSubmatch(s); m != nil {
		if m[3] != "" {
			return sum(part{m[1], 3600}, part{m[2], 60}, part{m[3], 1})
		}
		return sum(part{m[1], 60}, part{m[2], 1})
	}

	if matches := unitRe.FindAllStringSubmatch(s, -1); len(matches) > 0 {
		parts := make([]part, 0, len(matches))
		for _, u := range matches {
			parts = append(parts, part{u[1], unitScale(u[2])})
		}
		return sum(parts...)
	}

	for _, c := range compactRe.FindAllStringSubmatch(s, -1) {
		if strings.TrimSpace(c[0]) == "" {
			continue
		}
		total, ok := sum(part{c[1], 3600}, part{c[2], 60}, part{c[3], 1})
		if !ok {
			return 0, false
		}
		if total == 0 {
			continue
		}
		return total, true
	}

	return 0, false
}

// ParseMany parses each text and keeps only the values that were found
func ParseMany(texts []string) []int {
	out := make([]int, 0, len(texts))
	for _, t := range texts {
		if sec, ok := Parse(t); ok {
			out = append(out, sec)
		}
	}
	return out
}

func unitScale(unit string) int {
	switch unit {
	case "h", "hr", "hrs", "hour", "hours", "heure", "heures":
		return 3600
	case "m", "min", "mn", "minute", "minutes":
		return 60
	}
	return 1
}

// part is a number of units, scale seconds each; an empty digits string is zero
type part struct {
	digits string
	scale  int
}

// sum adds up parts, failing on a number that does not parse or a total
// that overflows
func sum(parts ...part) (int, bool) {
	total := 0
	for _, p := range parts {
		if p.digits == "" {
			continue
		}
		n, err := strconv.Atoi(p.digits)
		if err != nil || n < 0 || n > (math.MaxInt-total)/p.scale {
			return 0, false
		}
		total += n * p.scale
	}
	return total, true
}
