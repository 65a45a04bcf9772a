package clock

import (
	"fmt"
	"strings"
	"time"
)

// SkewPolicy decides how a server supplied anchor is interpreted on a client whose clock
// may disagree with the server's.
type SkewPolicy string

const (
	// SkewTrust uses the anchor exactly as sent. Suitable when client and server clocks
	// are known to agree, e.g. a LAN deployment.
	SkewTrust SkewPolicy = "trust"
	// SkewClamp keeps the anchor unless it lies in the local future or further in the
	// past than one question duration, in which case it is clamped into that window.
	SkewClamp SkewPolicy = "clamp"
	// SkewLocal ignores the anchor and starts the countdown at local arrival time.
	SkewLocal SkewPolicy = "local"
)

// ParseSkewPolicy maps a config value onto a policy. Empty means SkewTrust.
func ParseSkewPolicy(s string) (SkewPolicy, error) {
	switch p := SkewPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return SkewTrust, nil
	case SkewTrust, SkewClamp, SkewLocal:
		return p, nil
	default:
		return "", fmt.Errorf("unknown skew policy %q", s)
	}
}

// Skew combines a policy with a fixed offset added to every server timestamp.
type Skew struct {
	Policy SkewPolicy
	Offset time.Duration
}

// Adjust converts a server anchor into the local anchor the countdown runs from.
func (s Skew) Adjust(anchor, now time.Time, duration time.Duration) time.Time {
	if anchor.IsZero() || s.Policy == SkewLocal {
		return now
	}
	anchor = anchor.Add(s.Offset)
	if s.Policy != SkewClamp {
		return anchor
	}
	if anchor.After(now) {
		return now
	}
	if earliest := now.Add(-duration); anchor.Before(earliest) {
		return earliest
	}
	return anchor
}
