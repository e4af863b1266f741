package http

import xutil "MarketPulse/pkg/util"

// ParseIntDefault parses s as an int, falling back to def when s is empty
// or malformed.
func ParseIntDefault(s string, def int) int { return xutil.ParseIntDefault(s, def) }
