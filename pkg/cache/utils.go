package cache

import (
	"fmt"
	"strings"
	"time"
)

// GenerateKey joins a prefix and an ID into a cache key.
func GenerateKey(prefix string, id string) string {
	return prefix + ":" + id
}

// GenerateKeyWithParams appends each parameter as a colon-separated segment.
func GenerateKeyWithParams(prefix string, params ...interface{}) string {
	var b strings.Builder
	b.WriteString(prefix)
	for _, p := range params {
		fmt.Fprintf(&b, ":%v", p)
	}
	return b.String()
}

// TimeBucket maps t onto a bucket index of width ttl. All instants inside
// the same bucket produce the same index, so keys derived from it expire
// together at the bucket boundary rather than ttl after first write.
func TimeBucket(t time.Time, ttl time.Duration) int64 {
	if ttl <= 0 {
		return t.Unix()
	}
	return t.UnixNano() / ttl.Nanoseconds()
}

// QuoteKey builds the bucketed cache key for a realtime quote.
func QuoteKey(symbol string, bucket int64) string {
	return GenerateKeyWithParams("quote", symbol, bucket)
}

// SeriesKey builds the bucketed cache key for a historical series.
func SeriesKey(symbol, period string, bucket int64) string {
	return GenerateKeyWithParams("series", symbol, period, bucket)
}

// LastKnownKey builds the unbucketed key holding the most recent good
// quote for a symbol. It outlives quote buckets and feeds stale fallback.
func LastKnownKey(symbol string) string {
	return GenerateKey("last", symbol)
}

// BuildPattern turns a prefix into a Redis glob.
func BuildPattern(prefix string) string {
	return prefix + "*"
}
