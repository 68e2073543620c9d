package jobstore

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"loom/internal/timecode"
)

// ContentHash derives the cache key for one clip job. Two jobs share a
// hash exactly when they would produce the same output: same source
// file, same span, same stage chain, same stage parameters. Clip and run
// identifiers are deliberately excluded so renamed clips still hit the
// cache.
func ContentHash(source string, in, duration timecode.Rational, chain []string, params map[string]string) string {
	h := sha256.New()
	fmt.Fprintf(h, "source=%s\n", source)
	fmt.Fprintf(h, "in=%s\n", timecode.Format(in))
	fmt.Fprintf(h, "duration=%s\n", timecode.Format(duration))
	fmt.Fprintf(h, "chain=%s\n", strings.Join(chain, ","))

	keys := make([]string, 0, len(params))
	for key := range params {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Fprintf(h, "param:%s=%s\n", key, params[key])
	}
	return hex.EncodeToString(h.Sum(nil))
}
