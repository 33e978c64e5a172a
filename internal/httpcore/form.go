package httpcore

import (
	"net/url"
	"strings"
)

// parseURLEncodedForm parses application/x-www-form-urlencoded bytes per
// spec.md §4.3: '+' decodes to space, then percent-decoding with UTF-8;
// last key wins; an undecodable pair is skipped and logged rather than
// failing the whole request.
func parseURLEncodedForm(body []byte) map[string]string {
	out := map[string]string{}
	for _, pair := range strings.Split(string(body), "&") {
		if pair == "" {
			continue
		}
		kv := strings.SplitN(pair, "=", 2)
		key, err := url.QueryUnescape(strings.ReplaceAll(kv[0], "+", " "))
		if err != nil {
			DefaultLogger().Warn("skipping undecodable form key", map[string]any{"key": kv[0], "error": err.Error()})
			continue
		}
		var val string
		if len(kv) == 2 {
			val, err = url.QueryUnescape(strings.ReplaceAll(kv[1], "+", " "))
			if err != nil {
				DefaultLogger().Warn("skipping undecodable form value", map[string]any{"key": key, "error": err.Error()})
				continue
			}
		}
		out[key] = val
	}
	return out
}
