package handlers

import (
	"regexp"
	"strconv"
	"strings"
)

// MethodMatcher matches any request with the given method, ignoring path.
func MethodMatcher(method string) MatchFunc {
	method = strings.ToUpper(method)
	return func(reqMethod, _ string, _ map[string]string) (map[string]string, bool) {
		return nil, strings.EqualFold(reqMethod, method)
	}
}

// PathMatcher matches an exact method and a case-insensitive path.
func PathMatcher(method, path string) MatchFunc {
	method = strings.ToUpper(method)
	return func(reqMethod, reqPath string, _ map[string]string) (map[string]string, bool) {
		if !strings.EqualFold(reqMethod, method) {
			return nil, false
		}
		return nil, strings.EqualFold(reqPath, path)
	}
}

// RegexMatcher compiles pattern case-insensitively. Per spec.md §9(c),
// patterns are treated as full-path matches unless the pattern itself
// begins with "^" (in which case the author's anchoring is respected
// as-is and only a prefix match against the pattern is performed).
// On a match, named and positional capture groups are returned.
func RegexMatcher(method, pattern string) (MatchFunc, error) {
	anchored := pattern
	if !strings.HasPrefix(pattern, "^") {
		anchored = "^" + pattern + "$"
	}
	re, err := regexp.Compile("(?i)" + anchored)
	if err != nil {
		return nil, err
	}
	method = strings.ToUpper(method)
	names := re.SubexpNames()
	return func(reqMethod, reqPath string, _ map[string]string) (map[string]string, bool) {
		if !strings.EqualFold(reqMethod, method) {
			return nil, false
		}
		m := re.FindStringSubmatch(reqPath)
		if m == nil {
			return nil, false
		}
		captures := map[string]string{}
		for i, v := range m {
			if i == 0 {
				continue
			}
			key := names[i]
			if key == "" {
				key = strconv.Itoa(i)
			}
			captures[key] = v
		}
		return captures, true
	}, nil
}
