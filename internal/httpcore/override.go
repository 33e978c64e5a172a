package httpcore

// DefaultOverride implements spec.md §4.8's conditional-GET revalidation.
// It only runs for 2xx responses carrying ETag or Last-Modified. If
// If-None-Match matches ETag, or If-Modified-Since >= Last-Modified, it
// returns a bodiless response preserving ETag/Last-Modified/Cache-Control:
// 304 for GET/HEAD, 412 otherwise.
func DefaultOverride(req *Request, resp *Response) *Response {
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp
	}
	if resp.ETag == "" && resp.LastModified.IsZero() {
		return resp
	}

	matched := false
	if inm, ok := req.Header["If-None-Match"]; ok && resp.ETag != "" {
		if inm == "*" || inm == resp.ETag {
			matched = true
		}
	}
	if !matched {
		if ims, ok := req.Header["If-Modified-Since"]; ok && !resp.LastModified.IsZero() {
			if t, err := ParseRFC822(ims); err == nil {
				if !resp.LastModified.After(t) {
					matched = true
				}
			}
		}
	}
	if !matched {
		return resp
	}

	revalidated := NewResponse()
	revalidated.ETag = resp.ETag
	revalidated.LastModified = resp.LastModified
	revalidated.MaxAge = resp.MaxAge
	if req.Method == "GET" || req.Method == "HEAD" {
		revalidated.StatusCode = 304
	} else {
		revalidated.StatusCode = 412
	}
	return revalidated
}
