package httpcore

// reasonPhrases covers the status codes this server actually emits,
// including the WebDAV (RFC 4918) extensions.
var reasonPhrases = map[int]string{
	200: "OK",
	201: "Created",
	204: "No Content",
	206: "Partial Content",
	207: "Multi-Status",
	301: "Moved Permanently",
	304: "Not Modified",
	400: "Bad Request",
	401: "Unauthorized",
	403: "Forbidden",
	404: "Not Found",
	405: "Method Not Allowed",
	409: "Conflict",
	412: "Precondition Failed",
	413: "Payload Too Large",
	415: "Unsupported Media Type",
	416: "Range Not Satisfiable",
	423: "Locked",
	424: "Failed Dependency",
	500: "Internal Server Error",
	501: "Not Implemented",
	507: "Insufficient Storage",
}

// ReasonPhrase returns the standard reason phrase for code, or "Unknown"
// for a code this server does not otherwise recognise.
func ReasonPhrase(code int) string {
	if p, ok := reasonPhrases[code]; ok {
		return p
	}
	return "Unknown"
}
