package archive

import (
	"strings"
	"unicode"
)

// RoutingKey builds "{domain}.{devid}". Characters of devid that would split
// or wildcard a NATS subject ('.', '*', '>' and whitespace) become '_'.
func RoutingKey(domain, devid string) string {
	return domain + "." + sanitizeToken(devid)
}

// ParseRoutingKey splits a key produced by RoutingKey.
func ParseRoutingKey(key string) (domain, devid string, ok bool) {
	domain, devid, ok = strings.Cut(key, ".")
	if !ok || domain == "" || devid == "" {
		return "", "", false
	}
	return domain, devid, true
}

func sanitizeToken(s string) string {
	if s == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		if r == '.' || r == '*' || r == '>' || unicode.IsSpace(r) {
			return '_'
		}
		return r
	}, s)
}
