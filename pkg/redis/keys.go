package redis

import "strings"

// Namespace prefixes every key this service writes.
const Namespace = "ledger"

// Key joins parts under Namespace with ':' and drops blank parts.
func Key(parts ...string) string {
	var b strings.Builder
	b.WriteString(Namespace)
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		b.WriteByte(':')
		b.WriteString(part)
	}
	return b.String()
}
