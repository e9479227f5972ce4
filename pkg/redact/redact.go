// redact маскирует чувствительные значения перед записью в лог.
package redact

import "strings"

// Email оставляет первые два символа локальной части и домен.
func Email(s string) string {
	parts := strings.Split(s, "@")
	if len(parts) != 2 {
		return "***"
	}

	local, domain := []rune(parts[0]), parts[1]
	if len(local) > 2 {
		return string(local[:2]) + "***@" + domain
	}

	return "***@" + domain
}

// Token оставляет короткий префикс токена, чтобы различать сессии в логах.
// Короткие значения маскируются целиком.
func Token(s string) string {
	const keep = 6

	if len(s) <= keep*2 {
		return "[REDACTED_TOKEN]"
	}

	return s[:keep] + "…[REDACTED_TOKEN]"
}
