package item

import "strings"

// FormatLogo turns the institution logo returned by the aggregator into
// something an <img> tag can use. Plaid returns bare base64 PNG data.
// When no logo is returned the fallback directory is consulted.
func FormatLogo(logo, institutionID string, fallback map[string]string) string {
	if logo != "" {
		if strings.HasPrefix(logo, "data:") || strings.HasPrefix(logo, "http") {
			return logo
		}
		return "data:image/png;base64," + logo
	}
	if fallback != nil {
		return fallback[institutionID]
	}
	return ""
}
