package notify

import "strings"

// ParseEndpoints reads "url|secret|topic,topic" entries separated by ";".
// Secret and topics are optional.
func ParseEndpoints(raw string) ([]Endpoint, error) {
	var out []Endpoint
	for _, entry := range splitNonEmpty(raw, ";") {
		parts := strings.SplitN(entry, "|", 3)
		for len(parts) < 3 {
			parts = append(parts, "")
		}
		ep := Endpoint{
			URL:    strings.TrimSpace(parts[0]),
			Secret: strings.TrimSpace(parts[1]),
			Topics: splitNonEmpty(parts[2], ","),
		}
		if err := ValidateURL(ep.URL); err != nil {
			return nil, err
		}
		out = append(out, ep)
	}
	return out, nil
}

func splitNonEmpty(s, sep string) []string {
	var out []string
	for _, part := range strings.Split(s, sep) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
