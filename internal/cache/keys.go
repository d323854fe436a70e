package cache

import (
	"crypto/sha1"
	"encoding/hex"
	"net/url"
)

// Namespaces used by the services.
const (
	NSProducts  = "products"
	NSDashboard = "dashboard"
)

// QueryKey hashes query parameters into a stable key name; url.Values.Encode sorts keys.
func QueryKey(v url.Values) string {
	sum := sha1.Sum([]byte(v.Encode()))
	return hex.EncodeToString(sum[:8])
}
