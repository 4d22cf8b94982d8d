package types

// Zone is the DNS provider's container object for a root domain's records.
type Zone struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// AutomaticTTL is the provider's sentinel for "automatic"; it is required
// whenever a record is proxied through the provider's edge.
const AutomaticTTL = 1

type DNSRecord struct {
	ID      string `json:"id,omitempty"`
	Type    string `json:"type"`
	Name    string `json:"name"`
	Content string `json:"content"`
	TTL     int    `json:"ttl"`
	Proxied bool   `json:"proxied"`
}

// Matches reports whether the record already reflects the desired target
// state, in which case a converge pass must not write.
func (r DNSRecord) Matches(content string, proxied bool) bool {
	return r.Content == content && r.Proxied == proxied
}
