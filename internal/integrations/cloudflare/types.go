package cloudflare

import "siteman/internal/types"

// envelope is the provider's standard response wrapper.
type envelope[T any] struct {
	Success bool         `json:"success"`
	Errors  []apiMessage `json:"errors"`
	Result  T            `json:"result"`
}

type apiMessage struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type createZoneRequest struct {
	Name string `json:"name"`

	// JumpStart asks the provider to auto-scan existing records into the
	// new zone.
	JumpStart bool `json:"jump_start"`
}

type recordRequest struct {
	Type    string `json:"type"`
	Name    string `json:"name"`
	Content string `json:"content"`
	TTL     int    `json:"ttl"`
	Proxied bool   `json:"proxied"`
}

func newRecordRequest(rec types.DNSRecord) recordRequest {
	ttl := rec.TTL
	// ttl=1 is the API's sentinel for "automatic" and is required when the
	// record is proxied.
	if rec.Proxied || ttl == 0 {
		ttl = types.AutomaticTTL
	}
	return recordRequest{
		Type:    rec.Type,
		Name:    rec.Name,
		Content: rec.Content,
		TTL:     ttl,
		Proxied: rec.Proxied,
	}
}
