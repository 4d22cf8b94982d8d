package cloudflare

import (
	"context"
	"fmt"
	"net/url"

	"siteman/internal/integrations"
	"siteman/internal/types"
)

const serviceName = "dns"

type Client interface {
	FindZone(ctx context.Context, name string) (*types.Zone, error)
	CreateZone(ctx context.Context, name string) (*types.Zone, error)
	FindRecord(ctx context.Context, zoneID, recordType, name string) (*types.DNSRecord, error)
	CreateRecord(ctx context.Context, zoneID string, rec types.DNSRecord) (*types.DNSRecord, error)
	UpdateRecord(ctx context.Context, zoneID, recordID string, rec types.DNSRecord) (*types.DNSRecord, error)
	DeleteRecord(ctx context.Context, zoneID, recordID string) error
}

type client struct {
	httpClient integrations.HttpClient
}

func NewClient(baseURL, token string) Client {
	headers := map[string]string{
		"Authorization": "Bearer " + token,
	}
	return &client{httpClient: integrations.NewHttpClient(serviceName, baseURL, headers)}
}

// FindZone looks a zone up by exact name. Returns (nil, nil) when the zone
// does not exist.
func (c *client) FindZone(ctx context.Context, name string) (*types.Zone, error) {
	var resp envelope[[]types.Zone]
	requestUrl := "/zones?name=" + url.QueryEscape(name)
	if err := c.httpClient.Do(ctx, "GET", requestUrl, nil, &resp); err != nil {
		return nil, err
	}
	if len(resp.Result) == 0 {
		return nil, nil
	}
	return &resp.Result[0], nil
}

func (c *client) CreateZone(ctx context.Context, name string) (*types.Zone, error) {
	var resp envelope[types.Zone]
	body := createZoneRequest{Name: name, JumpStart: true}
	if err := c.httpClient.Do(ctx, "POST", "/zones", body, &resp); err != nil {
		return nil, err
	}
	return &resp.Result, nil
}

// FindRecord looks a record up by type and fully-qualified name. Returns
// (nil, nil) when no such record exists.
func (c *client) FindRecord(ctx context.Context, zoneID, recordType, name string) (*types.DNSRecord, error) {
	var resp envelope[[]types.DNSRecord]
	requestUrl := fmt.Sprintf("/zones/%s/dns_records?type=%s&name=%s",
		url.PathEscape(zoneID), url.QueryEscape(recordType), url.QueryEscape(name))
	if err := c.httpClient.Do(ctx, "GET", requestUrl, nil, &resp); err != nil {
		return nil, err
	}
	if len(resp.Result) == 0 {
		return nil, nil
	}
	return &resp.Result[0], nil
}

func (c *client) CreateRecord(ctx context.Context, zoneID string, rec types.DNSRecord) (*types.DNSRecord, error) {
	var resp envelope[types.DNSRecord]
	requestUrl := fmt.Sprintf("/zones/%s/dns_records", url.PathEscape(zoneID))
	if err := c.httpClient.Do(ctx, "POST", requestUrl, newRecordRequest(rec), &resp); err != nil {
		return nil, err
	}
	return &resp.Result, nil
}

func (c *client) UpdateRecord(ctx context.Context, zoneID, recordID string, rec types.DNSRecord) (*types.DNSRecord, error) {
	var resp envelope[types.DNSRecord]
	requestUrl := fmt.Sprintf("/zones/%s/dns_records/%s", url.PathEscape(zoneID), url.PathEscape(recordID))
	if err := c.httpClient.Do(ctx, "PUT", requestUrl, newRecordRequest(rec), &resp); err != nil {
		return nil, err
	}
	return &resp.Result, nil
}

func (c *client) DeleteRecord(ctx context.Context, zoneID, recordID string) error {
	requestUrl := fmt.Sprintf("/zones/%s/dns_records/%s", url.PathEscape(zoneID), url.PathEscape(recordID))
	return c.httpClient.Do(ctx, "DELETE", requestUrl, nil, nil)
}
