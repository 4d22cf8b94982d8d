package dns

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"siteman/internal/integrations/cloudflare"
	"siteman/internal/types"
	"siteman/logger"
)

// Reconciler converges DNS names to a desired IP + proxy-flag state against
// the provider API. The zone cache is scoped to the reconciler instance, so
// a zone is created at most once per run even when the remote API races.
type Reconciler struct {
	api   cloudflare.Client
	zones map[string]*types.Zone
}

func NewReconciler(api cloudflare.Client) *Reconciler {
	return &Reconciler{
		api:   api,
		zones: make(map[string]*types.Zone),
	}
}

// RootDomain reduces a name to its last two dot-separated labels:
// "www.sub.example.co" -> "example.co". Multi-label public suffixes
// (e.g. .co.uk) are not handled; the zone lookup will simply miss for those.
func RootDomain(name string) string {
	labels := strings.Split(strings.Trim(name, "."), ".")
	if len(labels) <= 2 {
		return strings.Trim(name, ".")
	}
	return strings.Join(labels[len(labels)-2:], ".")
}

// EnsureARecord converges one A record. Repeated calls with an identical
// target state perform no write and report success.
func (r *Reconciler) EnsureARecord(ctx context.Context, name, ip string, proxied bool) error {
	zone, err := r.getOrCreateZone(ctx, RootDomain(name))
	if err != nil {
		return err
	}

	existing, err := r.api.FindRecord(ctx, zone.ID, "A", name)
	if err != nil {
		return errors.Wrap(err, "look up existing record")
	}

	if existing != nil {
		if existing.Matches(ip, proxied) {
			logger.Debug("record already converged", zap.String("name", name))
			return nil
		}

		_, err = r.api.UpdateRecord(ctx, zone.ID, existing.ID, types.DNSRecord{
			Type:    "A",
			Name:    name,
			Content: ip,
			Proxied: proxied,
		})
		return errors.Wrap(err, "update record")
	}

	_, err = r.api.CreateRecord(ctx, zone.ID, types.DNSRecord{
		Type:    "A",
		Name:    name,
		Content: ip,
		Proxied: proxied,
	})
	if err != nil {
		var apiErr *types.APIError
		// A create that lost a race to an identical record is a success.
		if errors.As(err, &apiErr) && apiErr.Conflict() {
			logger.Warn("record already exists, treating as success", zap.String("name", name))
			return nil
		}
		return errors.Wrap(err, "create record")
	}

	logger.Info("a record created", zap.String("name", name), zap.String("content", ip), zap.Bool("proxied", proxied))
	return nil
}

// DeleteARecord removes the A record for the name if one exists.
func (r *Reconciler) DeleteARecord(ctx context.Context, name string) error {
	zone, err := r.api.FindZone(ctx, RootDomain(name))
	if err != nil {
		return err
	}
	if zone == nil {
		return nil
	}

	existing, err := r.api.FindRecord(ctx, zone.ID, "A", name)
	if err != nil || existing == nil {
		return err
	}
	return r.api.DeleteRecord(ctx, zone.ID, existing.ID)
}

func (r *Reconciler) getOrCreateZone(ctx context.Context, root string) (*types.Zone, error) {
	if zone, ok := r.zones[root]; ok {
		return zone, nil
	}

	zone, err := r.api.FindZone(ctx, root)
	if err != nil {
		return nil, errors.Wrap(err, "look up zone")
	}

	if zone == nil {
		zone, err = r.api.CreateZone(ctx, root)
		if err != nil {
			return nil, errors.Wrap(err, "create zone")
		}
		logger.Info("zone created", zap.String("name", root), zap.String("id", zone.ID))
	}

	r.zones[root] = zone
	return zone, nil
}
