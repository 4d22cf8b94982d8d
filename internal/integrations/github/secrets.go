package github

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"golang.org/x/crypto/nacl/box"
)

// deploySecretMarkers flag a secret as part of a deploy credential set by
// its name.
var deploySecretMarkers = []string{"DEPLOY", "SSH", "KEY", "CREDENTIALS"}

// IsDeploySecretName reports whether a secret name looks deploy-related.
func IsDeploySecretName(name string) bool {
	upper := strings.ToUpper(name)
	return lo.SomeBy(deploySecretMarkers, func(marker string) bool {
		return strings.Contains(upper, marker)
	})
}

func (c *client) ListSecrets(ctx context.Context, owner, repo string) ([]Secret, error) {
	var resp secretList
	requestUrl := fmt.Sprintf("/repos/%s/%s/actions/secrets", url.PathEscape(owner), url.PathEscape(repo))
	if err := c.httpClient.Do(ctx, "GET", requestUrl, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Secrets, nil
}

// HasDeploySecrets reports whether the repository carries at least one
// deploy-related secret.
func (c *client) HasDeploySecrets(ctx context.Context, owner, repo string) (bool, error) {
	secrets, err := c.ListSecrets(ctx, owner, repo)
	if err != nil {
		return false, err
	}
	return lo.SomeBy(secrets, func(s Secret) bool {
		return IsDeploySecretName(s.Name)
	}), nil
}

// PutSecret creates or updates one repository secret: fetch the repo's
// public key, seal the value, PUT the ciphertext.
func (c *client) PutSecret(ctx context.Context, owner, repo, name, value string) error {
	var key publicKey
	keyUrl := fmt.Sprintf("/repos/%s/%s/actions/secrets/public-key", url.PathEscape(owner), url.PathEscape(repo))
	if err := c.httpClient.Do(ctx, "GET", keyUrl, nil, &key); err != nil {
		return err
	}

	sealed, err := sealSecret(value, key.Key)
	if err != nil {
		return err
	}

	body := putSecretRequest{EncryptedValue: sealed, KeyID: key.KeyID}
	requestUrl := fmt.Sprintf("/repos/%s/%s/actions/secrets/%s",
		url.PathEscape(owner), url.PathEscape(repo), url.PathEscape(name))
	return c.httpClient.Do(ctx, "PUT", requestUrl, body, nil)
}

func (c *client) DeleteSecret(ctx context.Context, owner, repo, name string) error {
	requestUrl := fmt.Sprintf("/repos/%s/%s/actions/secrets/%s",
		url.PathEscape(owner), url.PathEscape(repo), url.PathEscape(name))
	return c.httpClient.Do(ctx, "DELETE", requestUrl, nil, nil)
}

// sealSecret encrypts the value for the repository with an anonymous
// sealed box, as the secrets API requires.
func sealSecret(value, repoPublicKey string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(repoPublicKey)
	if err != nil {
		return "", errors.Wrap(err, "decode repository public key")
	}
	if len(raw) != 32 {
		return "", errors.Errorf("repository public key must be 32 bytes, got %d", len(raw))
	}

	var recipient [32]byte
	copy(recipient[:], raw)

	sealed, err := box.SealAnonymous(nil, []byte(value), &recipient, rand.Reader)
	if err != nil {
		return "", errors.Wrap(err, "seal secret value")
	}
	return base64.StdEncoding.EncodeToString(sealed), nil
}
