/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package githubclient

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"

	kms "cloud.google.com/go/kms/apiv1"
	"cloud.google.com/go/kms/apiv1/kmspb"
	"github.com/bradleyfalzon/ghinstallation/v2"
	"github.com/golang-jwt/jwt/v4"
)

// NewSigner returns the signer for a GitHub App private key reference:
//
//	file://<path>   a PEM encoded RSA private key on disk
//	gcpkms://<key>  an asymmetric signing key version in Cloud KMS
func NewSigner(ctx context.Context, ref string) (ghinstallation.Signer, error) {
	scheme, rest, ok := strings.Cut(ref, "://")
	if !ok {
		return nil, fmt.Errorf("invalid key reference: %s", ref)
	}

	switch scheme {
	case "file":
		pem, err := os.ReadFile(rest)
		if err != nil {
			return nil, fmt.Errorf("reading private key: %w", err)
		}
		key, err := jwt.ParseRSAPrivateKeyFromPEM(pem)
		if err != nil {
			return nil, fmt.Errorf("parsing private key: %w", err)
		}
		return ghinstallation.NewRSASigner(jwt.SigningMethodRS256, key), nil

	case "gcpkms":
		client, err := kms.NewKeyManagementClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("creating kms client: %w", err)
		}
		return &kmsSigner{ctx: ctx, client: client, key: rest}, nil
	}
	return nil, fmt.Errorf("unknown key scheme: %s", scheme)
}

// kmsSigner signs app JWTs with a key that never leaves Cloud KMS.
type kmsSigner struct {
	ctx    context.Context
	client *kms.KeyManagementClient
	key    string
}

func (s *kmsSigner) Sign(claims jwt.Claims) (string, error) {
	return jwt.NewWithClaims(&kmsSigningMethod{s}, claims).SignedString(s.key)
}

type kmsSigningMethod struct {
	s *kmsSigner
}

func (m *kmsSigningMethod) Alg() string { return "RS256" }

func (m *kmsSigningMethod) Verify(string, string, interface{}) error {
	return errors.New("not implemented")
}

func (m *kmsSigningMethod) Sign(signingString string, key interface{}) (string, error) {
	name, ok := key.(string)
	if !ok {
		return "", fmt.Errorf("invalid key reference type: %T", key)
	}
	resp, err := m.s.client.AsymmetricSign(m.s.ctx, &kmspb.AsymmetricSignRequest{
		Name: name,
		Data: []byte(signingString),
	})
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(resp.Signature), nil
}
