package authn

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dwn-project/dwn-core/errs"
)

const defaultDIDWebMaxBodySize = 1 << 20 // 1MB

// DIDWebResolver resolves did:web identifiers by fetching the DID
// document over HTTPS, per the did:web method spec: a size-limited,
// timeout-bounded GET against the identifier's well-known did.json.
type DIDWebResolver struct {
	client      *http.Client
	timeout     time.Duration
	maxBodySize int64
}

// DIDWebResolverOption configures a DIDWebResolver.
type DIDWebResolverOption func(*DIDWebResolver)

// WithDIDWebHTTPClient sets a custom HTTP client.
func WithDIDWebHTTPClient(client *http.Client) DIDWebResolverOption {
	return func(r *DIDWebResolver) { r.client = client }
}

// WithDIDWebTimeout sets the HTTP request timeout.
func WithDIDWebTimeout(timeout time.Duration) DIDWebResolverOption {
	return func(r *DIDWebResolver) { r.timeout = timeout }
}

// NewDIDWebResolver constructs a DIDWebResolver with sensible defaults.
func NewDIDWebResolver(opts ...DIDWebResolverOption) *DIDWebResolver {
	r := &DIDWebResolver{
		timeout:     10 * time.Second,
		maxBodySize: defaultDIDWebMaxBodySize,
	}

	for _, opt := range opts {
		opt(r)
	}

	if r.client == nil {
		r.client = &http.Client{Timeout: r.timeout}
	}

	return r
}

// Resolve fetches and parses the DID document for a did:web identifier.
// did:web:example.com resolves to https://example.com/.well-known/did.json;
// did:web:example.com:user:alice resolves to https://example.com/user/alice/did.json,
// per the did:web method spec's path-segment mapping.
func (r *DIDWebResolver) Resolve(did string) (*DIDDocument, error) {
	return r.ResolveContext(context.Background(), did)
}

// ResolveContext is Resolve with explicit cancellation: DID resolution
// is a suspension point the caller's context can cancel.
func (r *DIDWebResolver) ResolveContext(ctx context.Context, did string) (*DIDDocument, error) {
	target, err := didWebURL(did)
	if err != nil {
		return nil, errs.Wrap(errs.CodeAuthenticateSignerNotFound, "invalid did:web identifier", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, target, nil)
	if err != nil {
		return nil, errs.Wrap(errs.CodeAuthenticateSignerNotFound, "failed to build did:web request", err)
	}

	req.Header.Set("Accept", "application/did+json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, errs.Wrap(errs.CodeAuthenticateSignerNotFound, "did:web fetch failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errs.Newf(errs.CodeAuthenticateSignerNotFound, "did:web fetch returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, r.maxBodySize))
	if err != nil {
		return nil, errs.Wrap(errs.CodeAuthenticateSignerNotFound, "failed to read did:web response", err)
	}

	var doc DIDDocument

	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, errs.Wrap(errs.CodeAuthenticateSignerNotFound, "failed to parse did document", err)
	}

	return &doc, nil
}

func didWebURL(did string) (string, error) {
	const prefix = "did:web:"

	if !strings.HasPrefix(did, prefix) {
		return "", fmt.Errorf("not a did:web identifier: %s", did)
	}

	identifier := strings.TrimPrefix(did, prefix)

	segments := strings.Split(identifier, ":")
	for i, seg := range segments {
		decoded, err := url.PathUnescape(seg)
		if err != nil {
			return "", fmt.Errorf("invalid did:web path segment %q: %w", seg, err)
		}

		segments[i] = decoded
	}

	host := segments[0]
	path := segments[1:]

	if len(path) == 0 {
		return "https://" + host + "/.well-known/did.json", nil
	}

	return "https://" + host + "/" + strings.Join(path, "/") + "/did.json", nil
}
