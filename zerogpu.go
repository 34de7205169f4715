package gradio

import (
	"context"
	"net/http"
)

// AuthHeaderProvider supplies the extra headers a zerogpu-backed Space
// expects on its queue join request (spec.md §4.6's "zerogpu
// cross-origin auth handshake"). A caller embedding this client in a
// browser-hosted context (e.g. an iframe) implements it; anything else
// leaves it nil and zerogpu dependencies are simply submitted without
// the extra header, same as any other dependency.
type AuthHeaderProvider interface {
	// AuthHeaders returns the headers to attach to a request against
	// root for a zerogpu dependency. Returning a nil map adds nothing.
	AuthHeaders(ctx context.Context, root string) (map[string]string, error)
}

// staticAuthHeaderProvider is the simplest AuthHeaderProvider: a fixed
// token supplied once at construction, sent as X-IP-Token on every
// zerogpu request. Grounded on bc-dunia-mcpdrill/internal/auth.go's
// Authorization-bearer extraction, mirrored here as the header a zerogpu
// Space's reverse proxy reads to identify the calling browser.
type staticAuthHeaderProvider struct {
	token string
}

// NewStaticAuthHeaderProvider returns an AuthHeaderProvider that always
// sends the same token.
func NewStaticAuthHeaderProvider(token string) AuthHeaderProvider {
	return staticAuthHeaderProvider{token: token}
}

func (p staticAuthHeaderProvider) AuthHeaders(ctx context.Context, root string) (map[string]string, error) {
	if p.token == "" {
		return nil, nil
	}
	return map[string]string{"X-IP-Token": p.token}, nil
}

// applyAuthHeaders attaches an AuthHeaderProvider's headers to req, a
// no-op when provider is nil or the dependency isn't zerogpu-gated.
func applyAuthHeaders(ctx context.Context, req *http.Request, provider AuthHeaderProvider, root string, dep Dependency) error {
	if provider == nil || !dep.ZeroGPU {
		return nil
	}
	headers, err := provider.AuthHeaders(ctx, root)
	if err != nil {
		return err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return nil
}
