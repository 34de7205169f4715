package gradio

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// JWTProvider derives the short-lived JWT a private or zerogpu Space
// expects as the WS URL's __sign parameter (spec.md §6, "JWT URL
// parameter"). The JWT itself is minted by the hosting service from the
// caller's token, not by this client, so deriving one is an external
// collaborator the same way Uploader and AuthHeaderProvider are: this
// core calls it, never implements the cryptography.
type JWTProvider interface {
	Sign(ctx context.Context, spaceID, token string) (string, error)
}

// hfSpaceJWTProvider fetches the __sign token from the hosting service's
// jwt endpoint, the same bearer-token request shape httpUploader already
// uses elsewhere in this core.
type hfSpaceJWTProvider struct {
	client  *http.Client
	baseURL string
}

// NewHFSpaceJWTProvider returns the default JWTProvider, issuing a GET
// against ${baseURL}/api/spaces/{spaceID}/jwt with the token as a bearer
// credential. baseURL defaults to https://huggingface.co when empty.
func NewHFSpaceJWTProvider(client *http.Client, baseURL string) JWTProvider {
	if client == nil {
		client = http.DefaultClient
	}
	if baseURL == "" {
		baseURL = "https://huggingface.co"
	}
	return &hfSpaceJWTProvider{client: client, baseURL: baseURL}
}

func (p *hfSpaceJWTProvider) Sign(ctx context.Context, spaceID, token string) (string, error) {
	if spaceID == "" || token == "" {
		return "", nil
	}

	url := fmt.Sprintf("%s/api/spaces/%s/jwt", p.baseURL, spaceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("gradio: jwt request failed (%d)", resp.StatusCode)
	}

	var out struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("gradio: malformed jwt response: %w", err)
	}
	return out.Token, nil
}

// signParam resolves the __sign query parameter for the WS transport.
// A nil provider, empty spaceID, or empty token all mean "no signing",
// matching spec.md's "when a space_id and token pair yields a JWT".
func signParam(ctx context.Context, provider JWTProvider, spaceID, token string) (string, error) {
	if provider == nil || spaceID == "" || token == "" {
		return "", nil
	}
	return provider.Sign(ctx, spaceID, token)
}
