package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Client talks to the provider sidecar that holds the platform sessions
// and speaks the upstream wire protocol. This service only consumes its
// small JSON surface.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	dir        string
}

// NewClient creates a provider client. dir is the scratch directory
// materialized files land in before upload.
func NewClient(baseURL, token, dir string, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		token:      token,
		dir:        dir,
	}
}

var _ Service = (*Client)(nil)

// Describe asks the sidecar what exists at (channel, item)
func (c *Client) Describe(ctx context.Context, channelID string, itemID int64) (*Descriptor, error) {
	url := fmt.Sprintf("%s/channels/%s/items/%d", c.baseURL, channelID, itemID)
	resp, err := c.get(ctx, url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := c.checkStatus(resp); err != nil {
		return nil, err
	}

	var desc Descriptor
	if err := json.NewDecoder(resp.Body).Decode(&desc); err != nil {
		return nil, fmt.Errorf("failed to decode descriptor for %s/%d: %w", channelID, itemID, err)
	}
	return &desc, nil
}

// Materialize retrieves the post's content into the scratch directory.
// Text-only posts are written locally without a provider round trip.
func (c *Client) Materialize(ctx context.Context, desc *Descriptor) (*Artifact, error) {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create download directory: %w", err)
	}

	if !desc.HasMedia {
		path := filepath.Join(c.dir, uuid.NewString()+".txt")
		if err := os.WriteFile(path, []byte(desc.TextContent), 0o644); err != nil {
			return nil, fmt.Errorf("failed to write text artifact: %w", err)
		}
		return &Artifact{Path: path, SizeBytes: int64(len(desc.TextContent)), MediaKind: MediaNone}, nil
	}

	url := fmt.Sprintf("%s/channels/%s/items/%d/content", c.baseURL, desc.ChannelID, desc.ItemID)
	resp, err := c.get(ctx, url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := c.checkStatus(resp); err != nil {
		return nil, err
	}

	path := filepath.Join(c.dir, uuid.NewString()+extFor(desc.MediaKind))
	out, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create artifact file: %w", err)
	}
	written, err := io.Copy(out, resp.Body)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("failed to download %s/%d: %w", desc.ChannelID, desc.ItemID, err)
	}

	return &Artifact{Path: path, SizeBytes: written, MediaKind: desc.MediaKind}, nil
}

func (c *Client) get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrTransient, err)
	}
	return resp, nil
}

// checkStatus maps the sidecar's status codes onto the error taxonomy
func (c *Client) checkStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrAuthExpired
	case resp.StatusCode == http.StatusForbidden:
		return ErrNotAMember
	case resp.StatusCode == http.StatusNotFound:
		return ErrContentAbsent
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: provider returned status %d", ErrTransient, resp.StatusCode)
	default:
		return fmt.Errorf("provider returned status %d", resp.StatusCode)
	}
}

func extFor(kind MediaKind) string {
	switch kind {
	case MediaPhoto:
		return ".jpg"
	case MediaVideo:
		return ".mp4"
	case MediaAudio:
		return ".mp3"
	default:
		return ".bin"
	}
}
