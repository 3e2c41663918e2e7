package reconciler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/vogiaan1904/listenroom/internal/models"
)

// HTTPCatalog fetches songs from the room server's song endpoint.
type HTTPCatalog struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewHTTPCatalog(baseURL, token string, client *http.Client) *HTTPCatalog {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPCatalog{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  client,
	}
}

type songResp struct {
	Message string       `json:"message"`
	Data    *models.Song `json:"data"`
}

func (c *HTTPCatalog) GetSong(ctx context.Context, id string) (*models.Song, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/songs/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var body songResp
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode song %s: %w", id, err)
	}
	if resp.StatusCode != http.StatusOK || body.Data == nil {
		return nil, fmt.Errorf("get song %s: %s (status %d)", id, body.Message, resp.StatusCode)
	}

	return body.Data, nil
}
