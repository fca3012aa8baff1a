package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/verdantia/earthscout/internal/properties"
	"golang.org/x/oauth2/clientcredentials"
)

const dateLayout = "2006-01-02"

// Client implements Platform over the service's JSON API. It performs no
// retries: a failed round-trip surfaces as an error and callers decide
// whether the failure is isolated or fatal.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 120 * time.Second}
	}
	return &Client{baseURL: baseURL, httpClient: httpClient}
}

// NewClientFromEnv builds a client authenticated with OAuth2 client
// credentials taken from the environment.
func NewClientFromEnv() (*Client, error) {
	clientID := properties.EngineClientId()
	clientSecret := properties.EngineClientSecret()
	tokenURL := properties.EngineTokenUrl()

	if clientID == "" || clientSecret == "" || tokenURL == "" {
		return nil, fmt.Errorf("missing required environment variables: ENGINE_CLIENT_ID, ENGINE_CLIENT_SECRET, or ENGINE_TOKEN_URL")
	}

	config := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     tokenURL,
	}

	return NewClient(properties.EngineBaseUrl(), config.Client(context.Background())), nil
}

type listImagesRequest struct {
	Collection string            `json:"collection"`
	Region     *geojson.Geometry `json:"region"`
	Start      string            `json:"start,omitempty"`
	End        string            `json:"end,omitempty"`
	Limit      int               `json:"limit,omitempty"`
}

type listImagesResponse struct {
	Assets []string `json:"assets"`
}

func (c *Client) ListImages(ctx context.Context, query ImageQuery) ([]string, error) {
	payload := listImagesRequest{
		Collection: query.Collection,
		Region:     geojson.NewGeometry(query.Region),
		Limit:      query.Limit,
	}
	if query.Start != nil {
		payload.Start = query.Start.Format(dateLayout)
	}
	if query.End != nil {
		payload.End = query.End.Format(dateLayout)
	}

	var response listImagesResponse
	if err := c.post(ctx, "/images:list", payload, &response); err != nil {
		return nil, err
	}
	return response.Assets, nil
}

type imageInfoResponse struct {
	AssetID    string            `json:"asset"`
	Properties map[string]any    `json:"properties"`
	Footprint  *geojson.Geometry `json:"footprint"`
}

func (c *Client) ImageInfo(ctx context.Context, assetID string) (*ImageInfo, error) {
	payload := map[string]string{"asset": assetID}

	var response imageInfoResponse
	if err := c.post(ctx, "/images:info", payload, &response); err != nil {
		return nil, err
	}

	info := &ImageInfo{AssetID: response.AssetID, Properties: response.Properties}
	if info.AssetID == "" {
		info.AssetID = assetID
	}
	if response.Footprint != nil {
		info.Footprint = response.Footprint.Geometry()
	}
	return info, nil
}

func (c *Client) BandNames(ctx context.Context, img *Image) ([]string, error) {
	payload := map[string]any{"image": img}

	var response struct {
		Bands []string `json:"bands"`
	}
	if err := c.post(ctx, "/images:bands", payload, &response); err != nil {
		return nil, err
	}
	return response.Bands, nil
}

type reduceRegionRequest struct {
	Image     *Image            `json:"image"`
	Reducer   string            `json:"reducer"`
	Region    *geojson.Geometry `json:"region"`
	Scale     int               `json:"scale"`
	MaxPixels float64           `json:"maxPixels,omitempty"`
}

// ReduceRegion evaluates the expression and reduces it over the region.
// An empty value map means the reduction found no valid pixels; that is
// not an error.
func (c *Client) ReduceRegion(ctx context.Context, img *Image, params ReduceParams) (map[string]float64, error) {
	payload := reduceRegionRequest{
		Image:     img,
		Reducer:   params.Reducer,
		Region:    geojson.NewGeometry(params.Geometry),
		Scale:     params.Scale,
		MaxPixels: params.MaxPixels,
	}

	var response struct {
		Values map[string]float64 `json:"values"`
	}
	if err := c.post(ctx, "/images:reduceRegion", payload, &response); err != nil {
		return nil, err
	}
	return response.Values, nil
}

func (c *Client) Area(ctx context.Context, geometry orb.Geometry) (float64, error) {
	payload := map[string]any{"geometry": geojson.NewGeometry(geometry)}

	var response struct {
		Area float64 `json:"area"`
	}
	if err := c.post(ctx, "/geometry:area", payload, &response); err != nil {
		return 0, err
	}
	return response.Area, nil
}

func (c *Client) IntersectionArea(ctx context.Context, first, second orb.Geometry) (float64, error) {
	payload := map[string]any{
		"first":  geojson.NewGeometry(first),
		"second": geojson.NewGeometry(second),
	}

	var response struct {
		Area float64 `json:"area"`
	}
	if err := c.post(ctx, "/geometry:intersectionArea", payload, &response); err != nil {
		return 0, err
	}
	return response.Area, nil
}

type aggregateRequest struct {
	Collection string            `json:"collection"`
	Band       string            `json:"band"`
	Reducer    string            `json:"reducer"`
	Region     *geojson.Geometry `json:"region"`
	Start      string            `json:"start"`
	End        string            `json:"end"`
	Scale      int               `json:"scale"`
}

func (c *Client) AggregateCollection(ctx context.Context, query AggregateQuery) (float64, error) {
	payload := aggregateRequest{
		Collection: query.Collection,
		Band:       query.Band,
		Reducer:    query.Reducer,
		Region:     geojson.NewGeometry(query.Region),
		Start:      query.Start.Format(dateLayout),
		End:        query.End.Format(dateLayout),
		Scale:      query.Scale,
	}

	var response struct {
		Value float64 `json:"value"`
	}
	if err := c.post(ctx, "/collections:aggregate", payload, &response); err != nil {
		return 0, err
	}
	return response.Value, nil
}

type downloadRequest struct {
	Image  *Image            `json:"image"`
	Region *geojson.Geometry `json:"region"`
	Scale  int               `json:"scale"`
	Format string            `json:"format"`
}

// DownloadImage returns the evaluated expression clipped to the region as
// raw raster bytes (GEO_TIFF unless the caller asks otherwise).
func (c *Client) DownloadImage(ctx context.Context, img *Image, params DownloadParams) ([]byte, error) {
	format := params.Format
	if format == "" {
		format = "GEO_TIFF"
	}
	payload := downloadRequest{
		Image:  img,
		Region: geojson.NewGeometry(params.Region),
		Scale:  params.Scale,
		Format: format,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal download request: %v", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/images:download", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %v", err)
	}
	request.Header.Set("Content-Type", "application/json")

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("download request failed: %v", err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(response.Body)
		return nil, fmt.Errorf("engine returned status %d: %s", response.StatusCode, string(detail))
	}

	return io.ReadAll(response.Body)
}

func (c *Client) post(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request payload: %v", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %v", err)
	}
	request.Header.Set("Content-Type", "application/json")

	response, err := c.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("engine request failed: %v", err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(response.Body)
		return fmt.Errorf("engine returned status %d: %s", response.StatusCode, string(detail))
	}

	if err := json.NewDecoder(response.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode engine response: %v", err)
	}
	return nil
}
