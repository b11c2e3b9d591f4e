package recordapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	itemsPath        = "/api/collections/item_public/records"
	reservationsPath = "/api/collections/reservation/records"
	filesPath        = "/api/files/item_public"
	cachePrefix      = "recordapi:"
)

// Client calls the external record API.
type Client struct {
	baseURL    string
	httpClient *http.Client

	redis    *redis.Client
	cacheTTL time.Duration
}

// NewClient constructs a client for baseURL with the given request timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// UseRedisCache configures optional Redis caching for GET endpoints.
func (c *Client) UseRedisCache(redisClient *redis.Client, ttl time.Duration) {
	c.redis = redisClient
	c.cacheTTL = ttl
}

// BaseURL is the record API root without trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ListOptions selects a page of the catalog.
type ListOptions struct {
	Page          int
	PerPage       int
	Search        string
	AvailableOnly bool
	Sort          string
}

// BuildFilter renders the record filter for the availability toggle and an
// optional search term.
func BuildFilter(availableOnly bool, search string) string {
	filters := make([]string, 0, 2)
	if availableOnly {
		filters = append(filters, `status="instock"`)
	} else {
		filters = append(filters, `status!="deleted"`)
	}

	if search != "" {
		term := strings.ReplaceAll(search, `"`, `\"`)
		filters = append(filters, fmt.Sprintf(
			`(name~"%[1]s" || description~"%[1]s" || category~"%[1]s" || synonyms~"%[1]s")`, term))
	}
	return strings.Join(filters, " && ")
}

// ListItems returns one page of items matching opts.
func (c *Client) ListItems(ctx context.Context, opts ListOptions) (*ItemsResponse, error) {
	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.PerPage < 1 {
		opts.PerPage = 30
	}
	params := url.Values{}
	params.Set("filter", BuildFilter(opts.AvailableOnly, opts.Search))
	if opts.Sort != "" {
		params.Set("sort", opts.Sort)
	}
	params.Set("page", strconv.Itoa(opts.Page))
	params.Set("perPage", strconv.Itoa(opts.PerPage))

	endpoint := c.baseURL + itemsPath + "?" + params.Encode()
	cacheKey := cachePrefix + "items:" + params.Encode()
	var resp ItemsResponse

	if c.readCache(ctx, cacheKey, &resp) {
		return &resp, nil
	}

	if err := c.doGet(ctx, endpoint, &resp); err != nil {
		return nil, err
	}
	c.writeCache(ctx, cacheKey, resp)
	return &resp, nil
}

// GetItem fetches a single item by record id.
func (c *Client) GetItem(ctx context.Context, id string) (*Item, error) {
	endpoint := c.baseURL + itemsPath + "/" + url.PathEscape(id)
	cacheKey := cachePrefix + "item:" + id
	var item Item

	if c.readCache(ctx, cacheKey, &item) {
		return &item, nil
	}

	if err := c.doGet(ctx, endpoint, &item); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
			return nil, ErrNotFound
		}
		return nil, err
	}
	c.writeCache(ctx, cacheKey, item)
	return &item, nil
}

// GetItemByIID looks up an item by its external numeric id.
func (c *Client) GetItemByIID(ctx context.Context, iid int) (*Item, error) {
	params := url.Values{}
	params.Set("filter", fmt.Sprintf("iid=%d", iid))
	params.Set("perPage", "1")

	endpoint := c.baseURL + itemsPath + "?" + params.Encode()
	cacheKey := fmt.Sprintf("%siid:%d", cachePrefix, iid)
	var resp ItemsResponse

	if !c.readCache(ctx, cacheKey, &resp) {
		if err := c.doGet(ctx, endpoint, &resp); err != nil {
			return nil, err
		}
		c.writeCache(ctx, cacheKey, resp)
	}

	if len(resp.Items) == 0 {
		return nil, ErrNotFound
	}
	return &resp.Items[0], nil
}

// CreateReservation posts a reservation. Never cached, never retried.
func (c *Client) CreateReservation(ctx context.Context, req ReservationRequest) (*ReservationResponse, error) {
	if req.Items == nil {
		req.Items = []string{}
	}
	var resp ReservationResponse
	if err := c.doPost(ctx, c.baseURL+reservationsPath, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ImageURL returns the download URL of an item image.
func (c *Client) ImageURL(itemID, filename string) string {
	return fmt.Sprintf("%s%s/%s/%s", c.baseURL, filesPath, itemID, filename)
}

// ThumbnailURL returns a thumbnail URL; size defaults to 100x100.
func (c *Client) ThumbnailURL(itemID, filename, size string) string {
	if size == "" {
		size = "100x100"
	}
	return c.ImageURL(itemID, filename) + "?thumb=" + url.QueryEscape(size)
}

// HealthCheck checks if the record API answers.
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/health", http.NoBody)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed: %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) readCache(ctx context.Context, key string, out any) bool {
	if c.redis == nil || c.cacheTTL <= 0 {
		return false
	}
	val, err := c.redis.Get(ctx, key).Result()
	if err != nil {
		return false
	}
	if err := json.Unmarshal([]byte(val), out); err != nil {
		return false
	}
	return true
}

func (c *Client) writeCache(ctx context.Context, key string, val any) {
	if c.redis == nil || c.cacheTTL <= 0 {
		return
	}
	data, err := json.Marshal(val)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, key, data, c.cacheTTL).Err()
}

func (c *Client) doGet(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) doPost(ctx context.Context, endpoint string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", req.URL.Path, err)
	}
	return nil
}

// decodeError turns a non-2xx response into an *APIError. Bodies that are
// not JSON still yield an APIError with the status and an empty message.
func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err == nil && len(body) > 0 {
		_ = json.Unmarshal(body, apiErr)
	}
	if apiErr.Code == 0 {
		apiErr.Code = resp.StatusCode
	}
	return apiErr
}
