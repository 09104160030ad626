package vision

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/happycreater/binance-historical-data/internal/errors"
	"github.com/happycreater/binance-historical-data/pkg/types"
)

// bucketURLRegex extracts the S3 listing endpoint from the landing page.
// The value lives in a script variable, so this stays a regex scrape.
var bucketURLRegex = regexp.MustCompile(`var BUCKET_URL = '(.*?)';`)

// ListingClient enumerates the children of a remote prefix through the
// bucket listing endpoint behind the data.binance.vision landing page.
type ListingClient struct {
	httpClient *http.Client
	baseURL    string
}

// NewListingClient creates a listing client against the public data tree
func NewListingClient(httpClient *http.Client) *ListingClient {
	return NewListingClientWithBaseURL(httpClient, BaseURL)
}

// NewListingClientWithBaseURL creates a listing client against a custom
// root, used by tests to point at a fixture server.
func NewListingClientWithBaseURL(httpClient *http.Client, baseURL string) *ListingClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &ListingClient{
		httpClient: httpClient,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
	}
}

// listBucketResult mirrors the subset of the S3 ListObjects response the
// listing needs.
type listBucketResult struct {
	IsTruncated    bool     `xml:"IsTruncated"`
	NextMarker     string   `xml:"NextMarker"`
	Contents       []object `xml:"Contents"`
	CommonPrefixes []prefix `xml:"CommonPrefixes"`
}

type object struct {
	Key string `xml:"Key"`
}

type prefix struct {
	Prefix string `xml:"Prefix"`
}

// bucketURL resolves the listing endpoint for a prefix from the landing page
func (c *ListingClient) bucketURL(ctx context.Context, pfx string) (string, error) {
	landingURL := fmt.Sprintf("%s/?prefix=%s", c.baseURL, url.QueryEscape(pfx))
	body, err := c.get(ctx, landingURL)
	if err != nil {
		return "", err
	}
	match := bucketURLRegex.FindSubmatch(body)
	if match == nil {
		return "", errors.New(errors.ErrorCategoryCache, "listing", "bucket_url", "BUCKET_URL not found in index page")
	}
	return string(match[1]), nil
}

// ListPrefix returns every child of a prefix: directories from
// CommonPrefixes and zip objects from Contents, following truncated pages
// via markers. Directories sort before files, each group alphabetically.
func (c *ListingClient) ListPrefix(ctx context.Context, pfx string) ([]types.RemoteEntry, error) {
	bucket, err := c.bucketURL(ctx, pfx)
	if err != nil {
		return nil, err
	}

	var entries []types.RemoteEntry
	marker := ""
	for {
		params := "delimiter=/&prefix=" + url.QueryEscape(pfx)
		if marker != "" {
			params += "&marker=" + url.QueryEscape(marker)
		}
		body, err := c.get(ctx, bucket+"?"+params)
		if err != nil {
			return nil, err
		}

		var page listBucketResult
		if err := xml.Unmarshal(body, &page); err != nil {
			return nil, errors.NewCacheError("listing", "parse_listing", err)
		}

		for _, cp := range page.CommonPrefixes {
			name := strings.Trim(strings.TrimPrefix(cp.Prefix, pfx), "/")
			if name != "" {
				entries = append(entries, types.RemoteEntry{Name: name, IsDir: true})
			}
		}
		lastKey := ""
		for _, obj := range page.Contents {
			lastKey = obj.Key
			if !strings.HasSuffix(obj.Key, ".zip") {
				continue
			}
			name := strings.TrimPrefix(obj.Key, pfx)
			if name != "" {
				entries = append(entries, types.RemoteEntry{Name: name, IsDir: false})
			}
		}

		if !page.IsTruncated {
			break
		}
		marker = page.NextMarker
		if marker == "" {
			marker = lastKey
		}
		if marker == "" {
			break
		}
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].IsDir != entries[j].IsDir {
			return entries[i].IsDir
		}
		return entries[i].Name < entries[j].Name
	})
	return entries, nil
}

// ListKeys returns the full zip object keys under a prefix, the shape the
// availability filter and index cache work with.
func (c *ListingClient) ListKeys(ctx context.Context, pfx string) ([]string, error) {
	entries, err := c.ListPrefix(ctx, pfx)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir {
			keys = append(keys, pfx+entry.Name)
		}
	}
	return keys, nil
}

// ListChildDirs returns the directory children of a prefix, used for
// wildcard symbol resolution.
func (c *ListingClient) ListChildDirs(ctx context.Context, pfx string) ([]string, error) {
	entries, err := c.ListPrefix(ctx, pfx)
	if err != nil {
		return nil, err
	}
	var dirs []string
	for _, entry := range entries {
		if entry.IsDir {
			dirs = append(dirs, entry.Name)
		}
	}
	return dirs, nil
}

func (c *ListingClient) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, errors.NewCacheError("listing", "build_request", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.NewCacheError("listing", "request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Newf(errors.ErrorCategoryCache, "listing", "request",
			"unexpected status %d for %s", resp.StatusCode, rawURL)
	}
	return io.ReadAll(resp.Body)
}

// EncodeURL percent-encodes the path portion of an archive URL so symbols
// with unusual characters fetch cleanly.
func EncodeURL(baseURL, remotePath string) string {
	segments := strings.Split(remotePath, "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return strings.TrimSuffix(baseURL, "/") + "/" + strings.Join(segments, "/")
}
