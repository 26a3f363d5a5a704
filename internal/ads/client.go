// Package ads resolves bibliographic locators and fetches publication
// records from the NASA ADS search API. It backs catalog source codes: a
// free-form locator (arXiv id, DOI, URL, raw bibcode) is normalized into a
// canonical bibcode, and records are cached by bibcode.
package ads

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/zjrosen/fieldcat/internal/cachemanager"
	"github.com/zjrosen/fieldcat/internal/log"
)

// DefaultBaseURL is the public ADS API endpoint.
const DefaultBaseURL = "https://api.adsabs.harvard.edu"

// DefaultRecordTTL bounds how long fetched records are served from cache.
const DefaultRecordTTL = 24 * time.Hour

// ErrNoRecord is returned when the API answers successfully but knows no
// publication for the query. Transport and server failures return other
// errors.
var ErrNoRecord = errors.New("no record found")

// ErrNoToken is returned when a query is attempted without an API token.
var ErrNoToken = errors.New("ads api token not configured")

// Record is the publication metadata kept for a bibcode.
type Record struct {
	Bibcode  string            `json:"bibcode"`
	Title    string            `json:"title"`
	Authors  []string          `json:"authors"`
	Abstract string            `json:"abstract"`
	PubDate  string            `json:"pubdate"`
	Keywords []string          `json:"keywords"`
	Links    map[string]string `json:"links"`
}

// Client queries the ADS API. It implements catalog.CodeResolver.
type Client struct {
	http    *http.Client
	baseURL string
	token   string
	ttl     time.Duration
	records *cachemanager.ReadThrough[Record]
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at a different API host, for testing.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithToken sets the API bearer token.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithRecordTTL sets how long fetched records stay cached.
func WithRecordTTL(ttl time.Duration) Option {
	return func(c *Client) { c.ttl = ttl }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// NewClient creates an ADS client. skipCache bypasses the record cache for
// callers that need live reads.
func NewClient(skipCache bool, opts ...Option) *Client {
	retry := retryablehttp.NewClient()
	retry.RetryMax = 3
	retry.Logger = nil

	c := &Client{
		http:    retry.StandardClient(),
		baseURL: DefaultBaseURL,
		ttl:     DefaultRecordTTL,
	}
	for _, opt := range opts {
		opt(c)
	}

	store := cachemanager.NewMemoryStore[Record](
		"ads-records", cachemanager.DefaultExpiration, cachemanager.DefaultCleanupInterval)
	c.records = cachemanager.NewReadThrough(store, c.fetchRecord, c.ttl, skipCache)
	return c
}

// ResolveCode normalizes a free-form locator into a canonical bibcode. A
// locator that already is a bibcode is returned unchanged without a network
// round trip.
func (c *Client) ResolveCode(ctx context.Context, locator string) (string, error) {
	query, err := classifyLocator(locator)
	if err != nil {
		return "", err
	}
	if query.bibcode != "" {
		return query.bibcode, nil
	}

	docs, err := c.search(ctx, query.q, "bibcode")
	if err != nil {
		return "", err
	}
	if len(docs) == 0 {
		return "", fmt.Errorf("locator %q: %w", locator, ErrNoRecord)
	}
	log.Debug(log.CatADS, "resolved locator", "locator", locator, "bibcode", docs[0].Bibcode)
	return docs[0].Bibcode, nil
}

// FetchRecord returns the publication record for a bibcode, served from
// cache when fresh.
func (c *Client) FetchRecord(ctx context.Context, code string) (Record, error) {
	return c.records.Get(ctx, code)
}

// apiDoc is one document of an ADS search response. Title arrives as a
// list; esources names the available full-text routes.
type apiDoc struct {
	Bibcode  string   `json:"bibcode"`
	Title    []string `json:"title"`
	Author   []string `json:"author"`
	Abstract string   `json:"abstract"`
	PubDate  string   `json:"pubdate"`
	Keyword  []string `json:"keyword"`
	Esources []string `json:"esources"`
}

type apiResponse struct {
	Response struct {
		NumFound int      `json:"numFound"`
		Docs     []apiDoc `json:"docs"`
	} `json:"response"`
}

const recordFields = "bibcode,title,author,abstract,pubdate,keyword,esources"

func (c *Client) fetchRecord(ctx context.Context, code string) (Record, error) {
	docs, err := c.search(ctx, fmt.Sprintf("bibcode:%q", code), recordFields)
	if err != nil {
		return Record{}, err
	}
	if len(docs) == 0 {
		return Record{}, fmt.Errorf("bibcode %q: %w", code, ErrNoRecord)
	}

	doc := docs[0]
	rec := Record{
		Bibcode:  doc.Bibcode,
		Authors:  doc.Author,
		Abstract: doc.Abstract,
		PubDate:  doc.PubDate,
		Keywords: doc.Keyword,
		Links:    map[string]string{"abstract": "https://ui.adsabs.harvard.edu/abs/" + url.PathEscape(doc.Bibcode) + "/abstract"},
	}
	if len(doc.Title) > 0 {
		rec.Title = doc.Title[0]
	}
	for _, es := range doc.Esources {
		rec.Links[es] = "https://ui.adsabs.harvard.edu/link_gateway/" + url.PathEscape(doc.Bibcode) + "/" + es
	}
	log.Debug(log.CatADS, "fetched record", "bibcode", rec.Bibcode)
	return rec, nil
}

func (c *Client) search(ctx context.Context, q, fields string) ([]apiDoc, error) {
	if c.token == "" {
		return nil, ErrNoToken
	}

	u := fmt.Sprintf("%s/v1/search/query?q=%s&fl=%s&rows=1",
		c.baseURL, url.QueryEscape(q), url.QueryEscape(fields))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ads query: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("ads query: status %d: %s", resp.StatusCode, body)
	}

	var parsed apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("ads response: %w", err)
	}
	return parsed.Response.Docs, nil
}
