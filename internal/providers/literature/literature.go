// Package literature exposes a publication lookup tool backed by the
// Crossref REST API, returning bibliography entries the aggregator merges
// into the run's citation list.
package literature

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/loomkg/loom/internal/util"
	"github.com/loomkg/loom/pkg/tool"
)

const defaultBaseURL = "https://api.crossref.org"

// Client queries the publication index.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a literature client. An empty baseURL falls back to
// the public Crossref endpoint.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Provider returns the literature tool provider.
func (c *Client) Provider() tool.Provider {
	return tool.Provider{
		Name: "literature",
		Operations: []tool.Operation{
			{
				Name:        "search",
				Description: "Search the scientific literature for publications matching a query. Returns bibliography entries with titles, authors and identifiers.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"query": map[string]any{
							"type":        "string",
							"description": "Free-text search query",
						},
						"limit": map[string]any{
							"type":        "integer",
							"description": "Maximum number of results, default 5",
						},
					},
					"required": []string{"query"},
				},
				Handler: c.search,
			},
		},
	}
}

type crossrefResponse struct {
	Message struct {
		Items []crossrefWork `json:"items"`
	} `json:"message"`
}

type crossrefWork struct {
	DOI    string   `json:"DOI"`
	Title  []string `json:"title"`
	URL    string   `json:"URL"`
	Author []struct {
		Given  string `json:"given"`
		Family string `json:"family"`
	} `json:"author"`
	ContainerTitle []string `json:"container-title"`
	Issued         struct {
		DateParts [][]int `json:"date-parts"`
	} `json:"issued"`
}

func (c *Client) search(ctx context.Context, args map[string]any) (*tool.Result, error) {
	query, _ := args["query"].(string)
	if query == "" {
		return tool.TextResult("No search query given."), nil
	}
	limit := 5
	if v, ok := args["limit"].(float64); ok && v > 0 {
		limit = int(v)
	}

	endpoint := fmt.Sprintf("%s/works?query=%s&rows=%s",
		c.baseURL, url.QueryEscape(query), strconv.Itoa(limit))

	decoded, err := util.RetryWithContext(ctx, 3, func(ctx context.Context) (crossrefResponse, error) {
		var out crossrefResponse
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return out, err
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return out, fmt.Errorf("literature lookup failed: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return out, fmt.Errorf("literature lookup returned status %d", resp.StatusCode)
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return out, fmt.Errorf("failed to decode literature response: %w", err)
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}

	citations := make([]tool.Citation, 0, len(decoded.Message.Items))
	for _, work := range decoded.Message.Items {
		if work.DOI == "" {
			continue
		}
		citations = append(citations, toCitation(work))
	}
	if len(citations) == 0 {
		return tool.TextResult(fmt.Sprintf("No publications found for %q.", query)), nil
	}

	text := fmt.Sprintf("Found %d publications for %q:", len(citations), query)
	for _, cit := range citations {
		text += fmt.Sprintf("\n- %s (%s, %s)", cit.Title, cit.Journal, cit.Year)
	}

	return &tool.Result{
		Text:         text,
		Bibliography: citations,
	}, nil
}

func toCitation(work crossrefWork) tool.Citation {
	c := tool.Citation{ID: "doi:" + work.DOI, URL: work.URL}
	if len(work.Title) > 0 {
		c.Title = work.Title[0]
	}
	if len(work.ContainerTitle) > 0 {
		c.Journal = work.ContainerTitle[0]
	}
	for i, a := range work.Author {
		if i > 0 {
			c.Authors += ", "
		}
		c.Authors += a.Given + " " + a.Family
	}
	if len(work.Issued.DateParts) > 0 && len(work.Issued.DateParts[0]) > 0 {
		c.Year = strconv.Itoa(work.Issued.DateParts[0][0])
	}
	return c
}
