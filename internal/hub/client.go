// Package hub is the read-only client for the remote skill catalog:
// search, metadata lookup, and zip download for installation. It never
// writes anything back to the catalog service.
package hub

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"skillshub/internal/faults"
)

const userAgent = "skills-hub"

// Summary is one search hit.
type Summary struct {
	Slug        string  `json:"slug"`
	DisplayName string  `json:"displayName"`
	Summary     string  `json:"summary,omitempty"`
	Version     string  `json:"version,omitempty"`
	Score       float64 `json:"score"`
	UpdatedAt   int64   `json:"updatedAt,omitempty"`
}

// Detail is the full metadata of one catalog skill.
type Detail struct {
	Slug        string   `json:"slug"`
	DisplayName string   `json:"displayName"`
	Summary     string   `json:"summary,omitempty"`
	Version     string   `json:"version,omitempty"`
	Changelog   string   `json:"changelog,omitempty"`
	OwnerHandle string   `json:"ownerHandle,omitempty"`
	OwnerName   string   `json:"ownerName,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Downloads   uint64   `json:"downloads,omitempty"`
	Stars       uint64   `json:"stars,omitempty"`
	CreatedAt   int64    `json:"createdAt,omitempty"`
	UpdatedAt   int64    `json:"updatedAt,omitempty"`
}

// Client talks to one hub endpoint.
type Client struct {
	http *resty.Client
}

// New creates a client for baseURL.
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(timeout).
			SetHeader("User-Agent", userAgent),
	}
}

type searchResponse struct {
	Results []struct {
		Score       float64 `json:"score"`
		Slug        string  `json:"slug"`
		DisplayName string  `json:"displayName"`
		Summary     string  `json:"summary"`
		Version     string  `json:"version"`
		UpdatedAt   int64   `json:"updatedAt"`
	} `json:"results"`
}

// Search queries the catalog. The limit is clamped to 1..50.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]Summary, error) {
	if limit < 1 {
		limit = 1
	}
	if limit > 50 {
		limit = 50
	}

	var body searchResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("q", query).
		SetQueryParam("limit", strconv.Itoa(limit)).
		SetResult(&body).
		Get("/api/v1/search")
	if err != nil {
		return nil, faults.Wrap(faults.Connection, err, "hub search")
	}
	if resp.IsError() {
		return nil, faults.New(faults.Connection, "hub search returned %s", resp.Status())
	}

	out := make([]Summary, 0, len(body.Results))
	for _, r := range body.Results {
		if r.Slug == "" {
			continue
		}
		out = append(out, Summary{
			Slug:        r.Slug,
			DisplayName: r.DisplayName,
			Summary:     r.Summary,
			Version:     r.Version,
			Score:       r.Score,
			UpdatedAt:   r.UpdatedAt,
		})
	}
	return out, nil
}

type getSkillResponse struct {
	Skill *struct {
		Slug        string   `json:"slug"`
		DisplayName string   `json:"displayName"`
		Summary     string   `json:"summary"`
		Tags        []string `json:"tags"`
		Stats       *struct {
			Downloads uint64 `json:"downloads"`
			Stars     uint64 `json:"stars"`
		} `json:"stats"`
		CreatedAt int64 `json:"createdAt"`
		UpdatedAt int64 `json:"updatedAt"`
	} `json:"skill"`
	LatestVersion *struct {
		Version   string `json:"version"`
		Changelog string `json:"changelog"`
	} `json:"latestVersion"`
	Owner *struct {
		Handle      string `json:"handle"`
		DisplayName string `json:"displayName"`
	} `json:"owner"`
}

// Get fetches the metadata for one skill by slug.
func (c *Client) Get(ctx context.Context, slug string) (*Detail, error) {
	if slug == "" {
		return nil, faults.New(faults.Validation, "empty hub slug")
	}

	var body getSkillResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&body).
		Get("/api/v1/skills/" + slug)
	if err != nil {
		return nil, faults.Wrap(faults.Connection, err, "hub lookup: %s", slug)
	}
	if resp.StatusCode() == 404 || body.Skill == nil {
		return nil, faults.New(faults.NotAvailable, "hub skill not found: %s", slug)
	}
	if resp.IsError() {
		return nil, faults.New(faults.Connection, "hub lookup returned %s", resp.Status())
	}

	d := &Detail{
		Slug:        body.Skill.Slug,
		DisplayName: body.Skill.DisplayName,
		Summary:     body.Skill.Summary,
		Tags:        body.Skill.Tags,
		CreatedAt:   body.Skill.CreatedAt,
		UpdatedAt:   body.Skill.UpdatedAt,
	}
	if body.Skill.Stats != nil {
		d.Downloads = body.Skill.Stats.Downloads
		d.Stars = body.Skill.Stats.Stars
	}
	if body.LatestVersion != nil {
		d.Version = body.LatestVersion.Version
		d.Changelog = body.LatestVersion.Changelog
	}
	if body.Owner != nil {
		d.OwnerHandle = body.Owner.Handle
		d.OwnerName = body.Owner.DisplayName
	}
	return d, nil
}

// Download fetches the zip archive of a skill (a specific version when
// given, otherwise the latest) and extracts it into destDir.
func (c *Client) Download(ctx context.Context, slug, version, destDir string) (string, error) {
	if slug == "" {
		return "", faults.New(faults.Validation, "empty hub slug")
	}

	req := c.http.R().
		SetContext(ctx).
		SetQueryParam("slug", slug).
		SetDoNotParseResponse(false)
	if version != "" {
		req.SetQueryParam("version", version)
	}

	resp, err := req.Get("/api/v1/download")
	if err != nil {
		return "", faults.Wrap(faults.Connection, err, "hub download: %s", slug)
	}
	if resp.IsError() {
		return "", faults.New(faults.Connection, "hub download returned %s", resp.Status())
	}

	extractDir := fmt.Sprintf("%s/%s", destDir, slug)
	if err := extractZip(resp.Body(), extractDir); err != nil {
		return "", err
	}
	return extractDir, nil
}
