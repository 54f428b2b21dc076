// Package update checks GitHub for a newer release of the packaged application
// and applies it to an installed copy while leaving user data alone.
package update

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/browser"
	"github.com/tidwall/gjson"

	"github.com/relicrush/relicpack/internal/config"
	apperr "github.com/relicrush/relicpack/internal/errors"
	"github.com/relicrush/relicpack/internal/semver"
)

const (
	DefaultAPIURL = "https://api.github.com"
	userAgent     = "WarframeRelicCompanion-Updater"
	checkTimeout  = 12 * time.Second
)

// Asset is one downloadable file attached to a release.
type Asset struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Release is the subset of the GitHub release document relicpack reads.
type Release struct {
	Tag        string  `json:"tag"`
	Name       string  `json:"name"`
	Notes      string  `json:"notes"`
	Assets     []Asset `json:"assets"`
	ZipballURL string  `json:"zipball_url"`
}

// Version returns the tag, or the release name when the tag is empty.
func (r *Release) Version() string {
	if r == nil {
		return ""
	}
	if v := strings.TrimSpace(r.Tag); v != "" {
		return v
	}
	return strings.TrimSpace(r.Name)
}

// ExeURL is the download URL of the last .exe asset, or "".
func (r *Release) ExeURL() string {
	return r.lastWithExt(".exe")
}

// ZipURL is the download URL of the last .zip asset. The source zipball is used
// only when the release has neither an .exe nor a .zip asset.
func (r *Release) ZipURL() string {
	if u := r.lastWithExt(".zip"); u != "" {
		return u
	}
	if r.ExeURL() == "" {
		return r.ZipballURL
	}
	return ""
}

func (r *Release) lastWithExt(ext string) string {
	if r == nil {
		return ""
	}
	url := ""
	for _, a := range r.Assets {
		if strings.HasSuffix(strings.ToLower(a.Name), ext) && a.URL != "" {
			url = a.URL
		}
	}
	return url
}

// ParseRelease reads a GitHub release JSON document.
func ParseRelease(body []byte) *Release {
	doc := gjson.ParseBytes(body)
	rel := &Release{
		Tag:        doc.Get("tag_name").String(),
		Name:       doc.Get("name").String(),
		Notes:      doc.Get("body").String(),
		ZipballURL: doc.Get("zipball_url").String(),
	}
	doc.Get("assets").ForEach(func(_, a gjson.Result) bool {
		rel.Assets = append(rel.Assets, Asset{
			Name: a.Get("name").String(),
			URL:  a.Get("browser_download_url").String(),
		})
		return true
	})
	return rel
}

// Info is the outcome of an update check.
type Info struct {
	Current   string `json:"current_version"`
	Latest    string `json:"latest_version"`
	Available bool   `json:"update_available"`
	ExeURL    string `json:"exe_download_url,omitempty"`
	ZipURL    string `json:"download_url,omitempty"`
	Name      string `json:"release_name,omitempty"`
	Notes     string `json:"release_notes,omitempty"`
}

// Client talks to the GitHub releases API.
type Client struct {
	HTTP   *http.Client
	APIURL string
	Owner  string
	Repo   string
	Token  string
}

// NewClient builds a Client from the manifest's update section.
func NewClient(cfg config.UpdateConfig) *Client {
	api := strings.TrimRight(strings.TrimSpace(cfg.APIURL), "/")
	if api == "" {
		api = DefaultAPIURL
	}
	return &Client{
		HTTP:   &http.Client{Timeout: checkTimeout},
		APIURL: api,
		Owner:  cfg.Owner,
		Repo:   cfg.Repo,
		Token:  cfg.Token,
	}
}

func (c *Client) httpClient() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return &http.Client{Timeout: checkTimeout}
}

// FetchLatest returns the latest published release.
func (c *Client) FetchLatest(ctx context.Context) (*Release, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/releases/latest", c.APIURL, c.Owner, c.Repo)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeNetworkFailed, "build release request", err)
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("User-Agent", userAgent)
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeNetworkFailed, "fetch latest release", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, apperr.Wrap(apperr.CodeNetworkFailed, "fetch latest release",
			fmt.Errorf("github latest release: %s: %s", resp.Status, strings.TrimSpace(string(body))))
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeNetworkFailed, "read release", err)
	}
	if !gjson.ValidBytes(body) {
		return nil, apperr.Wrap(apperr.CodeNetworkFailed, "read release", fmt.Errorf("response is not JSON"))
	}
	return ParseRelease(body), nil
}

// Check compares the latest release against current.
func (c *Client) Check(ctx context.Context, current string) (*Info, error) {
	rel, err := c.FetchLatest(ctx)
	if err != nil {
		return nil, err
	}
	latest := rel.Version()
	if latest == "" {
		latest = "0.0.0"
	}
	return &Info{
		Current:   current,
		Latest:    latest,
		Available: semver.IsNewer(latest, current),
		ExeURL:    rel.ExeURL(),
		ZipURL:    rel.ZipURL(),
		Name:      rel.Name,
		Notes:     rel.Notes,
	}, nil
}

// ReleasesPage is the human-facing page of the latest release.
func ReleasesPage(owner, repo string) string {
	return fmt.Sprintf("https://github.com/%s/%s/releases/latest", owner, repo)
}

// OpenReleasesPage opens ReleasesPage in the default browser.
func OpenReleasesPage(owner, repo string) error {
	return browser.OpenURL(ReleasesPage(owner, repo))
}
