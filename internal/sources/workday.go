package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"github.com/maxaizer/jobfeed/internal/entities"
	"net/http"
	"strings"
	"time"
)

const workdayPageSize = 20

type WorkdayConfig struct {
	Name    string
	Company string
	// APIURL is the cxs endpoint, e.g. https://ag.wd3.myworkdayjobs.com/wday/cxs/ag/Airbus
	APIURL string
	// SiteURL is the public career site used to build posting links, e.g.
	// https://ag.wd3.myworkdayjobs.com/fr-FR/Airbus
	SiteURL       string
	SearchText    string
	AppliedFacets map[string][]string
	Timeout       time.Duration
}

type workdayListingRequest struct {
	AppliedFacets map[string][]string `json:"appliedFacets"`
	Limit         int                 `json:"limit"`
	Offset        int                 `json:"offset"`
	SearchText    string              `json:"searchText"`
}

type workdayListingResponse struct {
	Total       int              `json:"total"`
	JobPostings []workdayListing `json:"jobPostings"`
}

type workdayListing struct {
	Title         string   `json:"title"`
	ExternalPath  string   `json:"externalPath"`
	LocationsText string   `json:"locationsText"`
	PostedOn      string   `json:"postedOn"`
	BulletFields  []string `json:"bulletFields"`
}

// Workday lists postings through the JSON endpoint behind myworkdayjobs.com
// career sites, paging until the reported total is reached.
type Workday struct {
	httpSource
	cfg WorkdayConfig
}

func NewWorkday(cfg WorkdayConfig) (*Workday, error) {
	if cfg.Name == "" || cfg.APIURL == "" || cfg.SiteURL == "" {
		return nil, fmt.Errorf("workday %q: name, api url and site url are required", cfg.Name)
	}
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	cfg.SiteURL = strings.TrimRight(cfg.SiteURL, "/")
	if cfg.AppliedFacets == nil {
		cfg.AppliedFacets = map[string][]string{}
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}

	return &Workday{
		httpSource: httpSource{httpClient: &http.Client{Timeout: cfg.Timeout}},
		cfg:        cfg,
	}, nil
}

func (w *Workday) Name() string { return w.cfg.Name }

func (w *Workday) Description() string {
	facets, _ := json.Marshal(w.cfg.AppliedFacets)
	return fmt.Sprintf(`Workday listing scraper (Go, JSON API)
module: %s
company: %s
listing endpoint: POST %s/jobs {"appliedFacets": %s, "searchText": %q, "limit": %d, "offset": n}
response: {"total": int, "jobPostings": [{"title", "externalPath", "locationsText", "postedOn"}]}
posting link: %s + externalPath
guards: every listing must carry title and externalPath, otherwise the whole fetch fails`,
		w.cfg.Name, w.cfg.Company, w.cfg.APIURL, facets, w.cfg.SearchText, workdayPageSize, w.cfg.SiteURL)
}

func (w *Workday) Fetch(ctx context.Context) ([]entities.Posting, error) {
	ctx, cancel := context.WithTimeout(ctx, w.cfg.Timeout)
	defer cancel()

	postings := make([]entities.Posting, 0)

	for offset := 0; ; offset += workdayPageSize {
		page, err := w.fetchPage(ctx, offset)
		if err != nil {
			return nil, err
		}

		for i, listing := range page.JobPostings {
			if listing.Title == "" || listing.ExternalPath == "" {
				return nil, fmt.Errorf("%w: listing #%d at offset %d lacks title or externalPath",
					ErrMalformedPosting, i, offset)
			}
			postings = append(postings, entities.Posting{
				Link:     w.cfg.SiteURL + "/" + strings.TrimLeft(listing.ExternalPath, "/"),
				Title:    strings.TrimSpace(listing.Title),
				Company:  w.cfg.Company,
				Location: strings.TrimSpace(listing.LocationsText),
				Module:   w.cfg.Name,
			})
		}

		if len(page.JobPostings) == 0 || offset+workdayPageSize >= page.Total {
			break
		}
	}

	return postings, nil
}

func (w *Workday) fetchPage(ctx context.Context, offset int) (*workdayListingResponse, error) {
	body, err := json.Marshal(workdayListingRequest{
		AppliedFacets: w.cfg.AppliedFacets,
		Limit:         workdayPageSize,
		Offset:        offset,
		SearchText:    w.cfg.SearchText,
	})
	if err != nil {
		return nil, fmt.Errorf("workday %s: marshal listing request: %w", w.cfg.Name, err)
	}

	data, err := w.send(ctx, http.MethodPost, w.cfg.APIURL+"/jobs", bytes.NewReader(body), "application/json")
	if err != nil {
		return nil, err
	}

	var page workdayListingResponse
	if err = json.Unmarshal(data, &page); err != nil {
		return nil, fmt.Errorf("workday %s: decode listing response: %w", w.cfg.Name, err)
	}
	return &page, nil
}
