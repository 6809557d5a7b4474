package sources

import (
	"bytes"
	"context"
	"fmt"
	"github.com/PuerkitoBio/goquery"
	"github.com/maxaizer/jobfeed/internal/entities"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type HTMLBoardConfig struct {
	Name                string
	Company             string
	URL                 string
	ItemSelector        string
	LinkSelector        string
	TitleSelector       string
	LocationSelector    string
	DescriptionSelector string
	Timeout             time.Duration
}

// HTMLBoard scrapes a server-rendered career page. Each element matched by
// ItemSelector is one posting; the other selectors are evaluated inside it.
type HTMLBoard struct {
	httpSource
	cfg     HTMLBoardConfig
	baseURL *url.URL
}

func NewHTMLBoard(cfg HTMLBoardConfig) (*HTMLBoard, error) {
	if cfg.Name == "" || cfg.URL == "" || cfg.ItemSelector == "" || cfg.LinkSelector == "" || cfg.TitleSelector == "" {
		return nil, fmt.Errorf("html board %q: name, url, item, link and title selectors are required", cfg.Name)
	}

	baseURL, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("html board %q: invalid url: %w", cfg.Name, err)
	}

	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}

	return &HTMLBoard{
		httpSource: httpSource{httpClient: &http.Client{Timeout: cfg.Timeout}},
		cfg:        cfg,
		baseURL:    baseURL,
	}, nil
}

func (b *HTMLBoard) Name() string { return b.cfg.Name }

func (b *HTMLBoard) Description() string {
	return fmt.Sprintf(`HTML board scraper (Go, goquery)
module: %s
company: %s
page: %s
item selector: %s
link selector (href attribute, resolved against page url): %s
title selector (text): %s
location selector (text, optional): %s
description selector (text, optional): %s
guards: every item must yield a link and a title, otherwise the whole fetch fails`,
		b.cfg.Name, b.cfg.Company, b.cfg.URL, b.cfg.ItemSelector, b.cfg.LinkSelector,
		b.cfg.TitleSelector, b.cfg.LocationSelector, b.cfg.DescriptionSelector)
}

func (b *HTMLBoard) Fetch(ctx context.Context) ([]entities.Posting, error) {
	ctx, cancel := context.WithTimeout(ctx, b.cfg.Timeout)
	defer cancel()

	body, err := b.send(ctx, http.MethodGet, b.cfg.URL, nil, "")
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", b.cfg.URL, err)
	}

	postings := make([]entities.Posting, 0)
	var guardErr error

	doc.Find(b.cfg.ItemSelector).EachWithBreak(func(i int, item *goquery.Selection) bool {
		posting, err := b.parseItem(item)
		if err != nil {
			guardErr = fmt.Errorf("item #%d: %w", i, err)
			return false
		}
		postings = append(postings, posting)
		return true
	})

	if guardErr != nil {
		return nil, guardErr
	}
	return postings, nil
}

func (b *HTMLBoard) parseItem(item *goquery.Selection) (entities.Posting, error) {
	href, ok := item.Find(b.cfg.LinkSelector).First().Attr("href")
	if !ok && item.Is(b.cfg.LinkSelector) {
		href, ok = item.Attr("href")
	}
	href = strings.TrimSpace(href)
	if !ok || href == "" {
		return entities.Posting{}, fmt.Errorf("%w: link selector %q matched no href", ErrMalformedPosting, b.cfg.LinkSelector)
	}

	link, err := b.baseURL.Parse(href)
	if err != nil {
		return entities.Posting{}, fmt.Errorf("%w: invalid href %q: %v", ErrMalformedPosting, href, err)
	}

	title := selectText(item, b.cfg.TitleSelector)
	if title == "" {
		return entities.Posting{}, fmt.Errorf("%w: title selector %q matched no text", ErrMalformedPosting, b.cfg.TitleSelector)
	}

	return entities.Posting{
		Link:        link.String(),
		Title:       title,
		Company:     b.cfg.Company,
		Location:    selectText(item, b.cfg.LocationSelector),
		Description: selectText(item, b.cfg.DescriptionSelector),
		Module:      b.cfg.Name,
	}, nil
}

func selectText(item *goquery.Selection, selector string) string {
	if selector == "" {
		return ""
	}
	return strings.Join(strings.Fields(item.Find(selector).First().Text()), " ")
}
