package config

import (
	"errors"
	"fmt"
	"time"
)

const (
	SourceKindHTML    = "html"
	SourceKindWorkday = "workday"
)

type SourceConfig struct {
	Name                 string              `mapstructure:"name"`
	Kind                 string              `mapstructure:"kind"`
	Company              string              `mapstructure:"company"`
	URL                  string              `mapstructure:"url"`
	ItemSelector         string              `mapstructure:"item_selector"`
	LinkSelector         string              `mapstructure:"link_selector"`
	TitleSelector        string              `mapstructure:"title_selector"`
	LocationSelector     string              `mapstructure:"location_selector"`
	DescriptionSelector  string              `mapstructure:"description_selector"`
	APIURL               string              `mapstructure:"api_url"`
	SiteURL              string              `mapstructure:"site_url"`
	SearchText           string              `mapstructure:"search_text"`
	AppliedFacets        []FacetConfig       `mapstructure:"applied_facets"`
	Timeout              time.Duration       `mapstructure:"timeout"`
	MaxRequestsPerSecond float32             `mapstructure:"max_requests_per_second"`
}

// FacetConfig is a Workday search facet. Kept as a list because viper lowercases
// map keys and facet ids are case-sensitive.
type FacetConfig struct {
	Name   string   `mapstructure:"name"`
	Values []string `mapstructure:"values"`
}

func (source SourceConfig) Facets() map[string][]string {
	facets := make(map[string][]string, len(source.AppliedFacets))
	for _, facet := range source.AppliedFacets {
		facets[facet.Name] = append(facets[facet.Name], facet.Values...)
	}
	return facets
}

func validateSources(sources []SourceConfig) error {
	var errs []error
	names := make(map[string]bool, len(sources))

	for i, source := range sources {
		if source.Name == "" {
			errs = append(errs, fmt.Errorf("source #%d: missing name", i))
			continue
		}
		if names[source.Name] {
			errs = append(errs, fmt.Errorf("source %q: duplicate name", source.Name))
		}
		names[source.Name] = true

		switch source.Kind {
		case SourceKindHTML:
			if source.URL == "" || source.ItemSelector == "" || source.LinkSelector == "" || source.TitleSelector == "" {
				errs = append(errs, fmt.Errorf("source %q: html sources need url, item_selector, link_selector and title_selector", source.Name))
			}
		case SourceKindWorkday:
			if source.APIURL == "" || source.SiteURL == "" {
				errs = append(errs, fmt.Errorf("source %q: workday sources need api_url and site_url", source.Name))
			}
		default:
			errs = append(errs, fmt.Errorf("source %q: unknown kind %q", source.Name, source.Kind))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
