// Package enrich resolves third-party deep links for returned places in
// the background: per-provider workers consume a bounded queue, search
// the web, validate candidate URLs against provider host rules and push
// incremental RESULT_PATCH events.
package enrich

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Provider describes one deep-link provider: which hosts its links may
// live on and which path prefix a valid deep link must carry.
type Provider struct {
	Name string `yaml:"name"`
	// Hosts are exact hostnames or "*.domain" wildcards.
	Hosts []string `yaml:"hosts"`
	// PathPrefix is required on every accepted deep link. Rejecting
	// everything else keeps category and search pages out.
	PathPrefix string `yaml:"pathPrefix"`
}

// DefaultProviders are the built-in delivery providers.
func DefaultProviders() []Provider {
	return []Provider{
		{
			Name:       "wolt",
			Hosts:      []string{"wolt.com", "*.wolt.com"},
			PathPrefix: "/restaurant/",
		},
		{
			Name:       "tenbis",
			Hosts:      []string{"10bis.co.il", "*.10bis.co.il"},
			PathPrefix: "/next/",
		},
		{
			Name:       "mishloha",
			Hosts:      []string{"mishloha.co.il", "*.mishloha.co.il"},
			PathPrefix: "/now/r/",
		},
	}
}

// LoadProviders returns the built-in providers, overlaid from a YAML
// file when one is configured.
func LoadProviders(path string) ([]Provider, error) {
	if path == "" {
		return DefaultProviders(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("enrich: reading providers file: %w", err)
	}
	var doc struct {
		Providers []Provider `yaml:"providers"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("enrich: parsing providers file: %w", err)
	}
	if len(doc.Providers) == 0 {
		return DefaultProviders(), nil
	}
	return doc.Providers, nil
}

// ValidDeepLink reports whether a candidate URL is an acceptable deep
// link for the provider: an allowed host and the required path prefix.
func (p Provider) ValidDeepLink(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}
	if !p.hostAllowed(strings.ToLower(u.Hostname())) {
		return false
	}
	return strings.HasPrefix(u.Path, p.PathPrefix)
}

func (p Provider) hostAllowed(host string) bool {
	for _, allowed := range p.Hosts {
		allowed = strings.ToLower(allowed)
		if wild, ok := strings.CutPrefix(allowed, "*."); ok {
			if host == wild || strings.HasSuffix(host, "."+wild) {
				return true
			}
			continue
		}
		if host == allowed {
			return true
		}
	}
	return false
}

// queryPlan is the progressive relaxation of web-search queries for a
// place: most specific first.
func (p Provider) queryPlan(name, cityText string) []string {
	hosts := strings.Join(p.Hosts, " OR site:")
	var plan []string
	if cityText != "" {
		plan = append(plan,
			fmt.Sprintf("%s %s", name, cityText),
			fmt.Sprintf("%s %s site:%s", name, cityText, hosts),
		)
	} else {
		plan = append(plan, fmt.Sprintf("%s site:%s", name, hosts))
	}
	plan = append(plan, name)
	return plan
}
