package feed

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/samvad-hq/samvad-review-relay/internal/domain"
)

// LoadCountries reads an ordered storefront mapping from a YAML (or JSON) file:
//
//	countries:
//	  ru: Russia
//	  us: US
//
// Mapping order is kept; it decides the order storefronts are processed in.
func LoadCountries(path string) (domain.Countries, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("countries file path is empty")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read countries file: %w", err)
	}
	return parseCountriesDocument(raw)
}

func parseCountriesDocument(raw []byte) (domain.Countries, error) {
	var doc struct {
		Countries yaml.Node `yaml:"countries"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode countries file: %w", err)
	}

	node := doc.Countries
	if node.Kind != yaml.MappingNode {
		return nil, errors.New("countries must be a mapping of country code to display name")
	}

	out := make(domain.Countries, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		out = append(out, domain.Country{
			Code: node.Content[i].Value,
			Name: node.Content[i+1].Value,
		})
	}
	return validateCountries(out)
}

// ParseCountries parses the compact "ru=Russia,us=US" form used in environment variables.
func ParseCountries(list string) (domain.Countries, error) {
	list = strings.TrimSpace(list)
	if list == "" {
		return nil, nil
	}

	var out domain.Countries
	for _, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		code, name, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("country %q must look like code=Name", part)
		}
		out = append(out, domain.Country{Code: code, Name: name})
	}
	return validateCountries(out)
}

func validateCountries(in domain.Countries) (domain.Countries, error) {
	seen := make(map[string]struct{}, len(in))
	out := make(domain.Countries, 0, len(in))
	for i, c := range in {
		c.Code = strings.ToLower(strings.TrimSpace(c.Code))
		c.Name = strings.TrimSpace(c.Name)
		if c.Code == "" {
			return nil, fmt.Errorf("country[%d]: code is required", i)
		}
		if c.Name == "" {
			c.Name = strings.ToUpper(c.Code)
		}
		if _, dup := seen[c.Code]; dup {
			return nil, fmt.Errorf("duplicate country code %q", c.Code)
		}
		seen[c.Code] = struct{}{}
		out = append(out, c)
	}
	return out, nil
}
