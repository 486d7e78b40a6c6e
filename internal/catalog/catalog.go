package catalog

import (
	"fmt"
	"os"

	"github.com/paygenio/paygen/internal/domain"
	"gopkg.in/yaml.v3"
)

// Entry describes one purchasable service. Entries are immutable at runtime;
// the dispatcher reads them to decide provider kind and template, and the job
// creation path copies the price onto the job so later catalog edits never
// touch in-flight work.
type Entry struct {
	Key      string `yaml:"key"`
	Price    string `yaml:"price"`
	Kind     string `yaml:"kind"`
	Template string `yaml:"template"`
	Model    string `yaml:"model"`

	amount domain.Amount
}

// PriceAmount returns the parsed price.
func (e *Entry) PriceAmount() domain.Amount {
	return e.amount
}

// Catalog is the static service catalog, loaded once at startup.
type Catalog struct {
	entries map[string]*Entry
}

type catalogFile struct {
	Services []Entry `yaml:"services"`
}

// Load reads and validates the catalog file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}

	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse catalog file: %w", err)
	}

	entries := make(map[string]*Entry, len(file.Services))
	for i := range file.Services {
		e := file.Services[i]
		if e.Key == "" {
			return nil, fmt.Errorf("catalog entry %d: key is required", i)
		}
		if _, exists := entries[e.Key]; exists {
			return nil, fmt.Errorf("catalog entry %q: duplicate key", e.Key)
		}

		amount, err := domain.ParseAmount(e.Price)
		if err != nil {
			return nil, fmt.Errorf("catalog entry %q: invalid price: %w", e.Key, err)
		}
		if amount.IsZero() {
			return nil, fmt.Errorf("catalog entry %q: price must be greater than zero", e.Key)
		}
		e.amount = amount

		switch e.Kind {
		case domain.KindText:
			if e.Template == "" {
				return nil, fmt.Errorf("catalog entry %q: text services require a template", e.Key)
			}
		case domain.KindImage:
			if e.Model == "" {
				return nil, fmt.Errorf("catalog entry %q: image services require a model", e.Key)
			}
		default:
			return nil, fmt.Errorf("catalog entry %q: unknown kind %q", e.Key, e.Kind)
		}

		entries[e.Key] = &e
	}

	if len(entries) == 0 {
		return nil, fmt.Errorf("catalog has no services")
	}

	return &Catalog{entries: entries}, nil
}

// Lookup returns the entry for a service key.
func (c *Catalog) Lookup(key string) (*Entry, error) {
	entry, ok := c.entries[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrServiceUnknown, key)
	}
	return entry, nil
}

// Len returns the number of services in the catalog.
func (c *Catalog) Len() int {
	return len(c.entries)
}
