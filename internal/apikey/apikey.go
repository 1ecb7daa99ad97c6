// Package apikey resolves the places API key from a fixed cascade of sources.
package apikey

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"HappyPlaceLocal/internal/domain"
	"HappyPlaceLocal/internal/ports"
)

// BuildKey is injected at link time:
//
//	go build -ldflags "-X HappyPlaceLocal/internal/apikey.BuildKey=AIza..."
var BuildKey string

// DefaultOptionName is the persisted option holding the key.
const DefaultOptionName = "hpl_google_places_api_key"

// Provider is one source in the cascade. An empty key with a nil error means
// the source has nothing configured.
type Provider interface {
	Name() string
	Key(ctx context.Context) (string, error)
}

// Resolver tries providers in order and returns the first non-empty key.
type Resolver struct {
	providers []Provider
}

// NewResolver keeps the given order.
func NewResolver(providers ...Provider) *Resolver {
	return &Resolver{providers: providers}
}

// Default builds the build-constant, option, file cascade.
func Default(options ports.OptionStore, optionName, filePath string) *Resolver {
	return NewResolver(
		ConstProvider{Value: BuildKey},
		OptionProvider{Store: options, OptionName: optionName},
		FileProvider{Path: filePath},
	)
}

// Resolve returns the key and the name of the provider that supplied it.
// Provider failures do not stop the cascade; they are reported only when no
// key is found.
func (r *Resolver) Resolve(ctx context.Context) (string, string, error) {
	if r == nil {
		return "", "", domain.ErrNoAPIKey
	}
	var errs []error
	for _, p := range r.providers {
		key, err := p.Key(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
			continue
		}
		if key = strings.TrimSpace(key); key != "" {
			return key, p.Name(), nil
		}
	}
	return "", "", errors.Join(append([]error{domain.ErrNoAPIKey}, errs...)...)
}

// ConstProvider returns a compile-time value.
type ConstProvider struct {
	Value string
}

func (ConstProvider) Name() string { return "constant" }

func (c ConstProvider) Key(context.Context) (string, error) {
	return c.Value, nil
}

// OptionProvider reads a persisted configuration option.
type OptionProvider struct {
	Store      ports.OptionStore
	OptionName string
}

func (OptionProvider) Name() string { return "option" }

func (o OptionProvider) Key(ctx context.Context) (string, error) {
	if o.Store == nil {
		return "", nil
	}
	name := o.OptionName
	if name == "" {
		name = DefaultOptionName
	}
	value, ok, err := o.Store.Option(ctx, name)
	if err != nil {
		return "", fmt.Errorf("read option %s: %w", name, err)
	}
	if !ok {
		return "", nil
	}
	return value, nil
}

// FileProvider reads a local JSON config file.
type FileProvider struct {
	Path string
}

func (FileProvider) Name() string { return "file" }

// fileKeys are checked in order.
var fileKeys = []string{"google_places_api_key", "places_api_key", "google_api_key"}

func (f FileProvider) Key(context.Context) (string, error) {
	if f.Path == "" {
		return "", nil
	}
	raw, err := os.ReadFile(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", f.Path, err)
	}

	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return "", fmt.Errorf("parse %s: %w", f.Path, err)
	}
	for _, k := range fileKeys {
		if s, ok := doc[k].(string); ok && strings.TrimSpace(s) != "" {
			return s, nil
		}
	}
	return "", nil
}
