package apikey

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"HappyPlaceLocal/internal/domain"
)

type optionStub map[string]string

func (o optionStub) Option(_ context.Context, name string) (string, bool, error) {
	v, ok := o[name]
	return v, ok, nil
}

func (o optionStub) SetOption(_ context.Context, name, value string) error {
	o[name] = value
	return nil
}

type failingProvider struct{}

func (failingProvider) Name() string { return "broken" }

func (failingProvider) Key(context.Context) (string, error) {
	return "", errors.New("unavailable")
}

func writeKeyFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hpl.json")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write key file: %v", err)
	}
	return path
}

func TestResolverPriorityOrder(t *testing.T) {
	t.Parallel()

	path := writeKeyFile(t, `{"google_places_api_key":"from-file"}`)
	opts := optionStub{DefaultOptionName: "from-option"}
	ctx := context.Background()

	r := NewResolver(ConstProvider{Value: "from-const"}, OptionProvider{Store: opts}, FileProvider{Path: path})
	key, src, err := r.Resolve(ctx)
	if err != nil || key != "from-const" || src != "constant" {
		t.Fatalf("expected constant to win, got %q from %q (%v)", key, src, err)
	}

	r = NewResolver(ConstProvider{}, OptionProvider{Store: opts}, FileProvider{Path: path})
	key, src, _ = r.Resolve(ctx)
	if key != "from-option" || src != "option" {
		t.Fatalf("expected option to win, got %q from %q", key, src)
	}

	r = NewResolver(ConstProvider{}, OptionProvider{Store: optionStub{}}, FileProvider{Path: path})
	key, src, _ = r.Resolve(ctx)
	if key != "from-file" || src != "file" {
		t.Fatalf("expected file to win, got %q from %q", key, src)
	}
}

func TestResolverSkipsBrokenProviders(t *testing.T) {
	t.Parallel()

	path := writeKeyFile(t, `{"places_api_key":"fallback"}`)
	r := NewResolver(failingProvider{}, FileProvider{Path: path})

	key, src, err := r.Resolve(context.Background())
	if err != nil || key != "fallback" || src != "file" {
		t.Fatalf("expected file fallback, got %q from %q (%v)", key, src, err)
	}
}

func TestResolverReportsMissingKey(t *testing.T) {
	t.Parallel()

	r := NewResolver(ConstProvider{}, FileProvider{Path: filepath.Join(t.TempDir(), "absent.json")}, failingProvider{})
	_, _, err := r.Resolve(context.Background())
	if !errors.Is(err, domain.ErrNoAPIKey) {
		t.Fatalf("expected ErrNoAPIKey, got %v", err)
	}
}

func TestFileProviderRejectsMalformedJSON(t *testing.T) {
	t.Parallel()

	path := writeKeyFile(t, `{not json`)
	if _, err := (FileProvider{Path: path}).Key(context.Background()); err == nil {
		t.Fatal("expected parse error")
	}
}
