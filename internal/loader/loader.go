// Package loader fetches app and pipeline documents, resolves their "$ref"
// references and decodes the result into models.
//
// A reference is a URL resolved against the referring document. Supported
// schemes are file, http and https, plus git+https and git+ssh when enabled
// with WithGit. The URL fragment is a JSON pointer into the fetched document.
// A reference object may carry a "checksum" sibling of the form
// "<md5|sha1>$<hexdigest>" that is verified against the referenced fragment.
package loader

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/alexisbeaulieu97/appflow/internal/logger"
	"github.com/alexisbeaulieu97/appflow/internal/model"
	apperrors "github.com/alexisbeaulieu97/appflow/pkg/errors"
)

const (
	refField      = "$ref"
	checksumField = "checksum"
)

// ErrUnsupportedScheme is returned for references no fetcher handles.
var ErrUnsupportedScheme = errors.New("unsupported scheme")

// Fetcher retrieves the raw bytes of a document.
type Fetcher interface {
	Fetch(ctx context.Context, location *url.URL) ([]byte, error)
}

// Loader resolves and caches documents. A Loader is not safe for concurrent
// use; create one per goroutine.
type Loader struct {
	base     *url.URL
	baseRef  string
	fetchers map[string]Fetcher
	client   *http.Client
	git      *gitFetcher
	log      *logger.Logger

	fetched   map[string]any
	resolved  map[string]any
	resolving map[string]struct{}
}

// Option configures a Loader.
type Option func(*Loader)

// WithHTTPClient sets the client used for http and https references.
func WithHTTPClient(client *http.Client) Option {
	return func(l *Loader) {
		if client != nil {
			l.client = client
		}
	}
}

// WithGit enables git+https and git+ssh references. Repositories are
// shallow-cloned into temporary directories removed by Close.
func WithGit(enabled bool) Option {
	return func(l *Loader) {
		if enabled {
			l.git = newGitFetcher()
		} else {
			l.git = nil
		}
	}
}

// WithLogger routes debug and warning output to log.
func WithLogger(log *logger.Logger) Option {
	return func(l *Loader) {
		l.log = log
	}
}

// WithBaseURL sets the URL relative references are resolved against. It
// defaults to the current working directory.
func WithBaseURL(base string) Option {
	return func(l *Loader) {
		l.baseRef = base
	}
}

// WithFetcher registers f for scheme, replacing any built-in fetcher.
func WithFetcher(scheme string, f Fetcher) Option {
	return func(l *Loader) {
		l.fetchers[strings.ToLower(scheme)] = f
	}
}

// New creates a Loader.
func New(opts ...Option) (*Loader, error) {
	l := &Loader{
		fetchers:  make(map[string]Fetcher),
		client:    &http.Client{Timeout: 30 * time.Second},
		fetched:   make(map[string]any),
		resolved:  make(map[string]any),
		resolving: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}

	base, err := parseBase(l.baseRef)
	if err != nil {
		return nil, err
	}
	l.base = base

	if _, ok := l.fetchers["file"]; !ok {
		l.fetchers["file"] = fileFetcher{}
	}
	web := &httpFetcher{client: l.client}
	for _, scheme := range []string{"http", "https"} {
		if _, ok := l.fetchers[scheme]; !ok {
			l.fetchers[scheme] = web
		}
	}
	if l.git != nil {
		l.git.log = l.log
		for _, scheme := range gitSchemes {
			if _, ok := l.fetchers[scheme]; !ok {
				l.fetchers[scheme] = l.git
			}
		}
	}

	return l, nil
}

func parseBase(ref string) (*url.URL, error) {
	if ref == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("determine working directory: %w", err)
		}
		dir := filepath.ToSlash(wd)
		if !strings.HasPrefix(dir, "/") {
			dir = "/" + dir
		}
		return &url.URL{Scheme: "file", Path: strings.TrimSuffix(dir, "/") + "/"}, nil
	}
	base, err := url.Parse(ref)
	if err != nil {
		return nil, fmt.Errorf("parse base url %q: %w", ref, err)
	}
	return base, nil
}

// Close releases resources held by fetchers, such as cloned repositories.
func (l *Loader) Close() error {
	if l == nil || l.git == nil {
		return nil
	}
	return l.git.Close()
}

// Load fetches ref and returns the referenced fragment with every nested
// reference resolved. The result is a copy the caller may modify.
func (l *Loader) Load(ctx context.Context, ref string) (any, error) {
	doc, err := l.resolveRef(ctx, model.Document{refField: ref}, l.base)
	if err != nil {
		return nil, err
	}
	return model.DeepCopy(doc), nil
}

// LoadModel loads ref and decodes it. Pipelines receive the loader's logger.
func (l *Loader) LoadModel(ctx context.Context, ref string) (model.Model, error) {
	doc, err := l.Load(ctx, ref)
	if err != nil {
		return nil, err
	}
	m, err := model.Decode(doc)
	if err != nil {
		return nil, err
	}
	if pipeline, ok := m.(*model.Pipeline); ok {
		pipeline.SetLogger(l.log)
	}
	return m, nil
}

func (l *Loader) resolveRef(ctx context.Context, obj model.Document, base *url.URL) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ref, ok := obj[refField].(string)
	if !ok {
		return nil, apperrors.NewValidationError(refField, fmt.Sprintf("%s must be a string", refField), nil)
	}
	target, err := resolveURL(base, ref)
	if err != nil {
		return nil, err
	}
	key := target.String()

	if doc, ok := l.resolved[key]; ok {
		return doc, nil
	}
	if _, busy := l.resolving[key]; busy {
		return nil, apperrors.NewValidationError(refField, fmt.Sprintf("circular reference for url %s", key), nil)
	}
	l.resolving[key] = struct{}{}
	defer delete(l.resolving, key)

	docURL := *target
	docURL.Fragment = ""
	docURL.RawFragment = ""

	document, err := l.fetch(ctx, &docURL)
	if err != nil {
		return nil, err
	}
	fragment, err := resolvePointer(document, target.Fragment)
	if err != nil {
		return nil, apperrors.NewValidationError(refField, err.Error(), err)
	}
	fragment = model.DeepCopy(fragment)

	if err := verifyChecksum(obj[checksumField], fragment); err != nil {
		return nil, err
	}

	result, err := l.resolveAll(ctx, fragment, &docURL)
	if err != nil {
		return nil, err
	}
	l.resolved[key] = result
	return result, nil
}

// resolveAll replaces every reference object inside doc, in place.
func (l *Loader) resolveAll(ctx context.Context, doc any, base *url.URL) (any, error) {
	switch val := doc.(type) {
	case []any:
		for i, item := range val {
			resolved, err := l.resolveAll(ctx, item, base)
			if err != nil {
				return nil, err
			}
			val[i] = resolved
		}
		return val, nil
	case model.Document:
		if _, ok := val[refField]; ok {
			return l.resolveRef(ctx, val, base)
		}
		for key, item := range val {
			resolved, err := l.resolveAll(ctx, item, base)
			if err != nil {
				return nil, err
			}
			val[key] = resolved
		}
		return val, nil
	default:
		return doc, nil
	}
}

func (l *Loader) fetch(ctx context.Context, location *url.URL) (any, error) {
	key := location.String()
	if doc, ok := l.fetched[key]; ok {
		return doc, nil
	}

	fetcher, ok := l.fetchers[strings.ToLower(location.Scheme)]
	if !ok {
		return nil, fmt.Errorf("%w: %q in %s", ErrUnsupportedScheme, location.Scheme, key)
	}

	l.log.WithFields(map[string]any{"url": key}).Debug("fetching document")
	data, err := fetcher.Fetch(ctx, location)
	if err != nil {
		var resourceErr *apperrors.ResourceError
		if errors.As(err, &resourceErr) {
			return nil, err
		}
		return nil, apperrors.NewResourceError(key, "", err)
	}

	doc, err := parseDocument(key, data)
	if err != nil {
		return nil, err
	}
	l.fetched[key] = doc
	return doc, nil
}

// resolveURL resolves ref against base. References inside a git document are
// resolved against the directory of its path parameter so that relative
// references stay inside the same repository and revision.
func resolveURL(base *url.URL, ref string) (*url.URL, error) {
	parsed, err := url.Parse(ref)
	if err != nil {
		return nil, apperrors.NewValidationError(refField, fmt.Sprintf("bad reference %q", ref), err)
	}
	if base == nil || parsed.IsAbs() {
		return parsed, nil
	}
	if isGitScheme(base.Scheme) && parsed.Host == "" {
		return resolveGitURL(base, parsed), nil
	}
	return base.ResolveReference(parsed), nil
}
