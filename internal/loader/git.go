package loader

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/alexisbeaulieu97/appflow/internal/logger"
	apperrors "github.com/alexisbeaulieu97/appflow/pkg/errors"
)

const gitSchemePrefix = "git+"

var gitSchemes = []string{"git+https", "git+http", "git+ssh", "git+file"}

func isGitScheme(scheme string) bool {
	return strings.HasPrefix(strings.ToLower(scheme), gitSchemePrefix)
}

type cloneFunc func(ctx context.Context, dir string, opts *git.CloneOptions) error

func plainClone(ctx context.Context, dir string, opts *git.CloneOptions) error {
	_, err := git.PlainCloneContext(ctx, dir, false, opts)
	return err
}

// gitFetcher reads documents from shallow clones. Locations look like
//
//	git+https://host/org/repo.git?ref=<branch>&path=<file>
//
// where ref may be replaced by tag, and both default to the remote HEAD.
type gitFetcher struct {
	clone     cloneFunc
	checkouts map[string]string
	log       *logger.Logger
}

func newGitFetcher() *gitFetcher {
	return &gitFetcher{clone: plainClone, checkouts: make(map[string]string)}
}

type gitLocation struct {
	repo string
	ref  plumbing.ReferenceName
	file string
}

func parseGitURL(location *url.URL) (gitLocation, error) {
	if !isGitScheme(location.Scheme) {
		return gitLocation{}, fmt.Errorf("%w: %q is not a git url", ErrUnsupportedScheme, location.Scheme)
	}

	repo := *location
	repo.Scheme = strings.TrimPrefix(strings.ToLower(location.Scheme), gitSchemePrefix)
	repo.RawQuery = ""
	repo.Fragment = ""
	repo.RawFragment = ""

	query := location.Query()
	loc := gitLocation{repo: repo.String(), file: strings.TrimPrefix(path.Clean("/"+query.Get("path")), "/")}
	switch {
	case query.Get("tag") != "":
		loc.ref = plumbing.NewTagReferenceName(query.Get("tag"))
	case query.Get("ref") != "":
		loc.ref = plumbing.NewBranchReferenceName(query.Get("ref"))
	}
	if loc.file == "" {
		return gitLocation{}, fmt.Errorf("git url %s has no path parameter", location.Redacted())
	}
	return loc, nil
}

// resolveGitURL resolves a host-less reference found in a git document. The
// result stays in the same repository and revision; relative paths are taken
// from the directory of the referring file and absolute ones from the
// repository root.
func resolveGitURL(base *url.URL, ref *url.URL) *url.URL {
	resolved := *base
	query := base.Query()
	switch {
	case ref.Path == "":
	case strings.HasPrefix(ref.Path, "/"):
		query.Set("path", strings.TrimPrefix(path.Clean(ref.Path), "/"))
	default:
		query.Set("path", strings.TrimPrefix(path.Join("/", path.Dir(query.Get("path")), ref.Path), "/"))
	}
	resolved.RawQuery = query.Encode()
	resolved.Fragment = ref.Fragment
	resolved.RawFragment = ref.RawFragment
	return &resolved
}

func (f *gitFetcher) Fetch(ctx context.Context, location *url.URL) ([]byte, error) {
	loc, err := parseGitURL(location)
	if err != nil {
		return nil, apperrors.NewResourceError(location.Redacted(), "", err)
	}

	key := loc.repo + "@" + loc.ref.String()
	dir, ok := f.checkouts[key]
	if !ok {
		dir, err = os.MkdirTemp("", "appflow-git-")
		if err != nil {
			return nil, apperrors.NewResourceError(loc.repo, "create checkout directory", err)
		}

		opts := &git.CloneOptions{
			URL:          loc.repo,
			Depth:        1,
			SingleBranch: true,
		}
		if loc.ref != "" {
			opts.ReferenceName = loc.ref
		}

		f.log.WithFields(map[string]any{"repo": loc.repo, "ref": loc.ref.Short()}).Debug("cloning repository")
		if err := f.clone(ctx, dir, opts); err != nil {
			_ = os.RemoveAll(dir)
			return nil, apperrors.NewResourceError(loc.repo, "clone repository", err)
		}
		f.checkouts[key] = dir
	}

	data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(loc.file)))
	if err != nil {
		return nil, apperrors.NewResourceError(location.Redacted(), "", err)
	}
	return data, nil
}

// Close removes every checkout.
func (f *gitFetcher) Close() error {
	var errs []error
	for key, dir := range f.checkouts {
		if err := os.RemoveAll(dir); err != nil {
			errs = append(errs, fmt.Errorf("remove checkout %s: %w", dir, err))
		}
		delete(f.checkouts, key)
	}
	return errors.Join(errs...)
}
