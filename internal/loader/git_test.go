package loader

import (
	"context"
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/stretchr/testify/require"

	"github.com/alexisbeaulieu97/appflow/internal/model"
	apperrors "github.com/alexisbeaulieu97/appflow/pkg/errors"
)

func TestParseGitURL(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		raw     string
		want    gitLocation
		wantErr bool
	}{
		{
			name: "branch",
			raw:  "git+https://example.com/org/apps.git?ref=main&path=pipelines/main.json#/steps",
			want: gitLocation{repo: "https://example.com/org/apps.git", ref: plumbing.NewBranchReferenceName("main"), file: "pipelines/main.json"},
		},
		{
			name: "tag",
			raw:  "git+ssh://git@example.com/org/apps.git?tag=v1.2.0&path=app.yaml",
			want: gitLocation{repo: "ssh://git@example.com/org/apps.git", ref: plumbing.NewTagReferenceName("v1.2.0"), file: "app.yaml"},
		},
		{
			name: "default head",
			raw:  "git+https://example.com/apps.git?path=/nested/../app.json",
			want: gitLocation{repo: "https://example.com/apps.git", file: "app.json"},
		},
		{
			name:    "no path",
			raw:     "git+https://example.com/apps.git?ref=main",
			wantErr: true,
		},
		{
			name:    "not git",
			raw:     "https://example.com/apps.git?path=app.json",
			wantErr: true,
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			u, err := url.Parse(tc.raw)
			require.NoError(t, err)

			got, err := parseGitURL(u)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestResolveGitURL(t *testing.T) {
	t.Parallel()

	base, err := url.Parse("git+https://example.com/apps.git?ref=main&path=pipelines/main.json")
	require.NoError(t, err)

	cases := []struct {
		ref  string
		want string
	}{
		{ref: "tools/align.json", want: "git+https://example.com/apps.git?path=pipelines%2Ftools%2Falign.json&ref=main"},
		{ref: "../apps/align.json#/schema", want: "git+https://example.com/apps.git?path=apps%2Falign.json&ref=main#/schema"},
		{ref: "/root.json", want: "git+https://example.com/apps.git?path=root.json&ref=main"},
		{ref: "#/definitions/a", want: "git+https://example.com/apps.git?path=pipelines%2Fmain.json&ref=main#/definitions/a"},
		{ref: "https://other.example.com/x.json", want: "https://other.example.com/x.json"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.ref, func(t *testing.T) {
			t.Parallel()

			got, err := resolveURL(base, tc.ref)
			require.NoError(t, err)
			require.Equal(t, tc.want, got.String())
		})
	}
}

func TestLoadFromGit(t *testing.T) {
	t.Parallel()

	var clones []*git.CloneOptions
	fetcher := newGitFetcher()
	fetcher.clone = func(_ context.Context, dir string, opts *git.CloneOptions) error {
		clones = append(clones, opts)
		files := map[string]string{
			"pipelines/main.json": `{
  "$$type": "app/pipeline",
  "apps": {"align": {"$ref": "../apps/aligner.json"}},
  "steps": [{"id": "align", "app": "align", "inputs": {"reads": "fastq"}}]
}`,
			"apps/aligner.json": alignerApp,
		}
		for name, content := range files {
			full := filepath.Join(dir, filepath.FromSlash(name))
			if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
				return err
			}
			if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
				return err
			}
		}
		return nil
	}

	l, err := New(WithGit(true))
	require.NoError(t, err)
	l.git = fetcher
	for _, scheme := range gitSchemes {
		l.fetchers[scheme] = fetcher
	}

	m, err := l.LoadModel(context.Background(), "git+https://example.com/apps.git?ref=main&path=pipelines/main.json")
	require.NoError(t, err)
	require.Equal(t, model.TypePipeline, m.Type())
	require.NoError(t, m.Validate())

	require.Len(t, clones, 1)
	require.Equal(t, "https://example.com/apps.git", clones[0].URL)
	require.Equal(t, plumbing.NewBranchReferenceName("main"), clones[0].ReferenceName)
	require.Equal(t, 1, clones[0].Depth)
	require.True(t, clones[0].SingleBranch)

	require.Len(t, fetcher.checkouts, 1)
	var checkout string
	for _, dir := range fetcher.checkouts {
		checkout = dir
	}
	require.DirExists(t, checkout)

	require.NoError(t, l.Close())
	require.NoDirExists(t, checkout)
	require.Empty(t, fetcher.checkouts)
}

func TestGitCloneFailureIsResourceError(t *testing.T) {
	t.Parallel()

	fetcher := newGitFetcher()
	fetcher.clone = func(context.Context, string, *git.CloneOptions) error {
		return errors.New("authentication required")
	}

	u, err := url.Parse("git+https://example.com/private.git?path=app.json")
	require.NoError(t, err)

	_, err = fetcher.Fetch(context.Background(), u)
	var resourceErr *apperrors.ResourceError
	require.ErrorAs(t, err, &resourceErr)
	require.Equal(t, "https://example.com/private.git", resourceErr.URI)
	require.ErrorContains(t, err, "authentication required")
	require.Empty(t, fetcher.checkouts)
}
