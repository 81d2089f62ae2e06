package loader

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/alexisbeaulieu97/appflow/internal/model"
	apperrors "github.com/alexisbeaulieu97/appflow/pkg/errors"
)

const maxDocumentSize = 32 << 20

type fileFetcher struct{}

func (fileFetcher) Fetch(ctx context.Context, location *url.URL) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if location.Host != "" && location.Host != "localhost" {
		return nil, apperrors.NewResourceError(location.String(), "remote file host", nil)
	}
	data, err := os.ReadFile(location.Path)
	if err != nil {
		return nil, apperrors.NewResourceError(location.String(), "", err)
	}
	return data, nil
}

type httpFetcher struct {
	client *http.Client
}

func (f *httpFetcher) Fetch(ctx context.Context, location *url.URL) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location.String(), nil)
	if err != nil {
		return nil, apperrors.NewResourceError(location.String(), "", err)
	}
	req.Header.Set("Accept", "application/json, application/yaml;q=0.9, */*;q=0.1")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, apperrors.NewResourceError(location.String(), "", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apperrors.NewResourceError(location.String(), fmt.Sprintf("HTTP %d", resp.StatusCode), nil)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize+1))
	if err != nil {
		return nil, apperrors.NewResourceError(location.String(), "read body", err)
	}
	if len(data) > maxDocumentSize {
		return nil, apperrors.NewResourceError(location.String(), "document too large", nil)
	}
	return data, nil
}

var yamlLineRegex = regexp.MustCompile(`line (\d+)`)

// parseDocument decodes JSON or YAML into a generic document tree. JSON is
// recognised by extension or by a leading brace or bracket.
func parseDocument(location string, data []byte) (any, error) {
	if isJSON(location, data) {
		var doc any
		decoder := json.NewDecoder(bytes.NewReader(data))
		decoder.UseNumber()
		if err := decoder.Decode(&doc); err != nil {
			return nil, apperrors.NewParseError(location, jsonErrorLine(data, err), err)
		}
		return jsonNumbers(doc), nil
	}

	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, apperrors.NewParseError(location, extractLine(err), err)
	}
	return model.Normalize(doc), nil
}

// jsonNumbers keeps integer literals as int and turns the rest into float64,
// the same split the YAML decoder makes.
func jsonNumbers(value any) any {
	switch v := value.(type) {
	case map[string]any:
		for key, item := range v {
			v[key] = jsonNumbers(item)
		}
		return v
	case []any:
		for i, item := range v {
			v[i] = jsonNumbers(item)
		}
		return v
	case json.Number:
		if i, err := strconv.Atoi(v.String()); err == nil {
			return i
		}
		if f, err := v.Float64(); err == nil {
			return f
		}
		return v.String()
	default:
		return value
	}
}

func isJSON(location string, data []byte) bool {
	if u, err := url.Parse(location); err == nil {
		name := u.Path
		if p := u.Query().Get("path"); p != "" {
			name = p
		}
		switch strings.ToLower(path.Ext(name)) {
		case ".json":
			return true
		case ".yaml", ".yml":
			return false
		}
	}
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[')
}

func jsonErrorLine(data []byte, err error) int {
	var offset int64
	switch e := err.(type) {
	case *json.SyntaxError:
		offset = e.Offset
	case *json.UnmarshalTypeError:
		offset = e.Offset
	default:
		return 0
	}
	if offset > int64(len(data)) {
		offset = int64(len(data))
	}
	return bytes.Count(data[:offset], []byte("\n")) + 1
}

func extractLine(err error) int {
	if err == nil {
		return 0
	}

	matches := yamlLineRegex.FindStringSubmatch(err.Error())
	if len(matches) != 2 {
		return 0
	}

	var line int
	if _, scanErr := fmt.Sscanf(matches[1], "%d", &line); scanErr != nil {
		return 0
	}
	return line
}
