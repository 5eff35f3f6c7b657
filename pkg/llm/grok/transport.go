package grok

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/tidwall/sjson"
)

type bodyPatchKey struct{}

// contextWithBodyPatches attaches top-level JSON fields that the transport
// writes into the outgoing request body
func contextWithBodyPatches(ctx context.Context, patches map[string]interface{}) context.Context {
	return context.WithValue(ctx, bodyPatchKey{}, patches)
}

func bodyPatchesFromContext(ctx context.Context) map[string]interface{} {
	patches, _ := ctx.Value(bodyPatchKey{}).(map[string]interface{})
	return patches
}

// bodyPatchTransport sets extra top-level fields on JSON request bodies.
// The typed SDK request has no field for them.
type bodyPatchTransport struct {
	base http.RoundTripper
}

// withBodyPatches returns a copy of httpClient whose transport applies body patches
func withBodyPatches(httpClient *http.Client) *http.Client {
	var out http.Client
	if httpClient != nil {
		out = *httpClient
	}
	base := out.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	out.Transport = &bodyPatchTransport{base: base}
	return &out
}

func (t *bodyPatchTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	patches := bodyPatchesFromContext(req.Context())
	if len(patches) == 0 || req.Body == nil || req.Body == http.NoBody {
		return t.base.RoundTrip(req)
	}

	body, err := io.ReadAll(req.Body)
	_ = req.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to read request body: %w", err)
	}

	body, err = patchBody(body, patches)
	if err != nil {
		return nil, err
	}

	patched := req.Clone(req.Context())
	patched.Body = io.NopCloser(bytes.NewReader(body))
	patched.ContentLength = int64(len(body))
	patched.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(body)), nil
	}

	return t.base.RoundTrip(patched)
}

// patchBody sets every patch as a top-level field of the JSON document.
// Keys are applied in sorted order so the output is deterministic.
func patchBody(body []byte, patches map[string]interface{}) ([]byte, error) {
	keys := make([]string, 0, len(patches))
	for k := range patches {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var err error
	for _, k := range keys {
		body, err = sjson.SetBytes(body, escapePathKey(k), patches[k])
		if err != nil {
			return nil, fmt.Errorf("failed to set request field %q: %w", k, err)
		}
	}
	return body, nil
}

var pathKeyEscaper = strings.NewReplacer(`\`, `\\`, `.`, `\.`, `*`, `\*`, `?`, `\?`, `|`, `\|`, `#`, `\#`, `@`, `\@`)

// escapePathKey makes k a literal sjson path segment
func escapePathKey(k string) string {
	return pathKeyEscaper.Replace(k)
}
