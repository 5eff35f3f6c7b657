// Package multitenancy carries the calling organization through a context.
// The organization ID is reported to the provider as the request user and
// attached to log lines and spans.
package multitenancy

import (
	"context"
	"errors"
	"strings"
)

type contextKey string

const orgIDKey contextKey = "org_id"

// AttributeKey names the organization ID on log lines, spans and traces
const AttributeKey = "org_id"

// ErrNoOrgID is returned when no organization ID is found in the context
var ErrNoOrgID = errors.New("no organization ID found in context")

// WithOrgID returns ctx carrying orgID. Surrounding whitespace is dropped;
// a blank ID leaves ctx, and any organization it already carries, unchanged.
func WithOrgID(ctx context.Context, orgID string) context.Context {
	orgID = strings.TrimSpace(orgID)
	if orgID == "" {
		return ctx
	}
	return context.WithValue(ctx, orgIDKey, orgID)
}

// GetOrgID returns the organization ID from the context
func GetOrgID(ctx context.Context) (string, error) {
	orgID, ok := ctx.Value(orgIDKey).(string)
	if !ok || orgID == "" {
		return "", ErrNoOrgID
	}
	return orgID, nil
}

// HasOrgID returns true if the context has an organization ID
func HasOrgID(ctx context.Context) bool {
	_, err := GetOrgID(ctx)
	return err == nil
}

// Attributes returns the organization as telemetry attributes, or nil
// when ctx carries none
func Attributes(ctx context.Context) map[string]string {
	orgID, err := GetOrgID(ctx)
	if err != nil {
		return nil
	}
	return map[string]string{AttributeKey: orgID}
}
