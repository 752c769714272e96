// Package credentials resolves the LLM API key used for a lab's audits.
package credentials

import (
	"context"
	"log/slog"
	"strings"
)

// LabKeyLookup returns the API key stored for a lab, or "" when the lab has none.
type LabKeyLookup interface {
	LabAPIKey(ctx context.Context, labID string) (string, error)
}

// Resolver prefers a lab-specific key and falls back to the process-wide
// default. A failing lookup is logged and treated as "no lab key".
type Resolver struct {
	labKeys  LabKeyLookup
	fallback string
	log      *slog.Logger
}

// NewResolver creates a Resolver. labKeys may be nil when no key store is configured.
func NewResolver(labKeys LabKeyLookup, fallback string, log *slog.Logger) *Resolver {
	if log == nil {
		log = slog.Default()
	}
	return &Resolver{labKeys: labKeys, fallback: strings.TrimSpace(fallback), log: log}
}

// ResolveKey returns the key to use for labID. An empty result means no key
// is configured anywhere.
func (r *Resolver) ResolveKey(ctx context.Context, labID string) (string, error) {
	if r.labKeys != nil && labID != "" {
		key, err := r.labKeys.LabAPIKey(ctx, labID)
		switch {
		case err != nil:
			if ctxErr := ctx.Err(); ctxErr != nil {
				return "", ctxErr
			}
			r.log.Warn("lab key lookup failed, using default key", "lab_id", labID, "error", err)
		case strings.TrimSpace(key) != "":
			return strings.TrimSpace(key), nil
		}
	}
	return r.fallback, nil
}
