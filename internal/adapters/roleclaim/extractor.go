package roleclaim

// Package roleclaim extracts the application role from a provider metadata
// bag. Identity providers disagree about where custom claims live
// (user_metadata.role, app_metadata.role, a flat role claim), so the lookup
// path is a configurable JMESPath expression.

import (
	"fmt"

	jmespath "github.com/jmespath-community/go-jmespath"

	"github.com/brightclass/identity-go/internal/domain/identity"
	"github.com/brightclass/identity-go/internal/ports"
)

// DefaultClaimPath matches the shape our own provider writes.
const DefaultClaimPath = "user_metadata.role"

// Extractor evaluates a JMESPath expression against the metadata bag and
// validates the result as a Role. It implements ports.RoleExtractor.
type Extractor struct {
	expr jmespath.JMESPath
}

var _ ports.RoleExtractor = (*Extractor)(nil)

// New compiles the claim path expression. An empty path falls back to
// DefaultClaimPath.
func New(claimPath string) (*Extractor, error) {
	if claimPath == "" {
		claimPath = DefaultClaimPath
	}
	expr, err := jmespath.Compile(claimPath)
	if err != nil {
		return nil, fmt.Errorf("compile role claim path %q: %w", claimPath, err)
	}
	return &Extractor{expr: expr}, nil
}

// MustNew is New for known-good expressions (defaults, tests).
func MustNew(claimPath string) *Extractor {
	e, err := New(claimPath)
	if err != nil {
		panic(err)
	}
	return e
}

// Role returns the extracted role and true, or false when the bag carries no
// valid role at the configured path.
func (e *Extractor) Role(metadata map[string]any) (identity.Role, bool) {
	if len(metadata) == 0 {
		return "", false
	}

	out, err := e.expr.Search(metadata)
	if err != nil || out == nil {
		return "", false
	}

	raw, ok := out.(string)
	if !ok {
		return "", false
	}
	role, err := identity.ParseRole(raw)
	if err != nil {
		return "", false
	}
	return role, true
}
