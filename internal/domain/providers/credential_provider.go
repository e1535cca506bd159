package providers

import (
	"context"
)

// CredentialProvider yields the bearer credential to attach to an outbound
// call. The credential travels in the request context rather than in shared
// mutable state, so each operation carries exactly the token of the operator
// that triggered it.
type CredentialProvider interface {
	// Token returns the bearer token for this context, or an unauthorized
	// error when none is present.
	Token(ctx context.Context) (string, error)
}

type contextTokenKey struct{}

// WithToken stores a bearer token in the context.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, contextTokenKey{}, token)
}

// TokenFromContext reads a bearer token previously stored with WithToken.
func TokenFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(contextTokenKey{}).(string)
	return token, ok && token != ""
}

// ContextCredentialProvider reads the operator's bearer token from the
// request context populated by the auth middleware.
type ContextCredentialProvider struct{}

// Token implements CredentialProvider.
func (ContextCredentialProvider) Token(ctx context.Context) (string, error) {
	token, ok := TokenFromContext(ctx)
	if !ok {
		return "", ErrNoCredential
	}
	return token, nil
}
