package resolver

import "errors"

// Per-source failures surfaced by extraction sources. The resolver contains
// them inside its source-advance loop; none of them escape Resolve.
var (
	// ErrAuthExchange means the credential cache could not obtain a token
	// for a provider, so the provider attempt was aborted.
	ErrAuthExchange = errors.New("credential exchange failed")

	// ErrProviderAuth means the provider rejected a freshly exchanged token;
	// the provider is skipped for this resolution.
	ErrProviderAuth = errors.New("provider rejected credentials")

	// ErrProviderUnavailable covers transport failures: timeouts, connection
	// errors and server-side 5xx responses.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrMalformedResponse means the provider answered but the payload could
	// not be turned into a single usable candidate.
	ErrMalformedResponse = errors.New("malformed provider response")
)
