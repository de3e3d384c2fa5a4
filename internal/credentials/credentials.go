// Package credentials models the access/secret/session-token triple used
// to sign requests, in anonymous or credentialed mode. It is a leaf
// package per the dependency order in spec.md §2.
package credentials

// Value holds a fully resolved credential triple as returned by a
// Provider.
type Value struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
}

// IsAnonymous reports whether v carries no usable credentials.
func (v Value) IsAnonymous() bool {
	return v.AccessKeyID == "" && v.SecretAccessKey == ""
}

// Provider supplies Credentials on demand, allowing static keys,
// environment lookups, or rotating/STS-backed sources to share one
// interface.
type Provider interface {
	Get() (Value, error)
	IsExpired() bool
}

// Credentials wraps a Provider with caching so repeated Get calls against
// a non-expiring provider don't re-derive the value.
type Credentials struct {
	provider Provider
	cached   Value
	primed   bool
}

// New wraps the given provider.
func New(p Provider) *Credentials {
	return &Credentials{provider: p}
}

// Get returns the current credential value, consulting the provider when
// the cache is empty or the provider reports expiry.
func (c *Credentials) Get() (Value, error) {
	if c == nil || c.provider == nil {
		return Value{}, nil
	}
	if c.primed && !c.provider.IsExpired() {
		return c.cached, nil
	}
	v, err := c.provider.Get()
	if err != nil {
		return Value{}, err
	}
	c.cached = v
	c.primed = true
	return v, nil
}

// IsAnonymous reports whether the underlying provider yields no usable
// credentials (construction of unauthenticated/public-bucket clients).
func (c *Credentials) IsAnonymous() bool {
	if c == nil {
		return true
	}
	v, err := c.Get()
	if err != nil {
		return true
	}
	return v.IsAnonymous()
}
