package credentials

// staticProvider returns a fixed Value forever; used for caller-supplied
// access/secret/session keys and for the anonymous (all-empty) case.
type staticProvider struct {
	value Value
}

// NewStatic builds a Credentials backed by a fixed access/secret/session
// triple. Passing empty accessKeyID and secretAccessKey yields anonymous
// credentials.
func NewStatic(accessKeyID, secretAccessKey, sessionToken string) *Credentials {
	return New(&staticProvider{value: Value{
		AccessKeyID:     accessKeyID,
		SecretAccessKey: secretAccessKey,
		SessionToken:    sessionToken,
	}})
}

// NewAnonymous builds a Credentials carrying no usable keys, used for
// unauthenticated GET access to public buckets/objects.
func NewAnonymous() *Credentials {
	return New(&staticProvider{})
}

func (s *staticProvider) Get() (Value, error) { return s.value, nil }
func (s *staticProvider) IsExpired() bool     { return false }
