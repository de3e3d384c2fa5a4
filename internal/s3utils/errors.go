package s3utils

// InvalidArgumentError marks a caller-side precondition violation detected
// during validation or encoding, before any request is built. The request
// pipeline's error taxonomy (see package-level errors.go in s3core) maps
// this to its ArgumentError kind via errors.As.
type InvalidArgumentError struct {
	Message string
}

func (e InvalidArgumentError) Error() string { return e.Message }

// ErrInvalidBucketName returns an InvalidArgumentError for a bucket name
// rejected by CheckValidBucketNameStrict.
func ErrInvalidBucketName(msg string) error { return InvalidArgumentError{Message: msg} }

// ErrInvalidObjectName returns an InvalidArgumentError for an object key
// rejected by CheckValidObjectName/CheckValidObjectNamePrefix.
func ErrInvalidObjectName(msg string) error { return InvalidArgumentError{Message: msg} }
