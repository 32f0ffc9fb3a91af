package relationships

import "errors"

var (
	ErrCannotBlockSelf  = errors.New("cannot block yourself")
	ErrAlreadyBlocked   = errors.New("user is already blocked")
	ErrNotBlocked       = errors.New("user is not blocked")
	ErrStoreUnavailable = errors.New("relationships store unavailable")
)
