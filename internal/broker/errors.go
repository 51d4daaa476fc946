package broker

import "errors"

// ErrDuplicateSession is returned by Connect when key is already
// connected (spec.md's DuplicateSession error kind, §7).
var ErrDuplicateSession = errors.New("broker: duplicate session")

// ErrUnknownSession is returned by operations addressed to a key with no
// live session.
var ErrUnknownSession = errors.New("broker: unknown session")
