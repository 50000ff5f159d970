// Package store adapts the abstract register operations to the system
// under test, an etcd-style KV store speaking the v2 keys HTTP API.
//
// The adapter's one hard job is outcome classification. Every failure
// must land in exactly one bucket: a read timeout cannot have changed
// state and is a definite fail; a write or cas timeout may have been
// applied and is recorded as indeterminate (info); a compare-failed or
// key-missing response is a definite fail. Anything else, a protocol
// surprise or a transport error that is not a timeout, is returned as an
// error and stops the owning worker rather than being guessed at, since
// a wrong guess here silently corrupts the history the checker trusts.
package store
