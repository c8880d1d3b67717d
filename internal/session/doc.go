// Package session implements the in-memory registry of authenticated
// caller sessions used in remote-session mode.
//
// Each session is identified by an opaque 256-bit random token and holds
// the validated Apstra credentials plus the cached upstream AuthToken.
// Sessions expire after a period of inactivity; expiry is enforced lazily
// at lookup time and by a background sweeper. The store is the only piece
// of shared mutable state in the server and every operation on it is
// serialized by one mutex. No store operation performs network I/O.
package session
