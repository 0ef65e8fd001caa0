// Package client provides the Screenhall Go SDK: an HTTP-backed identity
// provider and profile store for programs that talk to a remote
// screenhalld service.
//
// The Client satisfies the same provider contract the in-process directory
// does, so the auth flow, session observer, and profile reconciler work
// unchanged against a remote service:
//
//	c := client.MustNew("http://localhost:8080")
//	sess := session.Attach(c.AuthStream(), logger)
//	ident, err := c.VerifyCredentials(ctx, email, password)
package client
