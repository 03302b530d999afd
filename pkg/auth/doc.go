// Package auth guards the query endpoint.
//
// A Chain asks its authenticators in turn. Each one votes Yes with an
// identity, No with an error, or abstains when it does not recognise the
// request's credentials. The chain's fallback decides requests nobody
// claimed. Middleware applies the chain and the per-tier rate limiter in
// front of the relay; health, readiness and metrics endpoints bypass it.
package auth
