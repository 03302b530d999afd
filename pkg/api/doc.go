// Package api defines the wire types of the twinbot query endpoint.
//
// The endpoint accepts a [QueryRequest] carrying free text and answers with
// a [QueryResponse] that combines the chatbot reply with the output of the
// digital twin simulation. Failures that surface to HTTP clients are
// described by [APIError] and serialized inside an [ErrorResponse].
//
// The package performs no I/O and depends only on the standard library.
package api
