// Package relay answers queries: it asks the chatbot for a reply, runs the
// digital-twin simulation, and combines both into one response.
//
// The reply is always computed before the simulation process starts. How
// an invocation failure of the simulation reaches the client is controlled
// by FailureMode.
package relay
