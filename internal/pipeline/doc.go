// Package pipeline coordinates triage runs over the mail gateway and the
// model client.
//
// A run moves through pending, fetching, classifying and ends in ready or
// failed. Thread fetching is sequential to keep page ordering stable;
// classification fans out concurrently up to a configurable limit. Failures
// local to one thread are recorded on the run and never abort it.
package pipeline
