// Package llm classifies email threads and drafts replies with Claude.
//
// A single request per thread carries a bounded-size excerpt and returns a
// structured verdict (category, confidence, summary, optional draft).
package llm
