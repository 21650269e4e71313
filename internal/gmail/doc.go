// Package gmail is the mail gateway: paginated thread retrieval, body and
// header extraction, and reply sending over the Gmail API.
//
// Threads are fetched as immutable snapshots ordered the way the API lists
// them. Every network call carries a per-request timeout and is retried
// under a shared policy when the failure is transient.
package gmail
