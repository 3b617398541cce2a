// Package transfer moves the bytes of a selected format onto local disk.
//
// Engine.Fetch streams into "<dest>.part" and renames on completion, so the
// destination path never holds a partial file. A later call resumes from the
// bytes already on disk with a Range request. Large files on servers that
// accept ranges are split into segments fetched concurrently, bounded by the
// configured connection limit. Proxy, bandwidth limit, basic credentials, and
// Netscape cookie files are applied per job.
//
// Fetch makes exactly one attempt. HTTP 401 and 403 are reported as
// services.ErrAuthentication; every other network failure is
// services.ErrTransfer so the caller's retry policy can decide.
package transfer
