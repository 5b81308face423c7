// Package remotefile writes files on inventory hosts idempotently.
//
// [Mutator.WriteFile] compares content hashes before touching the target,
// stages changed content through a uniquely named temporary file, keeps a
// timestamped backup of whatever it replaces, and moves the new file into
// place with a single rename. [Mutator.EnsureLine] builds line-level edits
// on top of it.
package remotefile
