// Package keygen generates SSH deploy keys.
//
// Keys are produced as an OpenSSH private key (PEM) and an authorized_keys
// line, the formats git hosts expect when a deploy key is registered for
// the GitOps bootstrap.
package keygen
