// Package ssh is the remote transport behind the command dispatcher.
//
// A [Client] holds one authenticated connection per host and opens a fresh
// session for every command, reporting the exit status separately from
// transport errors. Files are uploaded by streaming them into a remote
// shell, so no SFTP subsystem is required on the target. [Transport] builds
// clients from inventory hosts and implements dispatch.Transport.
//
// Security: host key verification is disabled unless a HostKeyCallback is
// configured, matching the first-contact nature of node provisioning.
package ssh
