// Package tasks contains the provisioning tasks calcifer runs and the
// registry that chains them into goals.
//
// Every task is a sequence of named sub-steps run with task.Sequence, so the
// first failing step ends the task and its message becomes the task's
// FAILED result. Tasks keep state that later tasks need in the host data
// bag (os_facts) or in the artifact store (admin kubeconfig, join command).
package tasks
