// Package config defines the configuration model shared by the engine and
// the provisioning tasks.
//
// [Settings] is the parsed form of cluster_config.yaml with environment
// overrides applied. [Timeouts] is read from the environment only, and
// [Runtime] carries per-invocation CLI options such as the become password.
// None of these are package-level state: the CLI builds them once and passes
// them down explicitly.
package config
