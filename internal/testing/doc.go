// Package testing provides test doubles and builders shared by the task,
// engine and command tests.
//
//   - FakeExecutor: scripted dispatch.Executor that also emulates the file
//     commands remotefile.Mutator issues, so file writes can be asserted
//   - MockExecutor: testify mock for call-level expectations
//   - MemoryArtifacts: in-memory artifact store
//   - HostBuilder and SettingsBuilder: fluent builders with sensible defaults
//
// Usage:
//
//	exec := testing.NewFakeExecutor().
//	    On("kubeadm init", testing.Fail("preflight error"))
//	host := testing.NewHostBuilder("cp-1").InGroup(inventory.GroupControlPlane).Build()
package testing
