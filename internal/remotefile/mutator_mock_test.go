package remotefile_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/imamik/calcifer/internal/remotefile"
	calcifertest "github.com/imamik/calcifer/internal/testing"
)

func newMockedMutator(t *testing.T, exec *calcifertest.MockExecutor) *remotefile.Mutator {
	t.Helper()
	return remotefile.New(exec,
		remotefile.WithClock(func() time.Time { return time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC) }),
		remotefile.WithTempNames(func() string { return "calcifer_test" }),
		remotefile.WithLocalTempDir(t.TempDir()),
		remotefile.WithBackupDir("/var/backups/calcifer"),
	)
}

func TestWriteFile_EscalatedCommandSequence(t *testing.T) {
	t.Parallel()
	const target = "/etc/sysctl.d/k8s.conf"
	host := calcifertest.NewHostBuilder("cp-1").Build()
	exec := calcifertest.NewMockExecutor()

	ok := calcifertest.OK("")
	mock.InOrder(
		exec.On("Run", "cp-1", "sudo -n -- test -f "+target).Return(ok).Once(),
		exec.On("Run", "cp-1", "sudo -n -- cat "+target).Return(calcifertest.OK("old\n")).Once(),
		exec.On("Transfer", "cp-1", mock.Anything, "/tmp/calcifer_test").Return(ok).Once(),
		exec.On("Run", "cp-1", "sudo -n -- test -f "+target).Return(ok).Once(),
		exec.On("Run", "cp-1", "sudo -n -- mkdir -p /var/backups/calcifer").Return(ok).Once(),
		exec.On("Run", "cp-1",
			"sudo -n -- cp -p "+target+" /var/backups/calcifer/_etc_sysctl.d_k8s.conf.20240309_140507.bak").Return(ok).Once(),
		exec.On("Run", "cp-1", "sudo -n -- mv /tmp/calcifer_test "+target).Return(ok).Once(),
		exec.On("Run", "cp-1", "sudo -n -- chown root:root "+target).Return(ok).Once(),
		exec.On("Run", "cp-1", "sudo -n -- chmod 644 "+target).Return(ok).Once(),
	)

	res := newMockedMutator(t, exec).WriteFile(context.Background(), host, target, "net.ipv4.ip_forward = 1\n")
	require.True(t, res.Succeeded, res.Message)
	assert.True(t, res.Changed)
	assert.Equal(t, "/var/backups/calcifer/_etc_sysctl.d_k8s.conf.20240309_140507.bak", res.BackupPath)
	exec.AssertExpectations(t)
}

func TestWriteFile_TransferFailureRemovesTempFile(t *testing.T) {
	t.Parallel()
	host := calcifertest.NewHostBuilder("worker-1").Build()
	exec := calcifertest.NewMockExecutor().
		WithCommand("worker-1", "sudo -n -- test -f /etc/modules-load.d/k8s.conf", calcifertest.Fail("")).
		WithCommand("worker-1", "sudo -n -- rm -f /tmp/calcifer_test", calcifertest.OK(""))
	exec.On("Transfer", "worker-1", mock.Anything, "/tmp/calcifer_test").
		Return(calcifertest.Fail("connection reset by peer"))

	res := newMockedMutator(t, exec).WriteFile(context.Background(), host, "/etc/modules-load.d/k8s.conf", "overlay\n")
	assert.False(t, res.Succeeded)
	assert.Equal(t, remotefile.StageTransfer, res.Stage)
	assert.Contains(t, res.Message, "connection reset by peer")
	exec.AssertExpectations(t)
	exec.AssertNotCalled(t, "Run", "worker-1", "sudo -n -- mv /tmp/calcifer_test /etc/modules-load.d/k8s.conf")
}
