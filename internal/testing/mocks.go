package testing

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/imamik/calcifer/internal/dispatch"
	"github.com/imamik/calcifer/internal/inventory"
)

// MockExecutor is a testify mock of dispatch.Executor. Run expectations
// match on the host name and the command line as a passwordless become
// would send it, so escalated commands carry the "sudo -n --" prefix.
type MockExecutor struct {
	mock.Mock
}

// Run records the call and returns the configured result.
func (m *MockExecutor) Run(_ context.Context, host *inventory.Host, cmd dispatch.Command) dispatch.Result {
	args := m.Called(host.Name, cmd.Line(cmd.IsEscalated(), false))
	return args.Get(0).(dispatch.Result)
}

// Transfer records the call and returns the configured result.
func (m *MockExecutor) Transfer(_ context.Context, host *inventory.Host, localPath, remotePath string) dispatch.Result {
	args := m.Called(host.Name, localPath, remotePath)
	return args.Get(0).(dispatch.Result)
}

// NewMockExecutor returns a mock with no expectations.
func NewMockExecutor() *MockExecutor {
	return &MockExecutor{}
}

// WithCommand expects cmd on host and returns res for it.
func (m *MockExecutor) WithCommand(host, cmd string, res dispatch.Result) *MockExecutor {
	m.On("Run", host, cmd).Return(res)
	return m
}
