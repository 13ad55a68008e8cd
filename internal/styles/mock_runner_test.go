package styles

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockRunner mocks the Runner interface
type MockRunner struct {
	mock.Mock
}

// Run mocks process execution
func (m *MockRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	ret := m.Called(ctx, name, args)
	var stdout, stderr []byte
	if v := ret.Get(0); v != nil {
		stdout = v.([]byte)
	}
	if v := ret.Get(1); v != nil {
		stderr = v.([]byte)
	}
	return stdout, stderr, ret.Error(2)
}

// LookPath mocks executable lookup
func (m *MockRunner) LookPath(name string) (string, error) {
	ret := m.Called(name)
	return ret.String(0), ret.Error(1)
}
