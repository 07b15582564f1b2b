// Package mocks holds hand-authored gomock-style doubles for the
// command package's injected side-effect interfaces, in the same shape
// mockgen would generate (NewMockX/EXPECT()/recorder), for tests that
// need to assert a side effect actually fired rather than just its
// reply text.
package mocks

import (
	"reflect"
	"time"

	"go.uber.org/mock/gomock"
)

// MockRebooter is a mock of the command.Rebooter interface.
type MockRebooter struct {
	ctrl     *gomock.Controller
	recorder *MockRebooterMockRecorder
}

// MockRebooterMockRecorder is the mock recorder for MockRebooter.
type MockRebooterMockRecorder struct {
	mock *MockRebooter
}

// NewMockRebooter creates a new mock instance.
func NewMockRebooter(ctrl *gomock.Controller) *MockRebooter {
	mock := &MockRebooter{ctrl: ctrl}
	mock.recorder = &MockRebooterMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockRebooter) EXPECT() *MockRebooterMockRecorder {
	return m.recorder
}

// Reboot mocks base method.
func (m *MockRebooter) Reboot(delay time.Duration) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Reboot", delay)
	ret0, _ := ret[0].(error)
	return ret0
}

// Reboot indicates an expected call of Reboot.
func (mr *MockRebooterMockRecorder) Reboot(delay any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Reboot", reflect.TypeOf((*MockRebooter)(nil).Reboot), delay)
}

// Shutdown mocks base method.
func (m *MockRebooter) Shutdown(delay time.Duration) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Shutdown", delay)
	ret0, _ := ret[0].(error)
	return ret0
}

// Shutdown indicates an expected call of Shutdown.
func (mr *MockRebooterMockRecorder) Shutdown(delay any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Shutdown", reflect.TypeOf((*MockRebooter)(nil).Shutdown), delay)
}

// MockAdbSetter is a mock of the command.AdbSetter interface.
type MockAdbSetter struct {
	ctrl     *gomock.Controller
	recorder *MockAdbSetterMockRecorder
}

// MockAdbSetterMockRecorder is the mock recorder for MockAdbSetter.
type MockAdbSetterMockRecorder struct {
	mock *MockAdbSetter
}

// NewMockAdbSetter creates a new mock instance.
func NewMockAdbSetter(ctrl *gomock.Controller) *MockAdbSetter {
	mock := &MockAdbSetter{ctrl: ctrl}
	mock.recorder = &MockAdbSetterMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockAdbSetter) EXPECT() *MockAdbSetterMockRecorder {
	return m.recorder
}

// SetADB mocks base method.
func (m *MockAdbSetter) SetADB(enabled bool) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "SetADB", enabled)
	ret0, _ := ret[0].(error)
	return ret0
}

// SetADB indicates an expected call of SetADB.
func (mr *MockAdbSetterMockRecorder) SetADB(enabled any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "SetADB", reflect.TypeOf((*MockAdbSetter)(nil).SetADB), enabled)
}
