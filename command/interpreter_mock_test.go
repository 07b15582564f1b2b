package command

import (
	"testing"
	"time"

	"go.uber.org/mock/gomock"

	"github.com/openqti-go/qtisupervisor/mocks"
)

func TestInterpreter_Reboot_InvokesRebooterWithFixedDelay(t *testing.T) {
	ctrl := gomock.NewController(t)
	reboot := mocks.NewMockRebooter(ctrl)
	reboot.EXPECT().Reboot(5 * time.Second).Return(nil)

	in := newTestInterpreter(t)
	in.Reboot = reboot

	id := in.Handle("reboot")
	if id != 10 {
		t.Fatalf("matched id = %d, want 10", id)
	}
}

func TestInterpreter_AdbOn_InvokesAdbSetter(t *testing.T) {
	ctrl := gomock.NewController(t)
	adb := mocks.NewMockAdbSetter(ctrl)
	adb.EXPECT().SetADB(true).Return(nil)

	in := newTestInterpreter(t)
	in.Adb = adb

	id := in.Handle("adb on")
	if id != 7 {
		t.Fatalf("matched id = %d, want 7", id)
	}
}
