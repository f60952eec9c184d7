package containersrc

import "testing"

func TestContainerInfoZeroValue(t *testing.T) {
	var info ContainerInfo
	if info.TTY {
		t.Fatal("zero-value ContainerInfo must not report TTY")
	}
	if info.Networks != nil {
		t.Fatal("zero-value ContainerInfo must not have networks")
	}
}
