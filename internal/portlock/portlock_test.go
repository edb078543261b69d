package portlock

import "testing"

func TestLockName(t *testing.T) {
	tests := []struct {
		port string
		want string
	}{
		{port: "/dev/ttyUSB0", want: "port-dev_ttyUSB0"},
		{port: "COM3", want: "port-COM3"},
		{port: "  ", want: "port"},
		{port: "///", want: "port"},
	}

	for _, tt := range tests {
		if got := lockName(tt.port); got != tt.want {
			t.Fatalf("lockName(%q) = %q, want %q", tt.port, got, tt.want)
		}
	}
}
