//go:build !linux

package teleop

import "github.com/pkg/errors"

func MakeRaw(fd int) (func() error, error) {
	return nil, errors.New("teleop: raw terminal mode is only supported on linux")
}
