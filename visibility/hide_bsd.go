//go:build darwin || freebsd

package visibility

import (
	"fmt"

	"golang.org/x/sys/unix"
)

func hide(path string) error {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return fmt.Errorf("stat: %w", err)
	}
	if err := unix.Chflags(path, int(st.Flags)|unix.UF_HIDDEN); err != nil {
		return fmt.Errorf("chflags: %w", err)
	}
	return nil
}
