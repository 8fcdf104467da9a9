//go:build !windows && !darwin && !freebsd

package visibility

func hide(string) error { return ErrUnsupported }
