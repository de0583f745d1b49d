// Package iox provides I/O helpers for resource cleanup.
package iox

import (
	"errors"
	"io"
)

// DiscardClose closes c and ignores the error, for defers where a failed
// close changes nothing:
//
//	defer iox.DiscardClose(resp.Body)
func DiscardClose(c io.Closer) { _ = c.Close() }

// DiscardErr calls fn and ignores its error, for non-Close cleanup such as
// stopping a device on the way out:
//
//	defer iox.DiscardErr(dev.Stop)
func DiscardErr(fn func() error) { _ = fn() }

// CloseAll closes every closer in order, even after a failure, and joins
// the errors.
func CloseAll(closers ...io.Closer) error {
	var errs []error
	for _, c := range closers {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
