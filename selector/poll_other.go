//go:build !unix

package selector

import "errors"

var errUnsupported = errors.New("selector: polling is not supported on this platform")

func poll(watches []watch) ([]bool, error) {
	return nil, errUnsupported
}
