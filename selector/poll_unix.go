//go:build unix

package selector

import (
	"errors"

	"golang.org/x/sys/unix"
)

var pollEvents = [...]int16{
	reading:     unix.POLLIN,
	writing:     unix.POLLOUT,
	exceptional: unix.POLLPRI,
}

// poll checks every watch without blocking and reports which are ready.
// Hang-ups and errors count as ready for readers and writers so the client
// finds out on its next read or write.
func poll(watches []watch) ([]bool, error) {
	fds := make([]unix.PollFd, len(watches))
	for i, w := range watches {
		fds[i] = unix.PollFd{Fd: int32(w.fd), Events: pollEvents[w.kind]}
	}
	ready := make([]bool, len(watches))
	n, err := unix.Poll(fds, 0)
	if errors.Is(err, unix.EINTR) {
		return ready, nil
	}
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return ready, nil
	}
	for i, fd := range fds {
		mask := pollEvents[watches[i].kind]
		if watches[i].kind != exceptional {
			mask |= unix.POLLERR | unix.POLLHUP | unix.POLLNVAL
		}
		ready[i] = fd.Revents&mask != 0
	}
	return ready, nil
}
