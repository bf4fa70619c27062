//go:build linux

package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// epollWaitMS bounds how long watchUnitKeys sleeps before rechecking ctx.
const epollWaitMS = 100

// watchUnitKeys waits on every device in one epoll set and sends a unitKeyPress for
// each initial press of one of codes. It returns nil when ctx is canceled and an
// error as soon as any device fails or hangs up.
func watchUnitKeys(ctx context.Context, files []*os.File, codes []uint16, presses chan<- unitKeyPress) error {
	if len(files) == 0 {
		return errors.New("no input devices provided")
	}

	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return fmt.Errorf("epoll_create1: %w", err)
	}
	defer unix.Close(epfd)

	// A device may hand back a partial event; keep the tail until the rest arrives.
	type device struct {
		f       *os.File
		pending []byte
	}
	byFD := make(map[int32]*device, len(files))
	for _, f := range files {
		fd := int32(f.Fd())
		byFD[fd] = &device{f: f}

		ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: fd}
		if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, int(fd), &ev); err != nil {
			return fmt.Errorf("watch %s: %w", f.Name(), err)
		}
	}

	ready := make([]unix.EpollEvent, len(files))
	buf := make([]byte, 64*inputEventSize)

	for {
		if ctx.Err() != nil {
			return nil
		}

		n, err := unix.EpollWait(epfd, ready, epollWaitMS)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return fmt.Errorf("epoll_wait: %w", err)
		}

		for _, r := range ready[:n] {
			d := byFD[r.Fd]

			if r.Events&unix.EPOLLIN != 0 {
				nr, err := d.f.Read(buf)
				if err != nil {
					return fmt.Errorf("read %s: %w", d.f.Name(), err)
				}
				if nr == 0 {
					return fmt.Errorf("input device %s closed", d.f.Name())
				}

				d.pending = append(d.pending, buf[:nr]...)
				evs, rest := decodeInputEvents(d.pending)
				d.pending = append(d.pending[:0], rest...)

				for _, ev := range evs {
					if !isUnitKeyPress(ev, codes) {
						continue
					}
					select {
					case presses <- unitKeyPress{Device: d.f.Name(), Code: ev.Code}:
					case <-ctx.Done():
						return nil
					}
				}
				continue
			}

			if r.Events&(unix.EPOLLERR|unix.EPOLLHUP) != 0 {
				return fmt.Errorf("input device %s hung up", d.f.Name())
			}
		}
	}
}
