package main

import (
	"errors"
	"os"
	"sync"

	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

const (
	keyRun       byte = ' '
	keyQuit      byte = 'q'
	keyInterrupt byte = 0x03 // ^C, when the terminal hands it over as a byte
)

var errNoTerminal = errors.New("no controlling terminal")

// Keypresses from the controlling terminal. It is opened directly, so
// interactive control keeps working when the file list came in on stdin.
type keyboard struct {
	tty   *os.File
	state *term.State
	keys  chan byte
	once  sync.Once
}

func openKeyboard(log *logger) (*keyboard, error) {
	tty, e := os.Open("/dev/tty")
	if e != nil {
		return nil, errNoTerminal
	}
	fd := int(tty.Fd())
	if !term.IsTerminal(fd) {
		tty.Close()
		return nil, errNoTerminal
	}
	state, e := term.GetState(fd)
	if e != nil {
		tty.Close()
		return nil, e
	}
	if e := cbreak(fd); e != nil {
		tty.Close()
		return nil, e
	}

	k := &keyboard{tty: tty, state: state, keys: make(chan byte, 8)}
	go k.read(log)
	return k, nil
}

func (k *keyboard) Keys() <-chan byte {
	return k.keys
}

// Restore puts the terminal back the way it was found. The reader is left
// blocked on the descriptor; the process is about to exit.
func (k *keyboard) Restore() {
	k.once.Do(func() {
		term.Restore(int(k.tty.Fd()), k.state)
	})
}

func (k *keyboard) read(log *logger) {
	defer close(k.keys)
	buf := make([]byte, 1)
	for {
		n, e := k.tty.Read(buf)
		if e != nil {
			log.debugf("loop", "keyboard closed: %v", e)
			return
		}
		if n == 1 {
			k.keys <- buf[0]
		}
	}
}

// cbreak turns off line buffering and echo but, unlike raw mode, keeps
// output processing and signal keys, so the child's output renders normally
// and ^C still arrives as SIGINT.
func cbreak(fd int) error {
	t, e := unix.IoctlGetTermios(fd, ioctlReadTermios)
	if e != nil {
		return e
	}
	t.Lflag &^= unix.ICANON | unix.ECHO
	t.Cc[unix.VMIN] = 1
	t.Cc[unix.VTIME] = 0
	return unix.IoctlSetTermios(fd, ioctlWriteTermios, t)
}
