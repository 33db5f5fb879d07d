package audio

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

// SelectDevice presents an interactive picker over the devices of kind and
// returns the selected one. If only one device is available, it returns that
// device without prompting. Ctrl+C returns ErrCancelled.
func SelectDevice(ctx Context, kind Kind) (*DeviceInfo, error) {
	devices, err := ctx.Devices(kind)
	if err != nil {
		return nil, fmt.Errorf("enumerating devices: %w", err)
	}
	if len(devices) == 0 {
		return nil, fmt.Errorf("no %s devices found", kind)
	}
	if len(devices) == 1 {
		return &devices[0], nil
	}

	fd := int(os.Stdin.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("setting raw mode: %w", err)
	}
	defer term.Restore(fd, oldState)

	i, err := pick(os.Stdin, os.Stdout, kind, devices)
	if err != nil {
		return nil, err
	}
	return &devices[i], nil
}

// pick runs the picker over raw terminal input and returns the chosen index.
func pick(in io.Reader, out io.Writer, kind Kind, devices []DeviceInfo) (int, error) {
	cursor := 0
	render := func() {
		fmt.Fprint(out, "\r\x1b[J")
		fmt.Fprintf(out, "Select %s device (↑/↓, Enter to confirm):\r\n\r\n", kind)
		for i, d := range devices {
			btTag := ""
			if IsBluetooth(d.Name) {
				btTag = " \x1b[33m[⚠ Lower audio quality]\x1b[0m"
			}
			if i == cursor {
				fmt.Fprintf(out, "  \x1b[1;36m▶ %s%s\x1b[0m\r\n", d.Name, btTag)
			} else {
				fmt.Fprintf(out, "    %s%s\r\n", d.Name, btTag)
			}
		}
	}
	up := func() {
		if cursor > 0 {
			cursor--
		}
	}
	down := func() {
		if cursor < len(devices)-1 {
			cursor++
		}
	}

	render()
	buf := make([]byte, 3)
	for {
		n, err := in.Read(buf)
		if err != nil {
			return 0, fmt.Errorf("reading input: %w", err)
		}

		switch {
		case n == 1 && (buf[0] == '\r' || buf[0] == '\n'):
			fmt.Fprint(out, "\r\n")
			return cursor, nil
		case n == 1 && buf[0] == 3: // Ctrl+C
			fmt.Fprint(out, "\r\n")
			return 0, ErrCancelled
		case n == 1 && buf[0] == 'j':
			down()
		case n == 1 && buf[0] == 'k':
			up()
		case n == 3 && buf[0] == 0x1b && buf[1] == '[' && buf[2] == 'A':
			up()
		case n == 3 && buf[0] == 0x1b && buf[1] == '[' && buf[2] == 'B':
			down()
		}

		fmt.Fprintf(out, "\x1b[%dA", len(devices)+2)
		render()
	}
}
