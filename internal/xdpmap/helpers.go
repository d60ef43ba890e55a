package xdpmap

import (
	"bytes"
	"fmt"
	"io"
	"net"
)

func newReader(b []byte) io.ReaderAt {
	return bytes.NewReader(b)
}

func interfaceIndex(name string) (int, error) {
	ifi, err := net.InterfaceByName(name)
	if err != nil {
		return 0, fmt.Errorf("unknown interface %q: %w", name, err)
	}
	return ifi.Index, nil
}
