package main

import (
	"fmt"
	"io"

	"github.com/skip2/go-qrcode"
)

// renderQR prints uri as a terminal QR code followed by the URI itself, for
// terminals that cannot display the blocks.
func renderQR(w io.Writer, uri string) error {
	q, err := qrcode.New(uri, qrcode.Medium)
	if err != nil {
		return fmt.Errorf("failed to encode QR code: %w", err)
	}
	fmt.Fprintln(w, q.ToSmallString(false))
	fmt.Fprintf(w, "URI: %s\n", uri)
	return nil
}
