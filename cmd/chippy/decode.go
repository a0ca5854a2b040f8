package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/FastTravelAS/chippy/internal/protocol"
)

var decodeRequests bool

var decodeCmd = &cobra.Command{
	Use:   "decode [hex...]",
	Short: "Decode captured transceiver frames",
	Long: `Decode hex-encoded frames, one capture per argument or per line of stdin.

A capture may hold several back-to-back frames; they are split by the length
byte of each header. Frames are read as device responses unless --request
is given.`,
	Example: `  # A keep-alive followed by a transponder report
  chippy decode 00000000020017050a0b0c0d0e

  # Decode a log of outgoing requests
  grep out capture.log | cut -d' ' -f3 | chippy decode --request`,
	RunE: runDecode,
}

func init() {
	decodeCmd.Flags().BoolVar(&decodeRequests, "request", false, "Decode as server requests instead of device responses")
	rootCmd.AddCommand(decodeCmd)
}

func runDecode(cmd *cobra.Command, args []string) error {
	t := protocol.Response
	if decodeRequests {
		t = protocol.Request
	}
	out := cmd.OutOrStdout()

	if len(args) > 0 {
		for _, a := range args {
			if err := decodeCapture(out, a, t); err != nil {
				return err
			}
		}
		return nil
	}

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := decodeCapture(out, line, t); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func decodeCapture(w io.Writer, capture string, t protocol.Type) error {
	b, err := protocol.Normalize(strings.ReplaceAll(capture, " ", ""))
	if err != nil {
		return fmt.Errorf("invalid capture %q: %w", capture, err)
	}
	for _, f := range protocol.Split(b, t) {
		switch {
		case f.Err != nil:
			fmt.Fprintf(w, "%x\t%v\n", f.Raw, f.Err)
		case !f.Message.Valid():
			fmt.Fprintf(w, "%s\ttruncated: %d of %d body bytes\n", f.Message, len(f.Message.Body), f.Message.Header.Length)
		default:
			fmt.Fprintln(w, f.Message)
		}
	}
	return nil
}
