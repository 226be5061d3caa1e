package app

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"northpointtriallaw.com/opsdash/internal/auth"
)

// runHashKey prints the ADMIN_KEY_HASH value for a key read from stdin.
func runHashKey(args []string) int {
	fs := flag.NewFlagSet("hash-key", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "hash-key reads the key from stdin and takes no arguments")
		return 2
	}

	key, err := readKey(os.Stdin)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read key: %v\n", err)
		return 1
	}
	hash, err := auth.HashKey(key)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to hash key: %v\n", err)
		return 1
	}
	fmt.Printf("ADMIN_KEY_HASH=%s\n", hash)
	return 0
}

func readKey(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	key := strings.TrimSpace(line)
	if key == "" {
		return "", fmt.Errorf("no key on stdin")
	}
	return key, nil
}
