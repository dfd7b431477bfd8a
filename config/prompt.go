package config

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Prompt interactively fills cfg from r, writing questions to w. An
// empty answer keeps the current value. The result is validated before
// returning.
func Prompt(r io.Reader, w io.Writer, cfg *Config) error {
	scanner := bufio.NewScanner(r)

	mode := ask(scanner, w, fmt.Sprintf("Mode [server/client] (%s): ", cfg.Mode))
	if mode != "" {
		cfg.Mode = Mode(strings.ToLower(mode))
	}

	switch cfg.Mode {
	case ModeServer:
		if port := ask(scanner, w, fmt.Sprintf("Listen port (%d): ", cfg.Port)); port != "" {
			n, err := strconv.Atoi(port)
			if err != nil {
				return fmt.Errorf("%w: port %q", ErrInvalidConfig, port)
			}
			cfg.Port = n
		}
	case ModeClient:
		if url := ask(scanner, w, fmt.Sprintf("Hub URL (%s): ", cfg.ServerURL)); url != "" {
			cfg.ServerURL = url
		}
		if name := ask(scanner, w, fmt.Sprintf("Display name (%s): ", cfg.ClientName)); name != "" {
			cfg.ClientName = name
		}
		if loc := ask(scanner, w, "Location (auto): "); loc != "" {
			cfg.ClientLocation = loc
		}
	}

	return cfg.Validate()
}

// ask prints one question and returns the trimmed answer.
func ask(scanner *bufio.Scanner, w io.Writer, question string) string {
	fmt.Fprint(w, question)
	if !scanner.Scan() {
		return ""
	}
	return strings.TrimSpace(scanner.Text())
}
