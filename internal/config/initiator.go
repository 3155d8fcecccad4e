package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrNoInitiatorName is returned when the initiator name file has no
// InitiatorName entry
var ErrNoInitiatorName = errors.New("initiator name not found")

const initiatorNameKey = "InitiatorName="

// ReadInitiatorName returns the initiator's iSCSI name from path. The value
// runs from "InitiatorName=" to the first whitespace.
func ReadInitiatorName(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open initiator name file: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || line[0] == '#' || !strings.HasPrefix(line, initiatorNameKey) {
			continue
		}
		name, _, _ := strings.Cut(line[len(initiatorNameKey):], " ")
		name, _, _ = strings.Cut(name, "\t")
		if name == "" {
			break
		}
		return name, nil
	}
	if err := sc.Err(); err != nil {
		return "", fmt.Errorf("failed to read initiator name file: %w", err)
	}

	return "", fmt.Errorf("%w in %s", ErrNoInitiatorName, path)
}
