package services

import (
	"bufio"
	"os"
	"strings"
)

// LoadPasswordBlacklist reads one forbidden password per line. Blank lines and
// lines starting with # are ignored.
func LoadPasswordBlacklist(path string) (map[string]bool, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	blacklist := make(map[string]bool)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		blacklist[line] = true
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return blacklist, nil
}
