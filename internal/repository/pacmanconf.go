package repository

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Mirrorlist is never searched for local repositories.
const Mirrorlist = "/etc/pacman.d/mirrorlist"

// LocalDatabases returns the database files of the repositories that
// pacman.conf serves from the local filesystem (Server = file://...),
// following Include directives.
func LocalDatabases(pacmanConf string) ([]string, error) {
	var dbs []string
	if err := readPacmanConf(pacmanConf, "", &dbs, 0); err != nil {
		return nil, err
	}
	return dbs, nil
}

func readPacmanConf(filename, section string, dbs *[]string, depth int) error {
	if depth > 10 {
		return fmt.Errorf("%s: Include nested too deeply", filename)
	}

	f, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			section = strings.TrimSpace(line[1 : len(line)-1])
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		switch key {
		case "Include":
			if value == Mirrorlist {
				continue
			}
			matches, err := filepath.Glob(value)
			if err != nil {
				return fmt.Errorf("%s: invalid Include %q: %w", filename, value, err)
			}
			for _, m := range matches {
				if err := readPacmanConf(m, section, dbs, depth+1); err != nil {
					return err
				}
			}
		case "Server":
			dir, ok := strings.CutPrefix(value, "file://")
			if !ok || section == "" || section == "options" {
				continue
			}
			db, err := filepath.EvalSymlinks(filepath.Join(dir, section+".db"))
			if err != nil {
				return fmt.Errorf("%s: local repository %s: %w", filename, section, err)
			}
			*dbs = append(*dbs, db)
		}
	}

	return scanner.Err()
}
