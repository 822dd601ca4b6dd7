package main

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"strings"
)

// readConfigFile reads a simple "key = value" config file into a map.
//
// Lines may be commented if they begin with a '#' with only whitespace or
// no whitespace in front of the '#' character. Lines currently MAY NOT have
// trailing '#' to be treated as comments.
//
// This is our own in-tree replacement for the reflection-based populator we
// otherwise used: our Config struct now has fields (time.Duration, maps,
// nested structs) that a generic reflect-based setter can't express, so we
// read into a plain string map here and assign fields by hand in
// checkAndParseConfig, and load the richer nested settings separately from
// YAML.
func readConfigFile(path string) (map[string]string, error) {
	if len(path) == 0 {
		return nil, fmt.Errorf("invalid path, path may not be blank")
	}

	fi, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := fi.Close(); err != nil {
			log.Printf("error closing %s: %s", path, err)
		}
	}()

	config := make(map[string]string)

	scanner := bufio.NewScanner(fi)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.ToLower(strings.TrimSpace(parts[0]))
		value := strings.TrimSpace(parts[1])

		if len(key) == 0 {
			return nil, fmt.Errorf("key length is 0")
		}

		if _, exists := config[key]; exists {
			return nil, fmt.Errorf("config key defined twice: %s", key)
		}

		config[key] = value
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading from file: %s", err)
	}

	return config, nil
}
