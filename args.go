package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
)

// Args are command line arguments.
type Args struct {
	ConfigFile string
	ListenFD   int
	ServerName string
	SID        string

	// NoRateLimit disables connection/command rate limiting regardless of
	// what the config file says, for local testing against a dev network.
	NoRateLimit bool

	// NoWebIRC disables trusted WEBIRC gateways regardless of config,
	// useful when debugging registration without a gateway in front of it.
	NoWebIRC bool
}

func getArgs() *Args {
	configFile := flag.String("conf", "", "Configuration file.")
	fd := flag.Int(
		"listen-fd",
		-1,
		"File descriptor with listening port to use (optional).",
	)
	serverName := flag.String(
		"server-name",
		"",
		"Server name. Overrides server-name from config.",
	)
	sid := flag.String(
		"sid",
		"",
		"SID. Overrides ts6-sid from config.",
	)
	noRateLimit := flag.Bool(
		"no-rate-limit",
		false,
		"Disable connection and command rate limiting.",
	)
	noWebIRC := flag.Bool(
		"no-webirc",
		false,
		"Disable trusted WEBIRC gateways.",
	)

	flag.Parse()

	if len(*configFile) == 0 {
		printUsage(fmt.Errorf("you must provide a configuration file"))
		return nil
	}

	configPath, err := filepath.Abs(*configFile)
	if err != nil {
		printUsage(fmt.Errorf(
			"unable to determine path to the configuration file: %s", err))
		return nil
	}

	return &Args{
		ConfigFile:  configPath,
		ListenFD:    *fd,
		ServerName:  *serverName,
		SID:         *sid,
		NoRateLimit: *noRateLimit,
		NoWebIRC:    *noWebIRC,
	}
}

func printUsage(err error) {
	_, _ = fmt.Fprintf(os.Stderr, "%s\n", err)                           // nolint: gas
	_, _ = fmt.Fprintf(os.Stderr, "Usage: %s <arguments>\n", os.Args[0]) // nolint: gas
	flag.PrintDefaults()
}
