package main

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// LinkConfig describes a server we may link to/accept links from.
type LinkConfig struct {
	Pass string

	// Hostname/port to dial if we are the one initiating the connection. If
	// blank, we only accept incoming connections from this server.
	Host string
	Port string

	// TLS requires the link to use TLS.
	TLS bool
}

// WebIRCConfig describes a trusted gateway allowed to use the WEBIRC
// command to spoof a client's origin.
type WebIRCConfig struct {
	// Password compared with subtle.ConstantTimeCompare against what the
	// gateway sends.
	Pass string

	// Gateway's connecting IP/CIDR/hostname it must present as, to prevent a
	// stolen password being usable from elsewhere.
	Hosts []string
}

// RateLimitConfig tunes the token buckets guarding connection admission and
// command processing.
type RateLimitConfig struct {
	// ConnectionsPerMinute is the steady-state admission rate per /64 (or bare
	// IPv4 address).
	ConnectionsPerMinute float64
	ConnectionsBurst     int

	// CommandsPerSecond/CommandsBurst tune the per-connection command credit
	// bucket.
	CommandsPerSecond float64
	CommandsBurst     int
}

// DNSBLConfig is a single DNS blacklist zone to check new connections
// against.
type DNSBLConfig struct {
	Zone   string
	Reason string
}

// Config holds a server's configuration.
type Config struct {
	ListenHost  string
	ListenPort  string
	ServerName  string
	ServerInfo  string
	Version     string
	CreatedDate string
	MOTD        string

	// If TLSListenPort, TLSCert and TLSKey are all set, additionally listen
	// with TLS on TLSListenPort.
	TLSListenPort string
	TLSCert       string
	TLSKey        string

	MaxNickLength int

	// Period of time to wait before waking server up (maximum).
	WakeupTime time.Duration

	// Period of time a client can be idle before we send it a PING.
	PingTime time.Duration

	// Period of time a client can be idle before we consider it dead.
	DeadTime time.Duration

	// Oper name to password.
	Opers map[string]string

	// TS6 SID. Must be unique in the network. Format: [0-9][A-Z0-9]{2}
	TS6SID string

	// Servers we may link to, keyed by server name.
	Servers map[string]LinkConfig

	// WebIRCGateways is a plain list, not keyed by anything (we check every
	// entry's password rather than indexing by it, since passwords are
	// compared in constant time).
	WebIRCGateways []WebIRCConfig

	DNSBLs []DNSBLConfig

	RateLimit RateLimitConfig

	// AllowInsecureSASL permits CAP REQ :sasl over a plaintext connection.
	// Off by default; SASL's mechanisms all carry a password or proof that
	// should not travel in the clear.
	AllowInsecureSASL bool

	// NetworkName is the ISUPPORT NETWORK= token. Defaults to ServerName if
	// blank.
	NetworkName string
}

// checkAndParseConfig checks configuration keys are present and in an
// acceptable format, and populates cb.Config and cb.Config.Opers.
//
// Scalar settings come from the flat key=value file at path; anything
// requiring nested structure (links, WEBIRC gateways, DNSBLs, rate limits)
// comes from the YAML document named by the flat file's extended-config
// key, if that key is set.
func (cb *Catbox) checkAndParseConfig(file string) error {
	configMap, err := readConfigFile(file)
	if err != nil {
		return err
	}

	requiredKeys := []string{
		"listen-host",
		"listen-port",
		"server-name",
		"server-info",
		"version",
		"created-date",
		"motd",
		"max-nick-length",
		"wakeup-time",
		"ping-time",
		"dead-time",
		"opers-config",
		"ts6-sid",
	}

	for _, key := range requiredKeys {
		v, exists := configMap[key]
		if !exists {
			return fmt.Errorf("missing required key: %s", key)
		}
		if len(v) == 0 {
			return fmt.Errorf("configuration value is blank: %s", key)
		}
	}

	cb.Config.ListenHost = configMap["listen-host"]
	cb.Config.ListenPort = configMap["listen-port"]
	cb.Config.ServerName = configMap["server-name"]
	cb.Config.ServerInfo = configMap["server-info"]
	cb.Config.Version = configMap["version"]
	cb.Config.CreatedDate = configMap["created-date"]
	cb.Config.MOTD = configMap["motd"]

	cb.Config.TLSListenPort = configMap["tls-listen-port"]
	cb.Config.TLSCert = configMap["tls-cert"]
	cb.Config.TLSKey = configMap["tls-key"]

	nickLen64, err := strconv.ParseInt(configMap["max-nick-length"], 10, 8)
	if err != nil {
		return fmt.Errorf("max nick length is not valid: %s", err)
	}
	cb.Config.MaxNickLength = int(nickLen64)

	cb.Config.WakeupTime, err = time.ParseDuration(configMap["wakeup-time"])
	if err != nil {
		return fmt.Errorf("wakeup time is in invalid format: %s", err)
	}

	cb.Config.PingTime, err = time.ParseDuration(configMap["ping-time"])
	if err != nil {
		return fmt.Errorf("ping time is in invalid format: %s", err)
	}

	cb.Config.DeadTime, err = time.ParseDuration(configMap["dead-time"])
	if err != nil {
		return fmt.Errorf("dead time is in invalid format: %s", err)
	}

	opers, err := readConfigFile(configMap["opers-config"])
	if err != nil {
		return fmt.Errorf("unable to load opers config: %s", err)
	}
	cb.Config.Opers = opers

	matched, err := regexp.MatchString("^[0-9][0-9A-Z]{2}$", configMap["ts6-sid"])
	if err != nil {
		return fmt.Errorf("unable to validate ts6-sid: %s", err)
	}
	if !matched {
		return fmt.Errorf("ts6-sid is in invalid format")
	}
	cb.Config.TS6SID = configMap["ts6-sid"]

	cb.Config.NetworkName = configMap["network-name"]
	if cb.Config.NetworkName == "" {
		cb.Config.NetworkName = cb.Config.ServerName
	}
	cb.Config.AllowInsecureSASL = configMap["allow-insecure-sasl"] == "true"

	if yamlPath, ok := configMap["extended-config"]; ok && yamlPath != "" {
		if err := cb.loadExtendedConfig(yamlPath); err != nil {
			return fmt.Errorf("unable to load extended config: %s", err)
		}
	}

	return nil
}
