package main

import (
	"fmt"
	"io/ioutil"

	"gopkg.in/yaml.v2"
)

// extendedConfigDoc mirrors the nested settings we can't express in the
// flat key=value config file: server links, WEBIRC gateways, DNSBLs, and
// rate-limit tunables.
type extendedConfigDoc struct {
	Servers map[string]struct {
		Pass string `yaml:"pass"`
		Host string `yaml:"host"`
		Port string `yaml:"port"`
		TLS  bool   `yaml:"tls"`
	} `yaml:"servers"`

	WebIRCGateways []struct {
		Pass  string   `yaml:"pass"`
		Hosts []string `yaml:"hosts"`
	} `yaml:"webirc-gateways"`

	DNSBLs []struct {
		Zone   string `yaml:"zone"`
		Reason string `yaml:"reason"`
	} `yaml:"dnsbls"`

	RateLimit struct {
		ConnectionsPerMinute float64 `yaml:"connections-per-minute"`
		ConnectionsBurst     int     `yaml:"connections-burst"`
		CommandsPerSecond    float64 `yaml:"commands-per-second"`
		CommandsBurst        int     `yaml:"commands-burst"`
	} `yaml:"rate-limit"`
}

// loadExtendedConfig reads the nested YAML document referenced by the
// flat config file's extended-config key and merges it into cb.Config.
func (cb *Catbox) loadExtendedConfig(path string) error {
	raw, err := ioutil.ReadFile(path)
	if err != nil {
		return fmt.Errorf("unable to read %s: %s", path, err)
	}

	var doc extendedConfigDoc
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("unable to parse %s: %s", path, err)
	}

	cb.Config.Servers = make(map[string]LinkConfig, len(doc.Servers))
	for name, link := range doc.Servers {
		cb.Config.Servers[name] = LinkConfig{
			Pass: link.Pass,
			Host: link.Host,
			Port: link.Port,
			TLS:  link.TLS,
		}
	}

	for _, gw := range doc.WebIRCGateways {
		cb.Config.WebIRCGateways = append(cb.Config.WebIRCGateways, WebIRCConfig{
			Pass:  gw.Pass,
			Hosts: gw.Hosts,
		})
	}

	for _, z := range doc.DNSBLs {
		cb.Config.DNSBLs = append(cb.Config.DNSBLs, DNSBLConfig{
			Zone:   z.Zone,
			Reason: z.Reason,
		})
	}

	cb.Config.RateLimit = RateLimitConfig{
		ConnectionsPerMinute: doc.RateLimit.ConnectionsPerMinute,
		ConnectionsBurst:     doc.RateLimit.ConnectionsBurst,
		CommandsPerSecond:    doc.RateLimit.CommandsPerSecond,
		CommandsBurst:        doc.RateLimit.CommandsBurst,
	}

	return nil
}
