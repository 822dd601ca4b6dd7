package main

import "strings"

// OperDef is everything stored about one configured operator: the stored
// password (plaintext when loaded by flatOperatorConfig), the privilege
// class name, and the hostmasks they're allowed to OPER from. The OPER
// command itself checks Config.Opers, not an OperDef.
type OperDef struct {
	HashedPass  string
	Class       string
	Hostmasks   []string
	Permissions []string
}

// OperatorConfig is the read side of the operator block of server
// configuration.
type OperatorConfig interface {
	Get(name string) (OperDef, bool)
}

// flatOperatorConfig adapts the flat "name = password" opers-config file
// (retained from the original config format) to the OperatorConfig
// interface. Passwords in that file are plaintext; every operator gets the
// unrestricted "admin" class, "*@*" hostmask and "*" permissions.
type flatOperatorConfig struct {
	opers map[string]OperDef
}

func newFlatOperatorConfig() *flatOperatorConfig {
	return &flatOperatorConfig{opers: make(map[string]OperDef)}
}

func (c *flatOperatorConfig) load(raw map[string]string) {
	for name, pass := range raw {
		c.opers[strings.ToLower(name)] = OperDef{
			HashedPass:  pass,
			Class:       "admin",
			Hostmasks:   []string{"*@*"},
			Permissions: []string{"*"},
		}
	}
}

func (c *flatOperatorConfig) Get(name string) (OperDef, bool) {
	def, exists := c.opers[strings.ToLower(name)]
	return def, exists
}
