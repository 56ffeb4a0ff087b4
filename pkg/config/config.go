// Package config provides configuration management for stlinkgdb. It
// reads settings from stlinkgdb.ini using multiple search paths, the same
// pattern foenixmgr.ini uses.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/ini.v1"
)

// Config holds every setting the serve command needs, whether it came from
// stlinkgdb.ini or was overridden by a CLI flag.
type Config struct {
	// Listener settings
	ListenHost string
	ListenPort int
	Multi      bool

	// Probe connection settings
	ConnectMode string // "normal", "hotplug", or "underreset"
	Freq        int    // probe clock, kHz
	Serial      string // probe serial number, "" selects the first found
	RemoteProbe string // host:port of a probe-agent, "" uses USB directly

	// Target behavior
	Semihosting bool

	Verbose bool

	// STLinkDevice selects a probe by USB location when multiple are
	// attached, in "bus:addr" form. Set from the STLINK_DEVICE environment
	// variable; it is used only when Serial is empty.
	STLinkDevice string
}

// Load reads configuration from stlinkgdb.ini in the following search
// order:
//  1. Current directory (./stlinkgdb.ini)
//  2. $STLINKGDB directory ($STLINKGDB/stlinkgdb.ini)
//  3. Home directory (~/stlinkgdb.ini)
//
// A missing ini file is not an error: Load returns the defaults, since
// every setting also has a CLI flag.
func Load() (*Config, error) {
	var searchPaths []string
	searchPaths = append(searchPaths, filepath.Join(".", "stlinkgdb.ini"))
	if dir := os.Getenv("STLINKGDB"); dir != "" {
		searchPaths = append(searchPaths, filepath.Join(dir, "stlinkgdb.ini"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		searchPaths = append(searchPaths, filepath.Join(home, "stlinkgdb.ini"))
	}

	var iniFile *ini.File
	for _, path := range searchPaths {
		if _, statErr := os.Stat(path); statErr == nil {
			f, err := ini.Load(path)
			if err != nil {
				return nil, fmt.Errorf("config: failed to parse %s: %w", path, err)
			}
			iniFile = f
			break
		}
	}
	if iniFile == nil {
		iniFile = ini.Empty()
	}

	section := iniFile.Section("DEFAULT")
	cfg := &Config{
		ListenHost:  section.Key("listen_host").MustString("0.0.0.0"),
		ListenPort:  section.Key("listen_port").MustInt(4242),
		Multi:       section.Key("multi").MustBool(false),
		ConnectMode: section.Key("connect_mode").MustString("normal"),
		Freq:        section.Key("freq").MustInt(4000),
		Serial:      section.Key("serial").MustString(""),
		RemoteProbe: section.Key("remote_probe").MustString(""),
		Semihosting: section.Key("semihosting").MustBool(true),
		Verbose:     section.Key("verbose").MustBool(false),
	}

	cfg.STLinkDevice = os.Getenv("STLINK_DEVICE")
	return cfg, nil
}
