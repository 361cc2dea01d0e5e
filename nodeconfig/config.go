// Package nodeconfig loads the node's INI-style configuration file, the way
// ingest/config loads Gravwell ingester configs: a gcfg struct with a
// [Global] section, environment-variable overrides, and a Verify step that
// fills in defaults and rejects nonsensical values.
package nodeconfig

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gravwell/gcfg"

	"github.com/shipspine/node/shiplog"
)

const deviceUUIDParam = `Device-UUID`

const (
	maxConfigSize int64 = 1 << 20 // 1MB is already generous for a node config

	envRemoteSKI = `EEBUS_REMOTE_SKI`
	envPort      = `EEBUS_LISTEN_PORT`
	envCertFile  = `EEBUS_CERTIFICATE_FILE`
	envKeyFile   = `EEBUS_PRIVATE_KEY_FILE`
	envLogLevel  = `EEBUS_LOG_LEVEL`
	envLogFile   = `EEBUS_LOG_FILE`
	envStateDir  = `EEBUS_STATE_DIR`

	defaultLogLevel = `INFO`
	defaultStateDir = `/var/lib/shipspine`
)

var (
	ErrConfigTooLarge     = errors.New("config file is too large")
	ErrMissingRemoteSKI    = errors.New("Remote-SKI value missing")
	ErrMissingCertificates = errors.New("Certificate-File and Private-Key-File are required")
	ErrInvalidPort         = errors.New("Listen-Port must be between 1 and 65535")
	ErrInvalidLogLevel     = errors.New("invalid Log-Level")
)

// Global holds the [Global] section of the node config file.
type Global struct {
	Remote_SKI       string
	Listen_Port      uint16
	Certificate_File string
	Private_Key_File string
	Log_Level        string
	Log_File         string
	State_Dir        string
	Device_UUID      string `json:",omitempty"`
}

// NodeConfig is the top-level config file shape.
type NodeConfig struct {
	Global Global
}

// LoadFile reads, parses, and verifies a config file at p.
func LoadFile(p string) (*NodeConfig, error) {
	fin, err := os.Open(p)
	if err != nil {
		return nil, err
	}
	defer fin.Close()

	fi, err := fin.Stat()
	if err != nil {
		return nil, err
	} else if fi.Size() > maxConfigSize {
		return nil, ErrConfigTooLarge
	}

	bb := bytes.NewBuffer(nil)
	if _, err := io.Copy(bb, fin); err != nil {
		return nil, err
	}

	var nc NodeConfig
	if err := gcfg.ReadStringInto(&nc, bb.String()); err != nil {
		return nil, err
	}
	nc.loadEnvOverrides()
	if err := nc.Verify(); err != nil {
		return nil, err
	}
	return &nc, nil
}

func (nc *NodeConfig) loadEnvOverrides() {
	loadEnvString(&nc.Global.Remote_SKI, envRemoteSKI)
	loadEnvString(&nc.Global.Certificate_File, envCertFile)
	loadEnvString(&nc.Global.Private_Key_File, envKeyFile)
	loadEnvString(&nc.Global.Log_Level, envLogLevel)
	loadEnvString(&nc.Global.Log_File, envLogFile)
	loadEnvString(&nc.Global.State_Dir, envStateDir)
	if v, ok := os.LookupEnv(envPort); ok {
		var port uint16
		if _, err := fmt.Sscanf(v, "%d", &port); err == nil {
			nc.Global.Listen_Port = port
		}
	}
}

func loadEnvString(dst *string, name string) {
	if v, ok := os.LookupEnv(name); ok && v != `` {
		*dst = v
	}
}

// Verify fills in defaults and rejects an unusable configuration.
func (nc *NodeConfig) Verify() error {
	g := &nc.Global

	if g.Remote_SKI == `` {
		return ErrMissingRemoteSKI
	}
	if g.Certificate_File == `` || g.Private_Key_File == `` {
		return ErrMissingCertificates
	}
	if g.Listen_Port == 0 {
		return ErrInvalidPort
	}

	g.Log_Level = strings.ToUpper(strings.TrimSpace(g.Log_Level))
	if g.Log_Level == `` {
		g.Log_Level = defaultLogLevel
	}
	if _, err := shiplog.LevelFromString(g.Log_Level); err != nil {
		return ErrInvalidLogLevel
	}

	if g.State_Dir == `` {
		g.State_Dir = defaultStateDir
	}
	if err := os.MkdirAll(g.State_Dir, 0700); err != nil {
		return err
	}
	if g.Log_File != `` {
		if err := os.MkdirAll(filepath.Dir(g.Log_File), 0700); err != nil {
			return err
		}
	}
	return nil
}
