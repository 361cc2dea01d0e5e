// Device UUID handling, mirroring ingest/config's Ingester-UUID: a node
// that wasn't given an explicit identity in its config file picks one for
// itself on first run and rewrites the file so the identity is stable
// across restarts.
package nodeconfig

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrGlobalSectionNotFound = errors.New("Global config section not found")
	ErrInvalidLineLocation   = errors.New("invalid line location")
	ErrNotLoadedFromFile     = errors.New("config was not loaded from a file")
)

const (
	globalHeader = `[global]`
	headerStart  = `[`
)

// DeviceUUID returns the configured device identity. ok is false if no
// UUID is set, the value is malformed, or it is the all-zero UUID.
func (nc *NodeConfig) DeviceUUID() (id uuid.UUID, ok bool) {
	if nc.Global.Device_UUID == `` {
		return
	}
	var err error
	if id, err = uuid.Parse(nc.Global.Device_UUID); err != nil {
		return
	}
	ok = !zeroUUID(id)
	return
}

// EnsureDeviceUUID returns the node's device UUID, generating and
// persisting one into the config file at path if none is set yet.
func (nc *NodeConfig) EnsureDeviceUUID(path string) (uuid.UUID, error) {
	if id, ok := nc.DeviceUUID(); ok {
		return id, nil
	}
	id := uuid.New()
	if err := nc.SetDeviceUUID(id, path); err != nil {
		return uuid.UUID{}, err
	}
	return id, nil
}

// SetDeviceUUID rewrites the config file at loc, setting Device-UUID to
// id, and updates nc.Global.Device_UUID in place.
func (nc *NodeConfig) SetDeviceUUID(id uuid.UUID, loc string) error {
	if zeroUUID(id) {
		return errors.New("refusing to set an empty device UUID")
	}
	content, err := reloadContent(loc)
	if err != nil {
		return err
	}
	lines := strings.Split(content, "\n")
	lo := argInGlobalLines(lines, deviceUUIDParam)
	if lo == -1 {
		gStart, _, ok := globalLineBoundary(lines)
		if !ok {
			return ErrGlobalSectionNotFound
		}
		lines, err = insertLine(lines, deviceUUIDParam+`="`+id.String()+`"`, gStart+1)
	} else {
		lines, err = updateLine(lines, deviceUUIDParam, `"`+id.String()+`"`, lo)
	}
	if err != nil {
		return err
	}
	if err := writeConfigFile(loc, strings.Join(lines, "\n")); err != nil {
		return err
	}
	nc.Global.Device_UUID = id.String()
	return nil
}

func zeroUUID(id uuid.UUID) bool {
	for _, v := range id {
		if v != 0 {
			return false
		}
	}
	return true
}

func reloadContent(loc string) (string, error) {
	if loc == `` {
		return ``, ErrNotLoadedFromFile
	}
	bts, err := os.ReadFile(loc)
	return string(bts), err
}

func writeConfigFile(loc, content string) error {
	if loc == `` {
		return ErrNotLoadedFromFile
	}
	tmp, err := os.CreateTemp(filepath.Dir(loc), filepath.Base(loc)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, loc)
}

func lineHasParameter(line, parameter string) bool {
	l := strings.ToLower(strings.TrimSpace(line))
	p := strings.ToLower(strings.TrimSpace(parameter))
	if l == `` || p == `` {
		return false
	}
	return strings.HasPrefix(l, p)
}

// globalLineBoundary returns the [start,stop) line range of the [Global]
// section. start is inclusive, stop is exclusive.
func globalLineBoundary(lines []string) (start, stop int, ok bool) {
	start, stop = -1, -1
	for i := range lines {
		if lineHasParameter(lines[i], globalHeader) {
			start = i
			break
		}
	}
	if start == -1 {
		return
	}
	for i := start + 1; i < len(lines); i++ {
		if strings.HasPrefix(strings.TrimSpace(lines[i]), headerStart) {
			stop = i
			ok = true
			return
		}
	}
	stop = len(lines)
	ok = start < stop
	return
}

func argInGlobalLines(lines []string, arg string) int {
	gStart, gEnd, ok := globalLineBoundary(lines)
	if !ok {
		return -1
	}
	for i := gStart; i < gEnd; i++ {
		if lineHasParameter(lines[i], arg) {
			return i
		}
	}
	return -1
}

func insertLine(lines []string, line string, loc int) ([]string, error) {
	if loc < 0 || loc > len(lines) {
		return nil, ErrInvalidLineLocation
	}
	nl := append([]string{}, lines[:loc]...)
	nl = append(nl, line)
	nl = append(nl, lines[loc:]...)
	return nl, nil
}

func updateLine(lines []string, param, value string, loc int) ([]string, error) {
	if loc < 0 || loc >= len(lines) {
		return nil, ErrInvalidLineLocation
	}
	if !lineHasParameter(lines[loc], param) {
		return nil, ErrInvalidLineLocation
	}
	nl := append([]string{}, lines...)
	nl[loc] = param + `=` + value
	return nl, nil
}
