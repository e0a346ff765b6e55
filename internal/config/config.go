// Package config reads the shell configuration file: the remote endpoint and the static
// user table. YAML and JSON documents are both accepted.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/MarkoPoloResearchLab/ampshell/internal/identity"
)

const (
	readConfigError  = "read config file"
	parseConfigError = "parse config file"
)

// ErrNoUsers reports a configuration without any account.
var ErrNoUsers = errors.New("config defines no users")

// File is the on-disk configuration document.
type File struct {
	BaseURL string                      `yaml:"baseUrl"`
	APIPath string                      `yaml:"apiPath"`
	Users   map[string]identity.Account `yaml:"users"`
}

// ReadFile loads and parses the configuration at path.
func ReadFile(path string) (File, error) {
	payload, readErr := os.ReadFile(path)
	if readErr != nil {
		return File{}, fmt.Errorf("%s %s: %w", readConfigError, path, readErr)
	}
	parsed, parseErr := Parse(payload)
	if parseErr != nil {
		return File{}, fmt.Errorf("%s: %w", path, parseErr)
	}
	return parsed, nil
}

// Parse decodes a configuration document. Usernames are kept verbatim, so keys with dots
// or upper-case letters survive.
func Parse(payload []byte) (File, error) {
	var parsed File
	decoder := yaml.NewDecoder(bytes.NewReader(payload))
	decoder.KnownFields(true)
	if decodeErr := decoder.Decode(&parsed); decodeErr != nil && !errors.Is(decodeErr, io.EOF) {
		return File{}, fmt.Errorf("%s: %w", parseConfigError, decodeErr)
	}
	parsed.BaseURL = strings.TrimSpace(parsed.BaseURL)
	parsed.APIPath = strings.TrimSpace(parsed.APIPath)
	return parsed, nil
}

// Provider builds the static identity table from the configured users.
func (file File) Provider() (*identity.StaticTable, error) {
	if len(file.Users) == 0 {
		return nil, ErrNoUsers
	}
	return identity.NewStaticTable(file.Users)
}
