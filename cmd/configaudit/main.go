package main

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/MarkoPoloResearchLab/ampshell/internal/identity"
)

const (
	defaultConfigPath    = "config.yml"
	configKeyBaseURL     = "baseUrl"
	configKeyAPIPath     = "apiPath"
	configKeyUsers       = "users"
	accountKeyPassword   = "password"
	accountKeyRole       = "role"
	accountKeyName       = "name"
	accountKeyInitials   = "initials"
	legacyInstallerRole  = "monteur"
	maxInitialsRuneCount = 3
)

var (
	errAuditFailed   = errors.New("config_audit_failed")
	localURLPattern  = regexp.MustCompile(`https?://(?:localhost|127\.0\.0\.1)(?::[0-9]{2,5})?`)
	knownConfigKeys  = map[string]struct{}{configKeyBaseURL: {}, configKeyAPIPath: {}, configKeyUsers: {}}
	knownAccountKeys = map[string]struct{}{accountKeyPassword: {}, accountKeyRole: {}, accountKeyName: {}, accountKeyInitials: {}}
	templateRoots    = []string{
		filepath.Join("internal", "httpapi", "templates"),
		filepath.Join("internal", "shell", "templates"),
	}
)

type auditResult struct {
	errors   []string
	warnings []string
}

func (result *auditResult) addError(message string, arguments ...any) {
	result.errors = append(result.errors, fmt.Sprintf(message, arguments...))
}

func (result *auditResult) addWarning(message string, arguments ...any) {
	result.warnings = append(result.warnings, fmt.Sprintf(message, arguments...))
}

func (result auditResult) ok() bool {
	return len(result.errors) == 0
}

func main() {
	configPath := defaultConfigPath
	if len(os.Args) > 1 && strings.TrimSpace(os.Args[1]) != "" {
		configPath = os.Args[1]
	}

	result := runAudit(configPath)
	checkTemplatesForLocalURLs(templateRoots, &result)
	sort.Strings(result.errors)
	sort.Strings(result.warnings)

	for _, warning := range result.warnings {
		_, _ = fmt.Fprintf(os.Stdout, "WARN: %s\n", warning)
	}
	for _, errorMessage := range result.errors {
		_, _ = fmt.Fprintf(os.Stderr, "ERROR: %s\n", errorMessage)
	}
	if !result.ok() {
		_, _ = fmt.Fprintf(os.Stderr, "config-audit failed\n")
		os.Exit(1)
	}
	_, _ = fmt.Fprintf(os.Stdout, "config-audit OK\n")
}

func runAudit(configPath string) auditResult {
	var result auditResult

	document, readErr := os.ReadFile(configPath)
	if readErr != nil {
		result.addError("read config file %s: %v", configPath, readErr)
		return result
	}

	root, parseErr := parseDocument(document)
	if parseErr != nil {
		result.addError("parse config file %s: %v", configPath, parseErr)
		return result
	}

	topLevel := mappingEntries(root)
	for key, entry := range topLevel {
		if _, known := knownConfigKeys[key]; !known {
			result.addError("line %d: unknown key %q", entry.key.Line, key)
		}
	}

	checkBaseURL(topLevel, &result)
	checkAPIPath(topLevel, &result)
	checkUsers(topLevel, &result)

	return result
}

func parseDocument(document []byte) (*yaml.Node, error) {
	var documentNode yaml.Node
	if decodeErr := yaml.Unmarshal(document, &documentNode); decodeErr != nil {
		return nil, decodeErr
	}
	if documentNode.Kind != yaml.DocumentNode || len(documentNode.Content) == 0 {
		return nil, fmt.Errorf("%w: empty document", errAuditFailed)
	}
	root := documentNode.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: top level must be a mapping", errAuditFailed)
	}
	return root, nil
}

type mappingEntry struct {
	key   *yaml.Node
	value *yaml.Node
}

func mappingEntries(mapping *yaml.Node) map[string]mappingEntry {
	entries := make(map[string]mappingEntry, len(mapping.Content)/2)
	for index := 0; index+1 < len(mapping.Content); index += 2 {
		keyNode := mapping.Content[index]
		entries[keyNode.Value] = mappingEntry{key: keyNode, value: mapping.Content[index+1]}
	}
	return entries
}

func scalarValue(entries map[string]mappingEntry, key string) (string, int, bool) {
	entry, found := entries[key]
	if !found || entry.value.Kind != yaml.ScalarNode {
		return "", 0, false
	}
	return strings.TrimSpace(entry.value.Value), entry.value.Line, true
}

func checkBaseURL(topLevel map[string]mappingEntry, result *auditResult) {
	rawBaseURL, line, found := scalarValue(topLevel, configKeyBaseURL)
	if !found || rawBaseURL == "" {
		result.addWarning("%s is not set; the server needs AMP_BASE_URL or --base-url", configKeyBaseURL)
		return
	}
	parsedURL, parseErr := url.Parse(rawBaseURL)
	if parseErr != nil || (parsedURL.Scheme != "http" && parsedURL.Scheme != "https") || parsedURL.Host == "" {
		result.addError("line %d: %s %q must be an absolute http(s) url", line, configKeyBaseURL, rawBaseURL)
		return
	}
	if parsedURL.Scheme == "http" && !localURLPattern.MatchString(rawBaseURL) {
		result.addWarning("line %d: %s %q is not https", line, configKeyBaseURL, rawBaseURL)
	}
	if parsedURL.Path != "" && parsedURL.Path != "/" {
		result.addWarning("line %d: %s %q carries a path; put it in %s", line, configKeyBaseURL, rawBaseURL, configKeyAPIPath)
	}
}

func checkAPIPath(topLevel map[string]mappingEntry, result *auditResult) {
	apiPath, line, found := scalarValue(topLevel, configKeyAPIPath)
	if !found || apiPath == "" {
		result.addWarning("%s is not set; requests go to the base url", configKeyAPIPath)
		return
	}
	if !strings.HasPrefix(apiPath, "/") {
		result.addError("line %d: %s %q must start with /", line, configKeyAPIPath, apiPath)
	}
}

func checkUsers(topLevel map[string]mappingEntry, result *auditResult) {
	usersEntry, found := topLevel[configKeyUsers]
	if !found || usersEntry.value.Kind != yaml.MappingNode || len(usersEntry.value.Content) == 0 {
		result.addError("%s: at least one user is required", configKeyUsers)
		return
	}

	seenFolded := make(map[string]string)
	for index := 0; index+1 < len(usersEntry.value.Content); index += 2 {
		usernameNode := usersEntry.value.Content[index]
		accountNode := usersEntry.value.Content[index+1]
		username := usernameNode.Value

		folded := strings.ToLower(username)
		if previous, duplicate := seenFolded[folded]; duplicate {
			result.addWarning("line %d: user %q differs from %q only by case", usernameNode.Line, username, previous)
		} else {
			seenFolded[folded] = username
		}

		if accountNode.Kind != yaml.MappingNode {
			result.addError("line %d: user %q must be a mapping", usernameNode.Line, username)
			continue
		}
		checkAccount(username, usernameNode.Line, mappingEntries(accountNode), result)
	}
}

func checkAccount(username string, line int, account map[string]mappingEntry, result *auditResult) {
	for key, entry := range account {
		if _, known := knownAccountKeys[key]; !known {
			result.addError("line %d: user %q has unknown key %q", entry.key.Line, username, key)
		}
	}

	if password, _, _ := scalarValue(account, accountKeyPassword); password == "" {
		result.addError("line %d: user %q has an empty password", line, username)
	}

	rawRole, roleLine, _ := scalarValue(account, accountKeyRole)
	if _, roleErr := identity.ParseRole(rawRole); roleErr != nil {
		result.addError("line %d: user %q: %v", maxInt(roleLine, line), username, roleErr)
	} else if strings.EqualFold(rawRole, legacyInstallerRole) {
		result.addWarning("line %d: user %q uses legacy role %q; prefer %q", roleLine, username, rawRole, identity.RoleInstaller)
	}

	if name, _, _ := scalarValue(account, accountKeyName); name == "" {
		result.addWarning("line %d: user %q has no display name", line, username)
	}

	initials, initialsLine, _ := scalarValue(account, accountKeyInitials)
	switch {
	case initials == "":
		result.addWarning("line %d: user %q has no initials", line, username)
	case utf8.RuneCountInString(initials) > maxInitialsRuneCount:
		result.addWarning("line %d: user %q initials %q are longer than %d characters", initialsLine, username, initials, maxInitialsRuneCount)
	}
}

func maxInt(left int, right int) int {
	if left > right {
		return left
	}
	return right
}

func checkTemplatesForLocalURLs(roots []string, result *auditResult) {
	for _, root := range roots {
		info, statErr := os.Stat(root)
		if statErr != nil {
			if os.IsNotExist(statErr) {
				continue
			}
			result.addError("template scan: stat %s: %v", root, statErr)
			continue
		}
		if !info.IsDir() {
			continue
		}
		if walkErr := scanTemplateRoot(root, result); walkErr != nil {
			result.addError("template scan: %v", walkErr)
		}
	}
}

func scanTemplateRoot(root string, result *auditResult) error {
	return filepath.WalkDir(root, func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if entry.IsDir() || filepath.Ext(path) != ".tmpl" {
			return nil
		}
		payload, readErr := os.ReadFile(path)
		if readErr != nil {
			return readErr
		}
		for _, match := range localURLPattern.FindAllString(string(payload), -1) {
			result.addError("template %s references local url %s", path, match)
		}
		return nil
	})
}
