package deployment

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/stackpulse/stackpulse/internal/interfaces"
	"github.com/stackpulse/stackpulse/internal/utils"
)

const (
	// MaxNameLength bounds a deployment name
	MaxNameLength = 100
	// MaxDescriptionLength bounds a deployment description
	MaxDescriptionLength = 500
	// MaxEnvironmentVariables bounds the variables of one deployment
	MaxEnvironmentVariables = 100

	defaultBuildCommand = "npm run build"
	defaultStartCommand = "npm start"
	defaultNodeVersion  = "18.x"
)

var envKeyPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// DefaultConfiguration is the build configuration of a new deployment
func DefaultConfiguration() interfaces.Configuration {
	return interfaces.Configuration{
		BuildCommand:   defaultBuildCommand,
		StartCommand:   defaultStartCommand,
		NodeVersion:    defaultNodeVersion,
		PackageManager: interfaces.PackageManagerNPM,
	}
}

// normalizeConfiguration trims fields, fills blanks with defaults and
// validates variable keys and the package manager.
func normalizeConfiguration(c interfaces.Configuration) (interfaces.Configuration, error) {
	defaults := DefaultConfiguration()
	out := interfaces.Configuration{
		BuildCommand:   orDefault(c.BuildCommand, defaults.BuildCommand),
		StartCommand:   orDefault(c.StartCommand, defaults.StartCommand),
		NodeVersion:    orDefault(c.NodeVersion, defaults.NodeVersion),
		PackageManager: interfaces.PackageManager(orDefault(string(c.PackageManager), string(defaults.PackageManager))),
	}
	if !out.PackageManager.Valid() {
		return out, fmt.Errorf("%w: unknown package manager %q", ErrInvalidRequest, out.PackageManager)
	}
	if len(c.EnvironmentVariables) > MaxEnvironmentVariables {
		return out, fmt.Errorf("%w: at most %d environment variables are allowed", ErrInvalidRequest, MaxEnvironmentVariables)
	}

	seen := make(map[string]struct{}, len(c.EnvironmentVariables))
	for _, v := range c.EnvironmentVariables {
		key := strings.TrimSpace(v.Key)
		if !envKeyPattern.MatchString(key) {
			return out, fmt.Errorf("%w: invalid environment variable name %q", ErrInvalidRequest, v.Key)
		}
		if _, dup := seen[key]; dup {
			return out, fmt.Errorf("%w: duplicate environment variable %q", ErrInvalidRequest, key)
		}
		seen[key] = struct{}{}
		out.EnvironmentVariables = append(out.EnvironmentVariables, interfaces.EnvironmentVariable{
			Key:      key,
			Value:    v.Value,
			IsSecret: v.IsSecret,
		})
	}
	return out, nil
}

func orDefault(v, def string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return def
}

// MaskConfiguration returns a copy with the values of secret variables
// replaced. Variables whose name looks like a credential count as secret.
func MaskConfiguration(c interfaces.Configuration) interfaces.Configuration {
	out := c
	if c.EnvironmentVariables == nil {
		return out
	}
	out.EnvironmentVariables = make([]interfaces.EnvironmentVariable, len(c.EnvironmentVariables))
	for i, v := range c.EnvironmentVariables {
		if v.IsSecret || utils.IsSensitiveKey(v.Key) {
			v.Value = utils.RedactedValue
		}
		out.EnvironmentVariables[i] = v
	}
	return out
}

func validateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: name is required", ErrInvalidRequest)
	}
	if len([]rune(name)) > MaxNameLength {
		return "", fmt.Errorf("%w: name cannot exceed %d characters", ErrInvalidRequest, MaxNameLength)
	}
	return name, nil
}

func validateDescription(description string) (string, error) {
	description = strings.TrimSpace(description)
	if len([]rune(description)) > MaxDescriptionLength {
		return "", fmt.Errorf("%w: description cannot exceed %d characters", ErrInvalidRequest, MaxDescriptionLength)
	}
	return description, nil
}
