package config

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// AssetEntry is one synchronizable file: where it lives remotely, where it is
// installed locally and, optionally, the SHA-256 its content must have.
type AssetEntry struct {
	Name           string `yaml:"name" json:"name"`
	RemotePath     string `yaml:"remotePath" json:"remotePath"`
	TargetPath     string `yaml:"targetPath" json:"targetPath"`
	ExpectedDigest string `yaml:"expectedDigest,omitempty" json:"expectedDigest,omitempty"`
}

// ManifestInfo is the optional remote document that replaces the configured
// asset list for a run.
type ManifestInfo struct {
	Version string       `yaml:"version" json:"version"`
	Assets  []AssetEntry `yaml:"assets" json:"assets"`
}

var digestPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

// HasDigest reports whether the entry declares an expected digest.
func (a AssetEntry) HasDigest() bool {
	return a.ExpectedDigest != ""
}

// UnmarshalJSON accepts the legacy gitHubPath/expectedHash keys next to the
// canonical ones. Key matching is case-insensitive like the rest of encoding/json.
func (a *AssetEntry) UnmarshalJSON(b []byte) error {
	var raw struct {
		Name           string `json:"name"`
		RemotePath     string `json:"remotePath"`
		GitHubPath     string `json:"gitHubPath"`
		TargetPath     string `json:"targetPath"`
		ExpectedDigest string `json:"expectedDigest"`
		ExpectedHash   string `json:"expectedHash"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	a.Name = raw.Name
	a.RemotePath = firstNonEmpty(raw.RemotePath, raw.GitHubPath)
	a.TargetPath = raw.TargetPath
	a.ExpectedDigest = firstNonEmpty(raw.ExpectedDigest, raw.ExpectedHash)
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// NormalizeAssets returns a copy of entries with whitespace trimmed and
// digests lowercased.
func NormalizeAssets(entries []AssetEntry) []AssetEntry {
	out := make([]AssetEntry, len(entries))
	for i, e := range entries {
		out[i] = AssetEntry{
			Name:           strings.TrimSpace(e.Name),
			RemotePath:     strings.TrimSpace(e.RemotePath),
			TargetPath:     strings.TrimSpace(e.TargetPath),
			ExpectedDigest: strings.ToLower(strings.TrimSpace(e.ExpectedDigest)),
		}
	}
	return out
}

// ValidateAssets checks a normalized asset list: every field set, names
// unique after CacheKey, digests well formed.
func ValidateAssets(entries []AssetEntry) error {
	seen := make(map[string]int, len(entries))
	for i, e := range entries {
		switch {
		case e.Name == "":
			return fmt.Errorf("asset %d: name is required", i)
		case e.Name == "." || e.Name == "..":
			return fmt.Errorf("asset %d: name %q is not a valid cache key", i, e.Name)
		case e.RemotePath == "":
			return fmt.Errorf("asset %q: remotePath is required", e.Name)
		case e.TargetPath == "":
			return fmt.Errorf("asset %q: targetPath is required", e.Name)
		}
		if e.ExpectedDigest != "" && !digestPattern.MatchString(e.ExpectedDigest) {
			return fmt.Errorf("asset %q: expectedDigest must be 64 lowercase hex characters", e.Name)
		}
		key := CacheKey(e.Name)
		if prev, ok := seen[key]; ok {
			if entries[prev].Name == e.Name {
				return fmt.Errorf("asset %q: duplicate name (also asset %d)", e.Name, prev)
			}
			return fmt.Errorf("asset %q: duplicate name, shares cache key %q with asset %q", e.Name, key, entries[prev].Name)
		}
		seen[key] = i
	}
	return nil
}

// UnmarshalJSON tolerates a numeric version, which YAML manifests produce
// for values like `version: 1.2`.
func (m *ManifestInfo) UnmarshalJSON(b []byte) error {
	var raw struct {
		Version json.RawMessage `json:"version"`
		Assets  []AssetEntry    `json:"assets"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	m.Assets = raw.Assets
	m.Version = ""
	if len(raw.Version) == 0 || string(raw.Version) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw.Version, &s); err == nil {
		m.Version = s
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(raw.Version, &n); err != nil {
		return fmt.Errorf("version must be a string or number: %w", err)
	}
	m.Version = n.String()
	return nil
}
