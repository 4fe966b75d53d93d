package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ComplianceProfile is a regulator-specific configuration profile. A lab
// operating under HIPAA retains and verifies differently than one under
// 21 CFR Part 11; profiles keep those knobs out of code.
type ComplianceProfile struct {
	Name       string             `yaml:"name" json:"name"`
	Code       string             `yaml:"code" json:"code"`
	Frameworks []string           `yaml:"frameworks" json:"frameworks"`
	Retention  RetentionConfig    `yaml:"retention" json:"retention"`
	Verify     VerificationConfig `yaml:"verify" json:"verify"`
	Export     ExportConfig       `yaml:"export" json:"export"`
}

// RetentionConfig defines how long audit data must be kept.
type RetentionConfig struct {
	AuditLogDays     int `yaml:"audit_log_days" json:"audit_log_days"`
	ExportBundleDays int `yaml:"export_bundle_days" json:"export_bundle_days"`
}

// VerificationConfig paces the scheduled background verification pass.
type VerificationConfig struct {
	IntervalHours      int     `yaml:"interval_hours" json:"interval_hours"`
	ChunkSize          int64   `yaml:"chunk_size,omitempty" json:"chunk_size,omitempty"`
	RateLimitPerSecond float64 `yaml:"rate_limit_per_second,omitempty" json:"rate_limit_per_second,omitempty"`
}

// ExportConfig controls evidence bundle generation.
type ExportConfig struct {
	RequireCleanChain bool   `yaml:"require_clean_chain" json:"require_clean_chain"`
	Bucket            string `yaml:"bucket,omitempty" json:"bucket,omitempty"`
	Prefix            string `yaml:"prefix,omitempty" json:"prefix,omitempty"`
}

// LoadProfile loads a compliance profile YAML by code. It searches the
// profiles directory for profile_<code>.yaml.
func LoadProfile(profilesDir, code string) (*ComplianceProfile, error) {
	code = strings.ToLower(code)
	path := filepath.Join(profilesDir, fmt.Sprintf("profile_%s.yaml", code))

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load profile %q: %w", code, err)
	}

	var profile ComplianceProfile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("parse profile %q: %w", code, err)
	}

	if profile.Code == "" {
		profile.Code = code
	}

	return &profile, nil
}

// LoadAllProfiles loads all profile_*.yaml files from the profiles
// directory, keyed by code.
func LoadAllProfiles(profilesDir string) (map[string]*ComplianceProfile, error) {
	matches, err := filepath.Glob(filepath.Join(profilesDir, "profile_*.yaml"))
	if err != nil {
		return nil, err
	}

	profiles := make(map[string]*ComplianceProfile, len(matches))
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}

		var profile ComplianceProfile
		if err := yaml.Unmarshal(data, &profile); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}

		if profile.Code == "" {
			base := filepath.Base(path)
			profile.Code = strings.TrimSuffix(strings.TrimPrefix(base, "profile_"), ".yaml")
		}

		profiles[profile.Code] = &profile
	}

	return profiles, nil
}
