package io

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/slok/doctrans/internal/model"
)

// ProfileYAMLRepository loads the client profile from YAML files.
type ProfileYAMLRepository struct {
	fs fs.FS
}

// NewProfileYAMLRepository creates a new YAML profile repository.
func NewProfileYAMLRepository(filesystem fs.FS) *ProfileYAMLRepository {
	return &ProfileYAMLRepository{fs: filesystem}
}

// GetProfile loads a client profile from a YAML file and returns a validated domain model.
//
// A missing file is not an error, the empty profile is returned instead.
func (r *ProfileYAMLRepository) GetProfile(ctx context.Context, path string) (model.ClientProfile, error) {
	data, err := fs.ReadFile(r.fs, path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return model.ClientProfile{}, nil
		}
		return model.ClientProfile{}, fmt.Errorf("reading profile file: %w", err)
	}

	if ctx.Err() != nil {
		return model.ClientProfile{}, ctx.Err()
	}

	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return model.ClientProfile{}, fmt.Errorf("parsing YAML: %w", err)
	}

	profile, err := p.toModel()
	if err != nil {
		return model.ClientProfile{}, fmt.Errorf("invalid profile: %w", err)
	}

	return profile, nil
}

// Profile represents the YAML structure of the client profile.
type Profile struct {
	Server         string `yaml:"server"`
	APIType        string `yaml:"api_type"`
	APIKey         string `yaml:"api_key"`
	SourceLang     string `yaml:"source_lang"`
	TargetLang     string `yaml:"target_lang"`
	Concurrency    int    `yaml:"concurrency"`
	OutputDir      string `yaml:"output_dir"`
	ReconnectDelay string `yaml:"reconnect_delay"`
	RequestTimeout string `yaml:"request_timeout"`
}

func (p Profile) toModel() (model.ClientProfile, error) {
	if p.Server != "" {
		u, err := url.Parse(p.Server)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return model.ClientProfile{}, fmt.Errorf("server must be an http(s) URL, got: %q", p.Server)
		}
	}

	if p.Concurrency < 0 {
		return model.ClientProfile{}, fmt.Errorf("concurrency must be positive, got: %d", p.Concurrency)
	}

	reconnectDelay, err := parseDuration("reconnect_delay", p.ReconnectDelay)
	if err != nil {
		return model.ClientProfile{}, err
	}
	requestTimeout, err := parseDuration("request_timeout", p.RequestTimeout)
	if err != nil {
		return model.ClientProfile{}, err
	}

	return model.ClientProfile{
		ServerURL:      p.Server,
		APIType:        p.APIType,
		APIKey:         p.APIKey,
		SourceLang:     p.SourceLang,
		TargetLang:     p.TargetLang,
		Concurrency:    p.Concurrency,
		OutputDir:      p.OutputDir,
		ReconnectDelay: reconnectDelay,
		RequestTimeout: requestTimeout,
	}, nil
}

func parseDuration(field, s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", field, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s must be positive, got: %s", field, s)
	}
	return d, nil
}
