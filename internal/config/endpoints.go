package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Endpoint is one configured delivery origin.
type Endpoint struct {
	Name string `yaml:"name" json:"name"`
	URL  string `yaml:"url" json:"url"`
}

// EndpointSet is the primary origin plus its ordered fallbacks.
type EndpointSet struct {
	Primary   Endpoint   `yaml:"primary" json:"primary"`
	Fallbacks []Endpoint `yaml:"fallbacks" json:"fallbacks"`
	ProbePath string     `yaml:"probe_path" json:"probe_path,omitempty"`
}

// All returns the primary followed by the fallbacks.
func (s EndpointSet) All() []Endpoint {
	out := make([]Endpoint, 0, 1+len(s.Fallbacks))
	out = append(out, s.Primary)
	return append(out, s.Fallbacks...)
}

// LoadEndpointsFile reads a YAML endpoints file:
//
//	primary:
//	  name: bunny
//	  url: https://img.example.com
//	fallbacks:
//	  - url: https://img-eu.example.net
//	probe_path: /favicon.ico
func LoadEndpointsFile(path string) (EndpointSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return EndpointSet{}, err
	}
	var set EndpointSet
	if err := yaml.Unmarshal(data, &set); err != nil {
		return EndpointSet{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if set.Primary.URL == "" {
		return EndpointSet{}, fmt.Errorf("primary url missing in %s", path)
	}
	for i, fb := range set.Fallbacks {
		if fb.URL == "" {
			return EndpointSet{}, fmt.Errorf("fallbacks[%d]: url missing in %s", i, path)
		}
	}
	return set, nil
}
