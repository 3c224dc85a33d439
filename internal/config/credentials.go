/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Course groups teams sharing one set of platform credentials.
type Course struct {
	Teams         []string `yaml:"teams"`
	GitHubToken   string   `yaml:"github_token"`
	GitHubOrg     string   `yaml:"github_org"`
	TaigaUsername string   `yaml:"taiga_username"`
	TaigaPassword string   `yaml:"taiga_password"`
	TaigaSlug     string   `yaml:"taiga_slug"`
}

type Credentials struct {
	Courses map[string]Course `yaml:"courses"`

	fallback Course
}

// LoadCredentials reads the per-course file. A missing file is not an error:
// every lookup then falls back to the global values from cfg.
func LoadCredentials(path string, cfg Config) (*Credentials, error) {
	c := &Credentials{Courses: map[string]Course{}}
	b, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("credentials %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(b, c); err != nil {
			return nil, fmt.Errorf("credentials %s: %w", path, err)
		}
	}
	c.fallback = Course{GitHubToken: cfg.GitHubToken, TaigaUsername: cfg.TaigaUsername, TaigaPassword: cfg.TaigaPassword}
	return c, nil
}

// CourseFor returns the course a team belongs to.
func (c *Credentials) CourseFor(prj string) (Course, bool) {
	for _, name := range c.courseNames() {
		co := c.Courses[name]
		for _, t := range co.Teams {
			if t == prj {
				return co, true
			}
		}
	}
	return Course{}, false
}

// Resolve returns the course value of field for prj, or the global fallback.
// Fields: github_token, github_org, taiga_username, taiga_password, taiga_slug.
func (c *Credentials) Resolve(prj, field string) string {
	co, _ := c.CourseFor(prj)
	if v := co.field(field); v != "" {
		return v
	}
	return c.fallback.field(field)
}

// Teams lists every team of every course, in stable order.
func (c *Credentials) Teams() []string {
	var out []string
	for _, name := range c.courseNames() {
		out = append(out, c.Courses[name].Teams...)
	}
	return out
}

func (c *Credentials) courseNames() []string {
	names := make([]string, 0, len(c.Courses))
	for n := range c.Courses {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (co Course) field(name string) string {
	switch name {
	case "github_token":
		return co.GitHubToken
	case "github_org":
		return co.GitHubOrg
	case "taiga_username":
		return co.TaigaUsername
	case "taiga_password":
		return co.TaigaPassword
	case "taiga_slug":
		return co.TaigaSlug
	}
	return ""
}
