package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/wolfeidau/payroll/internal/address"
	"gopkg.in/yaml.v3"
)

// Roster is a YAML file listing workers to register with an organization.
//
//	organization: 7Yp1...
//	workers:
//	  - identity: 9xQe...
//	    salary: 1500000000
//	    name: alice
type Roster struct {
	Organization address.Address `yaml:"organization"`
	Workers      []RosterWorker  `yaml:"workers"`
}

// RosterWorker is one worker of a roster. Name is a label for output only.
type RosterWorker struct {
	Name     string          `yaml:"name,omitempty"`
	Identity address.Address `yaml:"identity"`
	Salary   uint64          `yaml:"salary"`
}

// LoadRoster reads and validates a roster file.
func LoadRoster(path string) (*Roster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read roster: %w", err)
	}

	var roster Roster
	if err := yaml.Unmarshal(data, &roster); err != nil {
		return nil, fmt.Errorf("failed to parse roster %s: %w", path, err)
	}

	if err := roster.Validate(); err != nil {
		return nil, fmt.Errorf("invalid roster %s: %w", path, err)
	}

	return &roster, nil
}

// Validate checks the roster before anything is submitted.
func (r *Roster) Validate() error {
	if len(r.Workers) == 0 {
		return errors.New("no workers listed")
	}

	seen := make(map[address.Address]int, len(r.Workers))
	for i, w := range r.Workers {
		if w.Identity.IsZero() {
			return fmt.Errorf("worker %d: identity is required", i+1)
		}
		if w.Salary == 0 {
			return fmt.Errorf("worker %d (%s): salary must be greater than zero", i+1, w.Identity)
		}
		if prev, ok := seen[w.Identity]; ok {
			return fmt.Errorf("worker %d: identity %s already listed as worker %d", i+1, w.Identity, prev)
		}
		seen[w.Identity] = i + 1
	}

	return nil
}
