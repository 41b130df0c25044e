// Package launchd renders launchd job descriptors and drives launchctl.
package launchd

import (
	"fmt"
	"os"
	"path/filepath"

	"howett.net/plist"

	"github.com/teranos/dawn/errors"
)

// CalendarInterval fires the job at a wall-clock time every day
type CalendarInterval struct {
	Hour   int `plist:"Hour"`
	Minute int `plist:"Minute"`
}

// String formats the interval as HH:MM
func (c CalendarInterval) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// Descriptor is a launchd agent property list
type Descriptor struct {
	Label                 string            `plist:"Label"`
	ProgramArguments      []string          `plist:"ProgramArguments"`
	WorkingDirectory      string            `plist:"WorkingDirectory,omitempty"`
	StartCalendarInterval CalendarInterval  `plist:"StartCalendarInterval"`
	StandardOutPath       string            `plist:"StandardOutPath,omitempty"`
	StandardErrorPath     string            `plist:"StandardErrorPath,omitempty"`
	EnvironmentVariables  map[string]string `plist:"EnvironmentVariables,omitempty"`
	RunAtLoad             bool              `plist:"RunAtLoad"`
}

// Validate checks the fields launchd requires
func (d *Descriptor) Validate() error {
	if d.Label == "" {
		return errors.Wrap(errors.ErrInvalidConfig, "descriptor label is empty")
	}
	if len(d.ProgramArguments) == 0 {
		return errors.Wrap(errors.ErrInvalidConfig, "descriptor has no program arguments")
	}
	if !filepath.IsAbs(d.ProgramArguments[0]) {
		// launchd does not search PATH
		return errors.Wrapf(errors.ErrInvalidConfig, "program %q must be an absolute path", d.ProgramArguments[0])
	}
	return nil
}

// Render encodes the descriptor as an XML property list
func (d *Descriptor) Render() ([]byte, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	data, err := plist.MarshalIndent(d, plist.XMLFormat, "\t")
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode property list")
	}
	return data, nil
}

// Write renders the descriptor into path. A failed write is not rolled back.
func (d *Descriptor) Write(path string) error {
	data, err := d.Render()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Setupf(err, "write descriptor %s", path)
	}
	return nil
}

// LoadDescriptor reads back an installed descriptor, so status can tell
// whether it still matches the configuration
func LoadDescriptor(path string) (*Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read descriptor %s", path)
	}

	var d Descriptor
	if _, err := plist.Unmarshal(data, &d); err != nil {
		return nil, errors.Wrapf(err, "failed to decode %s", path)
	}
	return &d, nil
}
