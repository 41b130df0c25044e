// Package display renders command results as text, JSON, or YAML.
package display

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/teranos/dawn/errors"
)

// Format selects how a command prints its result
type Format string

const (
	Text Format = "text"
	JSON Format = "json"
	YAML Format = "yaml"
	TOML Format = "toml"
)

// ParseFormat validates a --format value against the formats a command supports
func ParseFormat(s string, supported ...Format) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	for _, candidate := range supported {
		if f == candidate {
			return f, nil
		}
	}

	names := make([]string, len(supported))
	for i, candidate := range supported {
		names[i] = string(candidate)
	}
	return "", errors.Newf("unsupported format: %s (supported: %s)", s, strings.Join(names, ", "))
}

// FormatFlag reads the command's --format flag. A set --json flag wins.
func FormatFlag(cmd *cobra.Command, supported ...Format) (Format, error) {
	if cmd == nil {
		return Text, nil
	}
	if jsonFlag, err := cmd.Flags().GetBool("json"); err == nil && jsonFlag {
		return JSON, nil
	}
	raw, err := cmd.Flags().GetString("format")
	if err != nil {
		return Text, nil
	}
	return ParseFormat(raw, supported...)
}

// MarshalJSON marshals with indentation for human consumption
func MarshalJSON(v interface{}) ([]byte, error) {
	return json.MarshalIndent(v, "", "  ")
}

// Write encodes v to w in a structured format. Text has no generic
// encoding; callers render it themselves.
func Write(w io.Writer, format Format, v interface{}) error {
	var (
		data []byte
		err  error
	)
	switch format {
	case JSON:
		data, err = MarshalJSON(v)
		if err == nil {
			data = append(data, '\n')
		}
	case YAML:
		data, err = yaml.Marshal(v)
	case TOML:
		data, err = toml.Marshal(v)
	default:
		return errors.Newf("format %s has no structured encoding", format)
	}
	if err != nil {
		return errors.Wrapf(err, "failed to marshal %s", format)
	}

	_, err = w.Write(data)
	return err
}

// OutputJSON prints v as indented JSON to stdout
func OutputJSON(v interface{}) error {
	data, err := MarshalJSON(v)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	fmt.Println(string(data))
	return nil
}
