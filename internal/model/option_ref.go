package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// OptionRef points at an option by its zero-based index. On the wire it is
// accepted either as a number (1) or as a letter ("B").
type OptionRef int

func (o OptionRef) Letter() string {
	if o < 0 || o > 25 {
		return strconv.Itoa(int(o))
	}
	return string(rune('A' + int(o)))
}

func (o OptionRef) InRange(options []string) bool {
	return int(o) >= 0 && int(o) < len(options)
}

func (o OptionRef) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Itoa(int(o))), nil
}

func (o *OptionRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		ref, err := ParseOptionRef(s)
		if err != nil {
			return err
		}
		*o = ref
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("option must be an index or a letter: %w", err)
	}
	*o = OptionRef(n)
	return nil
}

// ParseOptionRef accepts "A".."Z" (case-insensitive) or a decimal index.
func ParseOptionRef(s string) (OptionRef, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty option reference")
	}
	if n, err := strconv.Atoi(s); err == nil {
		return OptionRef(n), nil
	}
	if len(s) == 1 {
		c := strings.ToUpper(s)[0]
		if c >= 'A' && c <= 'Z' {
			return OptionRef(c - 'A'), nil
		}
	}
	return 0, fmt.Errorf("invalid option reference %q", s)
}
