package model

import (
	"bytes"
	"fmt"
	"strconv"
)

// FlexInt is an int64 that accepts both JSON numbers and string-encoded
// numbers. The ezyVet API is inconsistent about which one it returns.
type FlexInt int64

func (v *FlexInt) UnmarshalJSON(b []byte) error {
	s := string(bytes.Trim(b, `"`))
	if s == "" || s == "null" {
		*v = 0
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			return fmt.Errorf("cannot parse %q as integer: %w", s, err)
		}
		n = int64(f)
	}
	*v = FlexInt(n)
	return nil
}

func (v FlexInt) Int64() int64 {
	return int64(v)
}

// FlexBool accepts JSON booleans plus the 0/1 and "0"/"1" encodings the
// API uses interchangeably.
type FlexBool bool

func (v *FlexBool) UnmarshalJSON(b []byte) error {
	switch s := string(bytes.Trim(b, `"`)); s {
	case "true", "1":
		*v = true
	case "false", "0", "", "null":
		*v = false
	default:
		return fmt.Errorf("cannot parse %q as boolean", s)
	}
	return nil
}

func (v FlexBool) Bool() bool {
	return bool(v)
}
