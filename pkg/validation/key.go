// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation checks user-provided identifiers before they reach
// storage keys, file names or metric labels.
package validation

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/cockroachdb/errors"
)

// MaxKeyLength bounds a baseline key in bytes. Percent-encoding in the
// file store can triple a key, so this stays well under common file name
// limits.
const MaxKeyLength = 80

// ErrInvalidKey indicates a key that cannot be stored.
var ErrInvalidKey = errors.New("invalid key")

// ValidateKey checks a baseline key.
//
// Valid keys:
//   - 1 to MaxKeyLength bytes of valid UTF-8
//   - no control characters
//   - no leading or trailing whitespace
//   - not "." or ".."
//
// Slashes are allowed; "render/frame" is a typical key.
//
// Example:
//
//	if err := validation.ValidateKey(key); err != nil {
//	    return errors.Mark(err, ErrInvalidRun)
//	}
func ValidateKey(key string) error {
	if key == "" {
		return errors.Wrap(ErrInvalidKey, "key must not be empty")
	}
	if len(key) > MaxKeyLength {
		return errors.Wrapf(ErrInvalidKey, "key is %d bytes, limit is %d", len(key), MaxKeyLength)
	}
	if !utf8.ValidString(key) {
		return errors.Wrapf(ErrInvalidKey, "key %q is not valid UTF-8", key)
	}
	if strings.TrimSpace(key) != key {
		return errors.Wrapf(ErrInvalidKey, "key %q has surrounding whitespace", key)
	}
	if key == "." || key == ".." {
		return errors.Wrapf(ErrInvalidKey, "key %q is reserved", key)
	}
	for _, r := range key {
		if unicode.IsControl(r) {
			return errors.Wrapf(ErrInvalidKey, "key %q contains a control character", key)
		}
	}
	return nil
}

// ValidateKeys validates multiple keys.
// Returns an error listing all invalid keys if any fail validation.
func ValidateKeys(keys []string) error {
	var invalid []string
	for _, k := range keys {
		if err := ValidateKey(k); err != nil {
			invalid = append(invalid, k)
		}
	}
	if len(invalid) > 0 {
		return errors.Wrapf(ErrInvalidKey, "invalid keys: %q", invalid)
	}
	return nil
}

// SanitizeKey trims surrounding whitespace and validates the result.
func SanitizeKey(key string) (string, error) {
	trimmed := strings.TrimSpace(key)
	if err := ValidateKey(trimmed); err != nil {
		return "", err
	}
	return trimmed, nil
}
