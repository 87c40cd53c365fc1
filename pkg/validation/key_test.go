// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package validation

import (
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
)

func TestValidateKey(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		wantErr bool
	}{
		{"simple", "frame", false},
		{"with slash", "render/frame", false},
		{"bench name", "Frame-8", false},
		{"sub benchmark", "Decode/size=1KB-8", false},
		{"unicode", "rendu/image-μs", false},
		{"max length", strings.Repeat("a", MaxKeyLength), false},

		{"empty", "", true},
		{"too long", strings.Repeat("a", MaxKeyLength+1), true},
		{"leading space", " frame", true},
		{"trailing newline", "frame\n", true},
		{"embedded control", "fr\x00ame", true},
		{"tab", "fr\tame", true},
		{"dot", ".", true},
		{"dot dot", "..", true},
		{"invalid utf8", "fr\xffame", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateKey(tt.key)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateKey(%q) error = %v, wantErr %v", tt.key, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidKey) {
				t.Errorf("ValidateKey(%q) error %v is not ErrInvalidKey", tt.key, err)
			}
		})
	}
}

func TestValidateKeys(t *testing.T) {
	tests := []struct {
		name    string
		keys    []string
		wantErr bool
	}{
		{"all valid", []string{"a", "b/c", "Frame-8"}, false},
		{"one invalid", []string{"a", "", "c"}, true},
		{"all invalid", []string{".", ".."}, true},
		{"empty slice", []string{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateKeys(tt.keys)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateKeys(%v) error = %v, wantErr %v", tt.keys, err, tt.wantErr)
			}
		})
	}
}

func TestSanitizeKey(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"already clean", "render/frame", "render/frame", false},
		{"surrounding spaces", "  render/frame  ", "render/frame", false},
		{"trailing newline", "frame\n", "frame", false},
		{"blank", "   ", "", true},
		{"control inside", "a\x01b", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SanitizeKey(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("SanitizeKey(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("SanitizeKey(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
