// Copyright 2024 Intel Corporation. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package testutils

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/hashicorp/go-multierror"
)

// VerifyEqual checks that two values (including structures) are equal, or else it fails the test.
func VerifyEqual(t *testing.T, valueName string, expectedValue interface{}, seenValue interface{}) bool {
	t.Helper()
	if diff := cmp.Diff(expectedValue, seenValue); diff != "" {
		t.Errorf("unexpected %s value (-expected +seen):\n%s", valueName, diff)
		return false
	}
	return true
}

// VerifyError checks that an error wraps a multierror with the expected
// number of errors and substrings, or else it fails the test. A zero count
// expects no error.
func VerifyError(t *testing.T, err error, expectedCount int, expectedSubstrings []string) bool {
	t.Helper()
	if expectedCount == 0 {
		if err != nil {
			t.Errorf("expected no errors, but got %v", err)
			return false
		}
		return true
	}
	if err == nil {
		t.Errorf("expected %d errors, got nil", expectedCount)
		return false
	}

	var merr *multierror.Error
	if !errors.As(err, &merr) {
		t.Errorf("expected %d errors, but got %#v instead of multierror", expectedCount, err)
		return false
	}
	if len(merr.Errors) != expectedCount {
		t.Errorf("expected %d errors, but got %d: %v", expectedCount, len(merr.Errors), merr)
		return false
	}

	ok := true
	for _, substring := range expectedSubstrings {
		if !strings.Contains(err.Error(), substring) {
			t.Errorf("expected error with substring %q, got %q", substring, err)
			ok = false
		}
	}
	return ok
}
