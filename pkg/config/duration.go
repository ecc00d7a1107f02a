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

package config

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/pkg/errors"
)

// Duration is a time.Duration which implements JSON marshalling/unmarshalling.
// Besides duration strings ("10s", "1m30s") plain numbers are accepted as
// (possibly fractional) seconds.
type Duration time.Duration

// MarshalJSON is the JSON marshaller for (time.)Duration.
func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte("\"" + time.Duration(d).String() + "\""), nil
}

// UnmarshalJSON is the JSON unmarshaller for (time.)Duration.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		parsed, err := ParseDuration(str)
		if err != nil {
			return err
		}
		*d = parsed
		return nil
	}

	var secs float64
	if err := json.Unmarshal(data, &secs); err != nil {
		return errors.Errorf("invalid Duration %s", string(data))
	}
	*d = Duration(secs * float64(time.Second))
	return nil
}

// ParseDuration parses a duration string or a number of seconds.
func ParseDuration(str string) (Duration, error) {
	if secs, err := strconv.ParseFloat(str, 64); err == nil {
		return Duration(secs * float64(time.Second)), nil
	}
	parsed, err := time.ParseDuration(str)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid Duration %q", str)
	}
	return Duration(parsed), nil
}

// String returns the value of Duration as a string.
func (d Duration) String() string {
	return time.Duration(d).String()
}

// Set implements pflag.Value.
func (d *Duration) Set(value string) error {
	parsed, err := ParseDuration(value)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Type implements pflag.Value.
func (d *Duration) Type() string {
	return "duration"
}
