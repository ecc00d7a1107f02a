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

package version

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFprint(t *testing.T) {
	saved := Version
	defer func() { Version = saved }()
	Version = "v0.1.0-3-gdeadbee"

	buf := &bytes.Buffer{}
	Fprint(buf, "wsreclaim")
	require.Equal(t, "wsreclaim version information:\n  - version: v0.1.0-3-gdeadbee\n  - build:   unknown\n", buf.String())
}
