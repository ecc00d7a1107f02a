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

// Package version lets one tag built binaries with version metadata.
//
// Two pieces of metadata are provided:
//   - Version: version number, by convention one provided by 'git describe'
//   - Build:   build id, by convention the git SHA1 the binary has been built from.
//
// Both are set with linker flags, for instance:
//
//	LDFLAGS=-ldflags \
//	  "-X=github.com/intel/wsreclaim/pkg/version.Version=<version> \
//	   -X=github.com/intel/wsreclaim/pkg/version.Build=<build-id>"
package version

import (
	"fmt"
	"io"
)

// Default values of variables we'll override with the linker.
var (
	// Version is our version as given by 'git describe'.
	Version = "unknown"
	// Build is the SHA1 of the repository we've been built from.
	Build = "unknown"
)

// Fprint writes version information about the named binary to w.
func Fprint(w io.Writer, name string) {
	fmt.Fprintf(w, "%s version information:\n", name)
	fmt.Fprintf(w, "  - version: %s\n", Version)
	fmt.Fprintf(w, "  - build:   %s\n", Build)
}
