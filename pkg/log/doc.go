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

/*
Package log implements per-source, leveled logging.

Every component asks for its own Logger by source name:

	var log = logger.Get("reclaim")

Messages below the configured severity are suppressed. Debug messages are
emitted only for sources with debugging enabled. The following debug
selectors are understood by SetDebug:

	reclaim,sampler     enable debugging for the listed sources
	*, all              enable debugging for every source
	off:cache           disable debugging for the listed source

Messages are emitted by the active Backend. The default backend is klog,
which prefixes every line with severity and timestamp. The fmt backend
writes the same information to an io.Writer and is mostly useful in tests.
*/
package log
