// Copyright 2015 Google Inc. All rights reserved.
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

package receipt

import (
	"os"

	"github.com/klswkj/buildtarget/paths"
)

func writeFile(file paths.Path, data []byte) error {
	if err := os.MkdirAll(file.Dir().String(), 0o755); err != nil {
		return err
	}
	return os.WriteFile(file.String(), data, 0o644)
}
