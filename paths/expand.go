// Copyright 2016 Google Inc. All rights reserved.
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

package paths

import (
	"fmt"
	"strings"
)

// ExpandVariables substitutes $(Name) references in s using vars, the
// expand-path-variables vocabulary rules files reference ($(EngineDir),
// $(ProjectDir), $(EnterpriseDir), $(PluginDir), $(ModuleDir),
// $(BinaryOutputDir), $(TargetOutputDir)). $$ collapses to a literal $.
// An undefined variable name is an error, the same strictness
// android/expand.go's Expand applies to product-config variable
// references, generalized here from product-config names to this
// module's path-variable names.
func ExpandVariables(s string, vars map[string]string) (string, error) {
	buf := make([]byte, 0, len(s))
	i := 0
	for j := 0; j < len(s); j++ {
		if s[j] != '$' {
			continue
		}
		if j+1 >= len(s) {
			return "", fmt.Errorf("paths: expected character after '$'")
		}
		buf = append(buf, s[i:j]...)
		value, width, err := getVariable(s[j+1:], vars)
		if err != nil {
			return "", err
		}
		buf = append(buf, value...)
		j += width
		i = j + 1
	}
	return string(buf) + s[i:], nil
}

func getVariable(s string, vars map[string]string) (value string, width int, err error) {
	switch s[0] {
	case '(':
		for i := 1; i < len(s); i++ {
			if s[i] == ')' {
				name := strings.TrimSpace(s[1:i])
				v, ok := vars[name]
				if !ok {
					return "", i + 1, fmt.Errorf("paths: undefined variable %q", name)
				}
				return v, i + 1, nil
			}
		}
		return "", len(s), fmt.Errorf("paths: missing ')' in variable reference")
	case '$':
		return "$", 1, nil
	default:
		return "", 0, fmt.Errorf("paths: expected '(' after '$', did you mean $(%s)?", s[:1])
	}
}
