// Copyright 2025 Kadir Pekel
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

// Package utils provides shared helpers for the pipeline.
package utils

import (
	"fmt"
	"os"
	"path/filepath"
)

// EnsureCacheDir ensures the .regender directory exists at the given base
// path. If basePath is empty or ".", it creates ./.regender in the current
// directory. Otherwise, it creates {basePath}/.regender.
//
// This is where a persisted character file (analyze-once, transform-many)
// is written by default when no explicit output path is given.
//
// Returns the full path to the .regender directory and any error.
func EnsureCacheDir(basePath string) (string, error) {
	var dir string
	if basePath == "" || basePath == "." {
		dir = ".regender"
	} else {
		dir = filepath.Join(basePath, ".regender")
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create cache directory at '%s': %w", dir, err)
	}

	return dir, nil
}
