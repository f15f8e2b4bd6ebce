/*
 * Copyright 2024-2025 Raamsri Kumar <raam@tinkershack.in>
 * Copyright 2024-2025 The StrataSTOR Authors and Contributors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     https://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package lifecycle

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReadPIDFile(t *testing.T) {
	dir := t.TempDir()

	t.Run("absent file", func(t *testing.T) {
		_, ok, err := readPIDFile(filepath.Join(dir, "missing.pid"))
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("empty file is swept", func(t *testing.T) {
		path := filepath.Join(dir, "empty.pid")
		require.NoError(t, os.WriteFile(path, nil, 0644))

		_, ok, err := readPIDFile(path)
		require.NoError(t, err)
		require.False(t, ok)
		_, statErr := os.Stat(path)
		require.True(t, os.IsNotExist(statErr))
	})

	t.Run("garbage content rejected", func(t *testing.T) {
		path := filepath.Join(dir, "garbage.pid")
		require.NoError(t, os.WriteFile(path, []byte("not-a-pid"), 0644))

		_, _, err := readPIDFile(path)
		require.Error(t, err)
	})
}

func TestEnsureSingleInstance(t *testing.T) {
	t.Run("rejects a live owner", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "dropboxd.pid")
		// Our own PID is certainly alive.
		require.NoError(t, os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0644))

		require.Error(t, EnsureSingleInstance(path))
	})

	t.Run("claims over a stale owner", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "dropboxd.pid")
		// A PID far past any plausible pid_max on a test host.
		require.NoError(t, os.WriteFile(path, []byte("99999999"), 0644))

		require.NoError(t, EnsureSingleInstance(path))

		raw, err := os.ReadFile(path)
		require.NoError(t, err)
		require.Equal(t, strconv.Itoa(os.Getpid()), string(raw))
	})
}
