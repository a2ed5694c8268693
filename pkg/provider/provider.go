// Copyright 2025 walteh LLC
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

package provider

import (
	"context"
	"sort"
	"strings"
	"sync"

	"gitlab.com/tozd/go/errors"

	"github.com/walteh/drsholding/pkg/remote"
)

// 🏭 DropboxFactory opens a dropbox transport
type DropboxFactory func(ctx context.Context, args remote.DropboxArgs) (remote.Dropbox, error)

var (
	mu        sync.RWMutex
	dropboxes = make(map[string]DropboxFactory)
)

// 📝 RegisterDropbox registers a dropbox transport factory
func RegisterDropbox(name string, factory DropboxFactory) {
	mu.Lock()
	defer mu.Unlock()
	dropboxes[name] = factory
}

// 🎯 GetDropbox returns a dropbox factory by name
func GetDropbox(name string) (DropboxFactory, error) {
	mu.RLock()
	defer mu.RUnlock()

	factory, ok := dropboxes[name]
	if !ok {
		options := make([]string, 0, len(dropboxes))
		for k := range dropboxes {
			options = append(options, k)
		}
		sort.Strings(options)
		return nil, errors.Errorf("dropbox transport %s not found, options: %s", name, strings.Join(options, ", "))
	}
	return factory, nil
}
