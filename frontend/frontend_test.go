// Copyright (c) 2026 TTBT Enterprises LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package frontend

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssetsPresent(t *testing.T) {
	for _, name := range []string{
		"css/deck.css",
		"css/print.css",
		"js/countup.js",
		"js/deck.js",
		"images/site-aerial.svg",
		"images/site-detail.svg",
		"images/site-map.svg",
		"images/site-plan.svg",
		"images/overview.svg",
		"images/plan-a.svg",
		"images/plan-b.svg",
		"images/plan-c.svg",
	} {
		t.Run(name, func(t *testing.T) {
			b, err := fs.ReadFile(FS, name)
			require.NoError(t, err)
			assert.NotEmpty(t, b)
		})
	}
}

func TestPrintStylesheetPageSize(t *testing.T) {
	b, err := fs.ReadFile(FS, "css/print.css")
	require.NoError(t, err)
	css := string(b)
	assert.True(t, strings.Contains(css, "width: 1280px"), "slides are 1280px wide")
	assert.True(t, strings.Contains(css, "height: 720px"), "slides are 720px tall")
}
