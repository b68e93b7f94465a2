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

package deck

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed data/*.yaml
var dataFS embed.FS

// DefaultVariant is served when no variant is configured.
const DefaultVariant = "mining"

// ErrUnknownVariant is returned by Load for a variant that is not embedded.
var ErrUnknownVariant = errors.New("unknown deck variant")

// Variants returns the names of the embedded decks.
func Variants() []string {
	entries, err := fs.ReadDir(dataFS, "data")
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if name, ok := strings.CutSuffix(e.Name(), ".yaml"); ok {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Load returns the embedded deck with the given variant name.
func Load(variant string) (*Deck, error) {
	if variant == "" {
		variant = DefaultVariant
	}
	b, err := dataFS.ReadFile(path.Join("data", variant+".yaml"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %q (have %s)", ErrUnknownVariant, variant, strings.Join(Variants(), ", "))
		}
		return nil, err
	}
	return Parse(b)
}

// LoadFile reads and validates a deck from a YAML file on disk.
func LoadFile(name string) (*Deck, error) {
	b, err := os.ReadFile(name)
	if err != nil {
		return nil, err
	}
	d, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return d, nil
}

// Parse decodes and validates a deck. Unknown fields are an error.
func Parse(b []byte) (*Deck, error) {
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	var d Deck
	if err := dec.Decode(&d); err != nil {
		return nil, fmt.Errorf("decoding deck: %w", err)
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &d, nil
}

// Validate checks the fields the views depend on.
func (d *Deck) Validate() error {
	var errs []error
	req := func(v, name string) {
		if strings.TrimSpace(v) == "" {
			errs = append(errs, fmt.Errorf("%s is required", name))
		}
	}
	req(d.Variant, "variant")
	req(d.Name, "name")
	req(d.ExportName, "exportName")
	req(d.FooterLabel, "footerLabel")
	req(d.Cover.Headline, "cover.headline")
	req(d.Cover.Date, "cover.date")
	req(d.Closing.Contact.Email, "closing.contact.email")

	if len(d.Sections) == 0 {
		errs = append(errs, errors.New("at least one section is required"))
	}
	seen := make(map[string]bool)
	for i, s := range d.Sections {
		req(s.ID, fmt.Sprintf("sections[%d].id", i))
		req(s.NavLabel, fmt.Sprintf("sections[%d].navLabel", i))
		if seen[s.ID] {
			errs = append(errs, fmt.Errorf("duplicate section %q", s.ID))
		}
		seen[s.ID] = true
	}
	if len(d.Theme.Backgrounds) < len(d.Sections) {
		errs = append(errs, fmt.Errorf("theme has %d backgrounds for %d sections", len(d.Theme.Backgrounds), len(d.Sections)))
	}

	if len(d.Scenarios) == 0 {
		errs = append(errs, errors.New("at least one scenario is required"))
	}
	keys := make(map[string]bool)
	for i, sc := range d.Scenarios {
		where := fmt.Sprintf("scenarios[%d]", i)
		req(sc.Key, where+".key")
		req(sc.Label, where+".label")
		req(sc.Raise.CapitalAsk, where+".raise.capitalAsk")
		if keys[sc.Key] {
			errs = append(errs, fmt.Errorf("duplicate scenario %q", sc.Key))
		}
		keys[sc.Key] = true
		errs = append(errs, checkSlices(where+".charts.cost", sc.Financials.Charts.Cost)...)
		errs = append(errs, checkSlices(where+".charts.revenue", sc.Financials.Charts.Revenue)...)
	}
	return errors.Join(errs...)
}

func checkSlices(where string, slices []Slice) []error {
	var errs []error
	if len(slices) == 0 {
		errs = append(errs, fmt.Errorf("%s is empty", where))
	}
	for i, s := range slices {
		if s.Value <= 0 {
			errs = append(errs, fmt.Errorf("%s[%d] %q: value must be positive", where, i, s.Name))
		}
	}
	return errs
}
