/* Copyright 2025 Folio Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package serializer encodes book configurations for storage and transport.
// Settings are stored as deltas against the user's defaults: a field equal to
// the default is dropped on serialize and restored from the default on
// deserialize, so a later change to the defaults flows through to every book
// that did not override it.
package serializer

import (
	"encoding/json"
	"reflect"

	"github.com/pkg/errors"
)

// ViewSettings holds per-book rendering settings. All fields are optional; a
// nil field means the user default applies.
type ViewSettings struct {
	SerifFont         *string  `json:"serifFont,omitempty"`
	SansSerifFont     *string  `json:"sansSerifFont,omitempty"`
	MonospaceFont     *string  `json:"monospaceFont,omitempty"`
	DefaultFont       *string  `json:"defaultFont,omitempty"`
	DefaultFontSize   *int     `json:"defaultFontSize,omitempty"`
	MinimumFontSize   *int     `json:"minimumFontSize,omitempty"`
	FontWeight        *int     `json:"fontWeight,omitempty"`
	MarginPx          *int     `json:"marginPx,omitempty"`
	GapPercent        *int     `json:"gapPercent,omitempty"`
	Scrolled          *bool    `json:"scrolled,omitempty"`
	MaxColumnCount    *int     `json:"maxColumnCount,omitempty"`
	MaxInlineSize     *int     `json:"maxInlineSize,omitempty"`
	MaxBlockSize      *int     `json:"maxBlockSize,omitempty"`
	Animated          *bool    `json:"animated,omitempty"`
	WritingMode       *string  `json:"writingMode,omitempty"`
	Vertical          *bool    `json:"vertical,omitempty"`
	ZoomLevel         *int     `json:"zoomLevel,omitempty"`
	LineHeight        *float64 `json:"lineHeight,omitempty"`
	FullJustification *bool    `json:"fullJustification,omitempty"`
	Hyphenation       *bool    `json:"hyphenation,omitempty"`
	Invert            *bool    `json:"invert,omitempty"`
	Theme             *string  `json:"theme,omitempty"`
	OverrideFont      *bool    `json:"overrideFont,omitempty"`
	UserStylesheet    *string  `json:"userStylesheet,omitempty"`
}

// SearchConfig holds per-book search settings
type SearchConfig struct {
	Scope           *string `json:"scope,omitempty"`
	MatchCase       *bool   `json:"matchCase,omitempty"`
	MatchWholeWords *bool   `json:"matchWholeWords,omitempty"`
	MatchDiacritics *bool   `json:"matchDiacritics,omitempty"`
}

// Config is a book configuration as it travels on the wire. Location,
// Progress and UpdatedAt are identity fields and always survive a
// serialization round trip.
type Config struct {
	Location     string       `json:"location,omitempty"`
	Progress     string       `json:"progress,omitempty"`
	SearchConfig SearchConfig `json:"searchConfig"`
	ViewSettings ViewSettings `json:"viewSettings"`
	UpdatedAt    int64        `json:"updatedAt,omitempty"`
}

func strp(v string) *string    { return &v }
func intp(v int) *int          { return &v }
func boolp(v bool) *bool       { return &v }
func floatp(v float64) *float64 { return &v }

// DefaultViewSettings returns the stock view settings, used when the user has
// not configured their own defaults
func DefaultViewSettings() ViewSettings {
	return ViewSettings{
		SerifFont:         strp("Bitter"),
		SansSerifFont:     strp("Roboto"),
		MonospaceFont:     strp("Consolas"),
		DefaultFont:       strp("Serif"),
		DefaultFontSize:   intp(16),
		MinimumFontSize:   intp(8),
		FontWeight:        intp(400),
		MarginPx:          intp(44),
		GapPercent:        intp(5),
		Scrolled:          boolp(false),
		MaxColumnCount:    intp(2),
		MaxInlineSize:     intp(720),
		MaxBlockSize:      intp(1440),
		Animated:          boolp(false),
		WritingMode:       strp("auto"),
		Vertical:          boolp(false),
		ZoomLevel:         intp(100),
		LineHeight:        floatp(1.6),
		FullJustification: boolp(true),
		Hyphenation:       boolp(true),
		Invert:            boolp(false),
		Theme:             strp("light"),
		OverrideFont:      boolp(false),
		UserStylesheet:    strp(""),
	}
}

// DefaultSearchConfig returns the stock search settings
func DefaultSearchConfig() SearchConfig {
	return SearchConfig{
		Scope:           strp("book"),
		MatchCase:       boolp(false),
		MatchWholeWords: boolp(false),
		MatchDiacritics: boolp(false),
	}
}

// dropDefaults nils out every field of the struct at dst that carries the
// same value as the corresponding field of defaults. Both arguments must be
// pointers to the same struct type whose fields are all pointers.
func dropDefaults(dst, defaults interface{}) {
	dv := reflect.ValueOf(dst).Elem()
	fv := reflect.ValueOf(defaults).Elem()

	for i := 0; i < dv.NumField(); i++ {
		f := dv.Field(i)
		d := fv.Field(i)

		if f.IsNil() || d.IsNil() {
			continue
		}
		if f.Elem().Interface() == d.Elem().Interface() {
			f.Set(reflect.Zero(f.Type()))
		}
	}
}

// fillDefaults sets every nil field of the struct at dst to a copy of the
// corresponding field of defaults
func fillDefaults(dst, defaults interface{}) {
	dv := reflect.ValueOf(dst).Elem()
	fv := reflect.ValueOf(defaults).Elem()

	for i := 0; i < dv.NumField(); i++ {
		f := dv.Field(i)
		d := fv.Field(i)

		if !f.IsNil() || d.IsNil() {
			continue
		}

		p := reflect.New(f.Type().Elem())
		p.Elem().Set(d.Elem())
		f.Set(p)
	}
}

// Serialize encodes the config as compact JSON, keeping only the settings
// that differ from the given defaults
func Serialize(cfg Config, viewDefaults ViewSettings, searchDefaults SearchConfig) (string, error) {
	dropDefaults(&cfg.ViewSettings, &viewDefaults)
	dropDefaults(&cfg.SearchConfig, &searchDefaults)

	b, err := json.Marshal(cfg)
	if err != nil {
		return "", errors.Wrap(err, "marshalling config")
	}

	return string(b), nil
}

// Deserialize decodes a serialized config, overlaying the stored deltas on
// the given defaults. A missing UpdatedAt is back-filled with now.
func Deserialize(s string, viewDefaults ViewSettings, searchDefaults SearchConfig, now int64) (Config, error) {
	var cfg Config
	if err := json.Unmarshal([]byte(s), &cfg); err != nil {
		return cfg, errors.Wrap(err, "unmarshalling config")
	}

	fillDefaults(&cfg.ViewSettings, &viewDefaults)
	fillDefaults(&cfg.SearchConfig, &searchDefaults)

	if cfg.UpdatedAt == 0 {
		cfg.UpdatedAt = now
	}

	return cfg, nil
}
