// Copyright ©2012 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sam

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ReadGroup is an @RG header line. Fields are kept in the order they
// appear on the line.
type ReadGroup struct {
	id     int32
	name   string
	fields []tagPair

	// insertSize caches the parsed PI field.
	insertSize int
}

// ID returns the header ID of the ReadGroup. IDs follow the sorted
// order of read group names. A nil ReadGroup has ID -1.
func (r *ReadGroup) ID() int {
	if r == nil {
		return -1
	}
	return int(r.id)
}

// Name returns the value of the ID field, or "*" for a nil ReadGroup.
func (r *ReadGroup) Name() string {
	if r == nil {
		return "*"
	}
	return r.name
}

func (r *ReadGroup) Sample() string       { return r.Get(sampleTag) }
func (r *ReadGroup) Library() string      { return r.Get(libraryTag) }
func (r *ReadGroup) Platform() string     { return r.Get(platformTag) }
func (r *ReadGroup) PlatformUnit() string { return r.Get(platformUnitTag) }
func (r *ReadGroup) Center() string       { return r.Get(centerTag) }
func (r *ReadGroup) Description() string  { return r.Get(descriptionTag) }

// InsertSize returns the predicted median insert size, or zero.
func (r *ReadGroup) InsertSize() int { return r.insertSize }

// dateLayouts are the ISO 8601 forms accepted for the DT field.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05-0700",
	"2006-01-02T15:04:05-07:00",
}

// Time returns the DT field as a time. The zero time is returned if
// DT is absent or cannot be parsed.
func (r *ReadGroup) Time() time.Time {
	dt := r.Get(dateTag)
	if dt == "" {
		return time.Time{}
	}
	for _, layout := range dateLayouts {
		t, err := time.ParseInLocation(layout, dt, time.UTC)
		if err == nil {
			return t
		}
	}
	return time.Time{}
}

// Get returns the value of the field with tag t, or the empty string.
func (r *ReadGroup) Get(t Tag) string {
	if t == idTag {
		return r.Name()
	}
	return getTag(r.fields, t)
}

// set records a field parsed from an @RG line. A repeated tag
// replaces the earlier value.
func (r *ReadGroup) set(t Tag, value string) error {
	if t == idTag {
		r.name = value
		return nil
	}
	if t == insertSizeTag {
		i, err := strconv.Atoi(value)
		if err != nil || !validInt32(i) {
			return fmt.Errorf("invalid insert size %q", value)
		}
		r.insertSize = i
	}
	for i := range r.fields {
		if r.fields[i].tag == t {
			r.fields[i].value = value
			return nil
		}
	}
	r.fields = append(r.fields, tagPair{tag: t, value: value})
	return nil
}

// String returns the @RG line, ID first.
func (r *ReadGroup) String() string {
	var b strings.Builder
	b.WriteString("@RG\tID:")
	b.WriteString(r.name)
	for _, f := range r.fields {
		b.WriteByte('\t')
		b.WriteString(f.tag.String())
		b.WriteByte(':')
		b.WriteString(f.value)
	}
	return b.String()
}
