/*
 * This file is subject to the terms and conditions defined in
 * file 'LICENSE.md', which is part of this source code package.
 */

package pdfcore

import "golang.org/x/xerrors"

// Page is one page dictionary, with inherited attributes already merged in
// (MediaBox, Resources, Rotate — the attributes §7.7.3.4 of the PDF spec
// allows a Pages node to push down to its children).
type Page struct {
	doc       *Document
	Dict      *Dictionary
	Inherited *Dictionary
	Index     int
	SelfRef   *Reference
}

// ContentStreamObject is one content stream attached to a page, identified
// by its indirect object number (the id Modification targets).
type ContentStreamObject struct {
	ObjectNumber int64
	Stream       *Stream
	Content      []byte // decoded bytes
}

// ContentStreams returns every content stream attached to the page, decoded.
// A page's /Contents may be a single stream reference or an array of stream
// references (concatenated, per the PDF spec, with a newline inserted
// between them at render time); both forms are returned as separate
// elements here since each keeps its own object number and therefore its
// own independent byte range for patching.
func (p *Page) ContentStreams() ([]*ContentStreamObject, error) {
	var refs []*Reference
	switch c := p.Dict.Get("Contents").(type) {
	case *Reference:
		refs = append(refs, c)
	case *Array:
		for _, e := range c.Elements() {
			if ref, ok := e.(*Reference); ok {
				refs = append(refs, ref)
			}
		}
	}

	var out []*ContentStreamObject
	for _, ref := range refs {
		obj := ref.Resolve()
		stm, ok := obj.(*Stream)
		if !ok {
			continue
		}
		decoded, err := DecodeStream(stm)
		if err != nil {
			return nil, xerrors.Errorf("pdfcore: content stream %d: %w", ref.ObjectNumber, err)
		}
		out = append(out, &ContentStreamObject{
			ObjectNumber: ref.ObjectNumber,
			Stream:       stm,
			Content:      decoded,
		})
	}
	return out, nil
}

// Resources returns the page's resource dictionary (inherited if the page
// itself doesn't declare one).
func (p *Page) Resources() *Dictionary {
	if r, ok := p.Dict.Get("Resources").(*Dictionary); ok {
		return r
	}
	if r, ok := p.Inherited.Get("Resources").(*Dictionary); ok {
		return r
	}
	return MakeDict()
}

// FontDict returns the raw font dictionary object for resource name `tag`
// (e.g. "F1") from the page's /Resources /Font dictionary.
func (p *Page) FontDict(tag Name) (*Dictionary, bool) {
	fonts, ok := p.Resources().Get("Font").(*Dictionary)
	if !ok {
		return nil, false
	}
	ref, ok := fonts.Get(tag).(*Reference)
	if ok {
		d, ok := ref.Resolve().(*Dictionary)
		return d, ok
	}
	d, ok := fonts.Get(tag).(*Dictionary)
	return d, ok
}

// FontObjectNumber returns the indirect object number of the font resource
// dictionary for `tag`, used as the stable id fontmetrics.Font.ID is keyed
// on. Returns false for a font dictionary embedded directly inline (no
// object number of its own), which the document writer never produces but
// a third-party producer occasionally does.
func (p *Page) FontObjectNumber(tag Name) (int64, bool) {
	fonts, ok := p.Resources().Get("Font").(*Dictionary)
	if !ok {
		return 0, false
	}
	ref, ok := fonts.Get(tag).(*Reference)
	if !ok {
		return 0, false
	}
	return ref.ObjectNumber, true
}

// FontTags returns every font resource name declared on the page.
func (p *Page) FontTags() []Name {
	fonts, ok := p.Resources().Get("Font").(*Dictionary)
	if !ok {
		return nil
	}
	return fonts.Keys()
}

// MediaBox returns the page's geometry as (x0, y0, x1, y1), defaulting to
// US Letter if absent (matching common PDF reader behavior).
func (p *Page) MediaBox() (x0, y0, x1, y1 float64) {
	box := p.Dict.Get("MediaBox")
	if box == nil {
		box = p.Inherited.Get("MediaBox")
	}
	arr, ok := box.(*Array)
	if !ok || arr.Len() != 4 {
		return 0, 0, 612, 792
	}
	vals, err := arr.ToFloat64Slice()
	if err != nil {
		return 0, 0, 612, 792
	}
	return vals[0], vals[1], vals[2], vals[3]
}
