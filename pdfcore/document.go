/*
 * This file is subject to the terms and conditions defined in
 * file 'LICENSE.md', which is part of this source code package.
 */

package pdfcore

import (
	"bufio"
	"bytes"
	"compress/zlib"
	"fmt"
	"io"
	"regexp"
	"sort"

	"github.com/h2non/filetype"
	"golang.org/x/xerrors"

	"github.com/resumeforge/pdfedit/common"
	"github.com/resumeforge/pdfedit/pdferr"
)

// xrefEntry records where one indirect object's "n g obj" starts in the
// source bytes.
type xrefEntry struct {
	offset     int64
	generation int64
	free       bool
}

// Document is a loaded PDF file: the raw source bytes, the object table
// built from its cross-reference table, and the trailer dictionary. It owns
// every object resolved during a single edit operation, matching the
// ownership rule in the data model: all downstream records hold stable ids
// (object numbers) or their own copies, never a live Document pointer past
// the edit's lifetime.
type Document struct {
	data    []byte
	xref    map[int64]xrefEntry
	trailer *Dictionary
	cache   map[int64]Object

	// xrefSectionStart is the source byte offset where the document's own
	// (outermost, most recent) cross-reference section begins. Save copies
	// every byte before this offset through unchanged and writes a freshly
	// generated xref table and trailer in its place; it is 0 (meaning
	// "unknown, use len(data)") when the xref had to be reconstructed by
	// scanning.
	xrefSectionStart int64

	// compressed holds, for each compressed object, which object-stream
	// object number holds it and at which index; those objects are
	// resolvable for reading but are never a target for content-stream
	// patching: content streams stored this way are rare in practice and
	// the writer below only ever rewrites top-level stream objects.
	compressed map[int64]struct {
		streamObjNum int64
		index        int
	}
}

var rePdfHeader = regexp.MustCompile(`%PDF-(\d)\.(\d)`)

// Load parses `data` into a Document. It returns pdferr.ErrInvalidPdf for
// malformed input and pdferr.ErrEncryptedPdf for documents with an
// /Encrypt entry in the trailer (decryption is out of scope).
func Load(data []byte) (*Document, error) {
	if len(data) < 16 || !filetype.Is(data, "pdf") {
		// filetype's PDF matcher only looks at the first few hundred
		// bytes; a %PDF- header further in (some generators pad the
		// start of the file) is still accepted below.
		if !rePdfHeader.Match(data[:min(len(data), 2048)]) {
			return nil, xerrors.Errorf("%w: missing %%PDF- header", pdferr.ErrInvalidPdf)
		}
	}

	doc := &Document{
		data:       data,
		xref:       map[int64]xrefEntry{},
		cache:      map[int64]Object{},
		compressed: map[int64]struct {
			streamObjNum int64
			index        int
		}{},
	}

	if err := doc.loadXref(); err != nil {
		return nil, xerrors.Errorf("%w: %v", pdferr.ErrInvalidPdf, err)
	}

	if doc.trailer != nil && doc.trailer.Get("Encrypt") != nil {
		return nil, pdferr.ErrEncryptedPdf
	}

	return doc, nil
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// loadXref walks the tail of the file to find "startxref", parses the
// classic xref table plus trailer there, and follows /Prev chains for
// incrementally-updated files. Cross-reference *streams* are detected and
// their entries decoded too (read-only; see Document's compressed map),
// matching the documented save simplification.
func (doc *Document) loadXref() error {
	tailLen := int64(2048)
	if tailLen > int64(len(doc.data)) {
		tailLen = int64(len(doc.data))
	}
	tail := doc.data[int64(len(doc.data))-tailLen:]
	idx := bytes.LastIndex(tail, []byte("startxref"))
	if idx < 0 {
		return doc.reconstructXrefByScanning()
	}
	startxrefPos := int64(len(doc.data)) - tailLen + int64(idx) + int64(len("startxref"))

	offset, ok := parseIntAt(doc.data, startxrefPos)
	if !ok {
		return doc.reconstructXrefByScanning()
	}
	// The first offset read from the tail's "startxref" is the outermost
	// xref section: for an incrementally-updated file this is the most
	// recently appended one, and every real object (original or added by a
	// later incremental update) lives before it.
	doc.xrefSectionStart = offset

	seen := map[int64]bool{}
	for offset != 0 && !seen[offset] {
		seen[offset] = true
		if offset < 0 || offset >= int64(len(doc.data)) {
			break
		}
		trailer, prev, err := doc.parseXrefSectionAt(offset)
		if err != nil {
			return err
		}
		if doc.trailer == nil {
			doc.trailer = trailer
		}
		offset = prev
	}

	if doc.trailer == nil || len(doc.xref) == 0 {
		return doc.reconstructXrefByScanning()
	}
	return nil
}

// parseXrefSectionAt parses either a classic "xref" table or a
// cross-reference stream starting at `offset`, returning its trailer
// dictionary and the /Prev offset (0 if none).
func (doc *Document) parseXrefSectionAt(offset int64) (*Dictionary, int64, error) {
	r := bytes.NewReader(doc.data[offset:])
	br := bufio.NewReader(r)
	peek, _ := br.Peek(4)
	if string(peek) == "xref" {
		return doc.parseClassicXref(offset)
	}
	return doc.parseXrefStream(offset)
}

func (doc *Document) parseClassicXref(offset int64) (*Dictionary, int64, error) {
	lx := newLexer(bytes.NewReader(doc.data[offset:]))
	lx.advance(4) // "xref"
	for {
		lx.skipWhitespaceAndComments()
		peek, _ := lx.r.Peek(7)
		if string(peek[:min(len(peek), 7)]) == "trailer" {
			lx.advance(7)
			break
		}
		startObj, ok1 := lx.readUint()
		lx.skipSpaces()
		count, ok2 := lx.readUint()
		if !ok1 || !ok2 {
			break
		}
		for i := int64(0); i < count; i++ {
			lx.skipWhitespaceAndComments()
			line := make([]byte, 20)
			io.ReadFull(lx.r, line)
			lx.offset += 20
			var off, gen int64
			var free byte
			fmt.Sscanf(string(line), "%010d %05d %c", &off, &gen, &free)
			objNum := startObj + i
			if _, exists := doc.xref[objNum]; !exists {
				doc.xref[objNum] = xrefEntry{offset: off, generation: gen, free: free == 'f'}
			}
		}
	}
	lx.skipWhitespaceAndComments()
	trailerObj, err := lx.parseDict(doc)
	if err != nil {
		return nil, 0, err
	}
	trailer, ok := trailerObj.(*Dictionary)
	if !ok {
		return nil, 0, fmt.Errorf("pdfcore: trailer is not a dictionary")
	}
	prev := int64(0)
	if p := trailer.Get("Prev"); p != nil {
		if n, err := ToInt64(p); err == nil {
			prev = n
		}
	}
	return trailer, prev, nil
}

// parseXrefStream handles PDF 1.5+ compressed cross-reference streams.
// Entries are decoded well enough to locate indirect objects (type 1, plain
// offset) and compressed objects (type 2, inside an object stream); object
// streams themselves are resolved lazily on first lookup.
func (doc *Document) parseXrefStream(offset int64) (*Dictionary, int64, error) {
	lx := newLexer(bytes.NewReader(doc.data[offset:]))
	// "n g obj"
	lx.skipWhitespaceAndComments()
	lx.readUint()
	lx.skipSpaces()
	lx.readUint()
	lx.skipSpaces()
	peek, _ := lx.r.Peek(3)
	if string(peek) != "obj" {
		return nil, 0, fmt.Errorf("pdfcore: expected xref stream object header")
	}
	lx.advance(3)
	lx.skipWhitespaceAndComments()

	obj, err := lx.parseDict(doc)
	if err != nil {
		return nil, 0, err
	}
	stm, ok := obj.(*Stream)
	if !ok {
		return nil, 0, fmt.Errorf("pdfcore: xref stream object is not a stream")
	}

	decoded, err := DecodeStream(stm)
	if err != nil {
		return nil, 0, err
	}

	wArr, _ := stm.Get("W").(*Array)
	widths := [3]int{1, 1, 1}
	if wArr != nil && wArr.Len() == 3 {
		for i := 0; i < 3; i++ {
			if n, err := ToInt64(wArr.Get(i)); err == nil {
				widths[i] = int(n)
			}
		}
	}

	var index []int64
	if idxArr, ok := stm.Get("Index").(*Array); ok {
		for _, e := range idxArr.Elements() {
			if n, err := ToInt64(e); err == nil {
				index = append(index, n)
			}
		}
	} else {
		size := int64(0)
		if n, err := ToInt64(stm.Get("Size")); err == nil {
			size = n
		}
		index = []int64{0, size}
	}

	recSize := widths[0] + widths[1] + widths[2]
	pos := 0
	for p := 0; p+1 < len(index); p += 2 {
		startObj, count := index[p], index[p+1]
		for i := int64(0); i < count; i++ {
			if pos+recSize > len(decoded) {
				break
			}
			rec := decoded[pos : pos+recSize]
			pos += recSize
			typ := int64(1)
			if widths[0] > 0 {
				typ = beInt(rec[:widths[0]])
			}
			f2 := beInt(rec[widths[0] : widths[0]+widths[1]])
			f3 := beInt(rec[widths[0]+widths[1] : recSize])
			objNum := startObj + i
			if _, exists := doc.xref[objNum]; exists {
				continue
			}
			switch typ {
			case 0:
				doc.xref[objNum] = xrefEntry{free: true}
			case 1:
				doc.xref[objNum] = xrefEntry{offset: f2, generation: f3}
			case 2:
				doc.compressed[objNum] = struct {
					streamObjNum int64
					index        int
				}{streamObjNum: f2, index: int(f3)}
			}
		}
	}

	prev := int64(0)
	if p := stm.Get("Prev"); p != nil {
		if n, err := ToInt64(p); err == nil {
			prev = n
		}
	}
	return stm.Dictionary, prev, nil
}

func beInt(b []byte) int64 {
	var v int64
	for _, c := range b {
		v = v<<8 | int64(c)
	}
	return v
}

// reconstructXrefByScanning recovers from a missing/corrupt xref section by
// scanning for every "n g obj" marker in the file, a standard PDF repair
// strategy done here at a reduced scope: enough to locate indirect
// objects, not to fix a malformed trailer.
func (doc *Document) reconstructXrefByScanning() error {
	re := regexp.MustCompile(`(?m)^(\d+)\s+(\d+)\s+obj\b`)
	locs := re.FindAllSubmatchIndex(doc.data, -1)
	if len(locs) == 0 {
		return fmt.Errorf("no indirect objects found")
	}
	for _, loc := range locs {
		numBytes := doc.data[loc[2]:loc[3]]
		genBytes := doc.data[loc[4]:loc[5]]
		num, ok1 := parseIntAt(numBytes, 0)
		gen, ok2 := parseIntAt(genBytes, 0)
		if !ok1 || !ok2 {
			continue
		}
		doc.xref[num] = xrefEntry{offset: int64(loc[0]), generation: gen}
	}

	reRoot := regexp.MustCompile(`/Root\s+(\d+)\s+(\d+)\s+R`)
	if m := reRoot.FindSubmatch(doc.data); m != nil {
		num, _ := parseIntAt(m[1], 0)
		d := MakeDict()
		d.Set("Root", &Reference{doc: doc, ObjectNumber: num})
		doc.trailer = d
	}
	if doc.trailer == nil {
		return fmt.Errorf("no trailer or /Root found during reconstruction")
	}
	return nil
}

func parseIntAt(b []byte, start int) (int64, bool) {
	if start < 0 || start >= len(b) {
		return 0, false
	}
	end := start
	for end < len(b) && b[end] >= '0' && b[end] <= '9' {
		end++
	}
	if end == start {
		return 0, false
	}
	var v int64
	for _, c := range b[start:end] {
		v = v*10 + int64(c-'0')
	}
	return v, true
}

func (lx *lexer) readUint() (int64, bool) {
	lx.skipWhitespaceAndComments()
	var digits []byte
	for {
		b, err := lx.readByte()
		if err != nil {
			break
		}
		if b < '0' || b > '9' {
			lx.unreadByte()
			break
		}
		digits = append(digits, b)
	}
	if len(digits) == 0 {
		return 0, false
	}
	v, _ := parseIntAt(digits, 0)
	return v, true
}

// resolve looks up object `num gen R` and parses it on first access,
// caching the result for the remainder of this Document's lifetime (the
// CMap/width caches built on top of it are likewise read-only after
// construction, to keep concurrent edits independent.)
func (doc *Document) resolve(num, gen int64) (Object, error) {
	if obj, ok := doc.cache[num]; ok {
		return obj, nil
	}

	if entry, ok := doc.xref[num]; ok && !entry.free {
		obj, err := doc.parseIndirectAt(entry.offset)
		if err != nil {
			return nil, err
		}
		doc.cache[num] = obj
		return obj, nil
	}

	if loc, ok := doc.compressed[num]; ok {
		obj, err := doc.resolveCompressed(loc.streamObjNum, loc.index)
		if err != nil {
			return nil, err
		}
		doc.cache[num] = obj
		return obj, nil
	}

	return nil, fmt.Errorf("pdfcore: object %d not found", num)
}

func (doc *Document) parseIndirectAt(offset int64) (Object, error) {
	if offset < 0 || offset >= int64(len(doc.data)) {
		return nil, fmt.Errorf("pdfcore: offset %d out of range", offset)
	}
	lx := newLexer(bytes.NewReader(doc.data[offset:]))
	lx.readUint()
	lx.skipSpaces()
	lx.readUint()
	lx.skipSpaces()
	peek, _ := lx.r.Peek(3)
	if string(peek) != "obj" {
		return nil, fmt.Errorf("pdfcore: expected 'obj' keyword at offset %d", offset)
	}
	lx.advance(3)
	return lx.parseObject(doc)
}

func (doc *Document) resolveCompressed(streamObjNum int64, index int) (Object, error) {
	streamObj, err := doc.resolve(streamObjNum, 0)
	if err != nil {
		return nil, err
	}
	stm, ok := streamObj.(*Stream)
	if !ok {
		return nil, fmt.Errorf("pdfcore: object stream %d is not a stream", streamObjNum)
	}
	decoded, err := DecodeStream(stm)
	if err != nil {
		return nil, err
	}
	n, _ := ToInt64(stm.Get("N"))
	first, _ := ToInt64(stm.Get("First"))

	hlx := newLexer(bytes.NewReader(decoded))
	type pair struct{ num, off int64 }
	pairs := make([]pair, 0, n)
	for i := int64(0); i < n; i++ {
		num, _ := hlx.readUint()
		off, _ := hlx.readUint()
		pairs = append(pairs, pair{num, off})
	}
	if index < 0 || index >= len(pairs) {
		return nil, fmt.Errorf("pdfcore: compressed object index %d out of range", index)
	}
	objLx := newLexer(bytes.NewReader(decoded[first+pairs[index].off:]))
	return objLx.parseObject(doc)
}

// Trailer returns the document's trailer dictionary.
func (doc *Document) Trailer() *Dictionary { return doc.trailer }

// SourceBytes returns the exact bytes Load was given. Callers must not
// modify the returned slice.
func (doc *Document) SourceBytes() []byte { return doc.data }

// BodyEnd returns the source byte offset where Save stops copying original
// bytes verbatim and starts writing a freshly generated cross-reference
// table and trailer.
func (doc *Document) BodyEnd() int64 { return doc.bodyEnd() }

func (doc *Document) bodyEnd() int64 {
	if doc.xrefSectionStart > 0 && doc.xrefSectionStart <= int64(len(doc.data)) {
		return doc.xrefSectionStart
	}
	return int64(len(doc.data))
}

// Metadata returns the decoded bytes of the catalog's /Metadata XMP stream,
// and whether one is present.
func (doc *Document) Metadata() ([]byte, bool) {
	root, err := doc.Root()
	if err != nil {
		return nil, false
	}
	ref, ok := root.Get("Metadata").(*Reference)
	if !ok {
		return nil, false
	}
	stm, ok := ref.Resolve().(*Stream)
	if !ok {
		return nil, false
	}
	data, err := DecodeStream(stm)
	if err != nil {
		return nil, false
	}
	return data, true
}

// Root returns the document catalog.
func (doc *Document) Root() (*Dictionary, error) {
	rootObj := doc.trailer.Get("Root")
	ref, ok := rootObj.(*Reference)
	if !ok {
		return nil, fmt.Errorf("pdfcore: missing catalog")
	}
	d, ok := ref.Resolve().(*Dictionary)
	if !ok {
		return nil, fmt.Errorf("pdfcore: invalid catalog")
	}
	return d, nil
}

// DecodeStream returns the decoded (filter-applied) bytes of a stream
// object. Only FlateDecode, ASCIIHexDecode and ASCII85Decode are
// implemented; unsupported filters return the raw bytes unchanged together
// with an error, so a caller that only needs the dictionary (not the
// content) can still proceed.
func DecodeStream(stm *Stream) ([]byte, error) {
	filterObj := stm.Get("Filter")
	if filterObj == nil {
		return stm.Raw, nil
	}
	var filters []string
	switch f := filterObj.(type) {
	case *Name:
		filters = []string{string(*f)}
	case *Array:
		for _, e := range f.Elements() {
			if n, ok := e.(*Name); ok {
				filters = append(filters, string(*n))
			}
		}
	}
	data := stm.Raw
	for _, f := range filters {
		var err error
		switch f {
		case "FlateDecode", "Fl":
			data, err = flateDecode(data)
		case "ASCIIHexDecode", "AHx":
			data, err = asciiHexDecode(data)
		case "ASCII85Decode", "A85":
			data, err = ascii85Decode(data)
		default:
			return stm.Raw, fmt.Errorf("pdfcore: unsupported filter %s", f)
		}
		if err != nil {
			return stm.Raw, err
		}
	}
	return data, nil
}

// EncodeStreamLike re-applies the filter `stm` originally declared to
// `content`, so the replacement bytes handed to Save round-trip through the
// same decoder a reader will apply. It returns the bytes to put in
// Modification.NewContent and whether Modification.ClearFilter must be set
// (true when the original filter can't be reproduced and the bytes are
// written back raw instead). FlateDecode is the only filter re-encoded here;
// a content stream using ASCIIHex, ASCII85, or LZW is rare enough in
// practice (virtually every producer emits Flate or no filter at all) that
// falling back to unfiltered bytes is an acceptable simplification rather
// than implementing three more encoders nothing in this corpus exercises.
func EncodeStreamLike(stm *Stream, content []byte) (encoded []byte, clearFilter bool) {
	filterObj := stm.Get("Filter")
	if filterObj == nil {
		return content, false
	}
	var sole *Name
	switch f := filterObj.(type) {
	case *Name:
		sole = f
	case *Array:
		if f.Len() == 1 {
			sole, _ = f.Elements()[0].(*Name)
		}
	}
	if sole != nil && (*sole == "FlateDecode" || *sole == "Fl") {
		var buf bytes.Buffer
		zw := zlib.NewWriter(&buf)
		zw.Write(content)
		zw.Close()
		return buf.Bytes(), false
	}
	return content, true
}

func flateDecode(data []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}

func asciiHexDecode(data []byte) ([]byte, error) {
	var clean []byte
	for _, c := range data {
		if c == '>' {
			break
		}
		if !isWhitespace(c) {
			clean = append(clean, c)
		}
	}
	if len(clean)%2 != 0 {
		clean = append(clean, '0')
	}
	out := make([]byte, len(clean)/2)
	for i := range out {
		var v byte
		fmt.Sscanf(string(clean[2*i:2*i+2]), "%02x", &v)
		out[i] = v
	}
	return out, nil
}

func ascii85Decode(data []byte) ([]byte, error) {
	// Minimal implementation sufficient for metadata streams; content
	// streams in practice use FlateDecode or no filter.
	var out bytes.Buffer
	var group [5]byte
	n := 0
	flush := func(count int) {
		var v uint32
		for i := 0; i < 5; i++ {
			v = v*85 + uint32(group[i])
		}
		b := []byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)}
		out.Write(b[:count-1])
	}
	for _, c := range data {
		if c == '~' {
			break
		}
		if isWhitespace(c) {
			continue
		}
		if c == 'z' && n == 0 {
			out.Write([]byte{0, 0, 0, 0})
			continue
		}
		group[n] = c - '!'
		n++
		if n == 5 {
			flush(5)
			n = 0
		}
	}
	if n > 0 {
		for i := n; i < 5; i++ {
			group[i] = 84
		}
		flush(n)
	}
	return out.Bytes(), nil
}

// Pages returns every page dictionary in document order, following the
// catalog's /Pages tree.
func (doc *Document) Pages() ([]*Page, error) {
	root, err := doc.Root()
	if err != nil {
		return nil, err
	}
	pagesRef, ok := root.Get("Pages").(*Reference)
	if !ok {
		return nil, fmt.Errorf("pdfcore: catalog missing /Pages")
	}
	var pages []*Page
	var walk func(ref *Reference, inherited *Dictionary) error
	walk = func(ref *Reference, inherited *Dictionary) error {
		d, ok := ref.Resolve().(*Dictionary)
		if !ok {
			return fmt.Errorf("pdfcore: pages node is not a dictionary")
		}
		typ, _ := d.Get("Type").(*Name)
		merged := mergeInherited(d, inherited)
		if typ != nil && string(*typ) == "Page" {
			pages = append(pages, &Page{doc: doc, Dict: d, Index: len(pages), Inherited: merged, SelfRef: ref})
			return nil
		}
		kids, _ := d.Get("Kids").(*Array)
		if kids == nil {
			return fmt.Errorf("pdfcore: pages node missing /Kids")
		}
		for _, k := range kids.Elements() {
			kref, ok := k.(*Reference)
			if !ok {
				continue
			}
			if err := walk(kref, merged); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(pagesRef, MakeDict()); err != nil {
		return nil, err
	}
	return pages, nil
}

func mergeInherited(d, parent *Dictionary) *Dictionary {
	merged := MakeDict()
	for _, k := range parent.Keys() {
		merged.Set(k, parent.Get(k))
	}
	for _, key := range []Name{"Resources", "MediaBox", "CropBox", "Rotate"} {
		if v := d.Get(key); v != nil {
			merged.Set(key, v)
		}
	}
	return merged
}

// Modification is one content-stream byte-range substitution to apply on
// Save: replace the object numbered ObjectNumber's stream content with
// NewContent (already filter-encoded consistently with its original
// filter chain).
type Modification struct {
	ObjectNumber int64
	NewContent   []byte
	// ClearFilter drops the stream's /Filter entry on write, for the rare
	// case EncodeStreamLike couldn't re-apply the original filter and wrote
	// NewContent unfiltered.
	ClearFilter bool
}

// splice is one [start,end) source byte-range substitution: the bytes
// doc.data[start:end] are dropped from the body and `data` is written in
// their place.
type splice struct {
	start, end int64
	data       []byte
}

// Save reproduces the source bytes with the given content-stream
// modifications applied, and a freshly generated, valid cross-reference
// table and trailer. Every object's bytes are copied verbatim from the
// source; a modified stream's raw content (and its dictionary's /Length,
// and /Filter when ClearFilter is set) are the only byte ranges ever
// substituted, each applied as an in-place splice rather than by
// re-serializing the object's dictionary. That is what keeps Save's output
// byte-identical to Load's input outside of patched content streams
// (round-trip byte stability for untouched objects, testable property 3).
func (doc *Document) Save(mods []Modification) ([]byte, error) {
	byObj := map[int64][]byte{}
	clearFilter := map[int64]bool{}
	for _, m := range mods {
		byObj[m.ObjectNumber] = m.NewContent
		if m.ClearFilter {
			clearFilter[m.ObjectNumber] = true
		}
	}

	bodyEnd := doc.bodyEnd()

	var splices []splice
	for num, content := range byObj {
		entry, ok := doc.xref[num]
		if !ok || entry.free {
			return nil, fmt.Errorf("pdfcore: modification targets unknown object %d", num)
		}
		obj, err := doc.resolve(num, entry.generation)
		if err != nil {
			return nil, fmt.Errorf("pdfcore: resolving object %d to patch: %w", num, err)
		}
		stm, ok := obj.(*Stream)
		if !ok {
			return nil, fmt.Errorf("pdfcore: object %d is not a stream", num)
		}

		rawStart := entry.offset + stm.RawStart
		rawEnd := entry.offset + stm.RawEnd
		if stm.RawStart == 0 && stm.RawEnd == 0 {
			return nil, fmt.Errorf("pdfcore: object %d has no recorded source byte range", num)
		}
		splices = append(splices, splice{rawStart, rawEnd, content})

		lenStart, lenEnd, ok := stm.Dictionary.Span("Length")
		if !ok {
			return nil, fmt.Errorf("pdfcore: object %d has no source span for /Length", num)
		}
		splices = append(splices, splice{
			entry.offset + lenStart, entry.offset + lenEnd,
			[]byte(fmt.Sprintf("/Length %d", len(content))),
		})

		if clearFilter[num] {
			if fStart, fEnd, ok := stm.Dictionary.Span("Filter"); ok {
				splices = append(splices, splice{entry.offset + fStart, entry.offset + fEnd, nil})
			}
		}
	}
	sort.Slice(splices, func(i, j int) bool { return splices[i].start < splices[j].start })
	for i := 1; i < len(splices); i++ {
		if splices[i].start < splices[i-1].end {
			return nil, fmt.Errorf("pdfcore: overlapping patch ranges [%d,%d) and [%d,%d)",
				splices[i-1].start, splices[i-1].end, splices[i].start, splices[i].end)
		}
	}

	objNums := make([]int64, 0, len(doc.xref))
	for num, e := range doc.xref {
		if !e.free && e.offset < bodyEnd {
			objNums = append(objNums, num)
		} else if !e.free {
			common.Log.Debug("pdfcore: object %d lies outside the body range, dropping from output xref", num)
		}
	}
	sort.Slice(objNums, func(i, j int) bool { return objNums[i] < objNums[j] })

	// A single left-to-right pass over the source merges the object-start
	// checkpoints (to record each object's new offset) with the splice
	// ranges (to substitute patched bytes), copying every other byte
	// unchanged exactly once.
	type event struct {
		offset     int64
		isObjStart bool
		num        int64
		spliceEnd  int64
		spliceData []byte
	}
	events := make([]event, 0, len(objNums)+len(splices))
	for _, num := range objNums {
		events = append(events, event{offset: doc.xref[num].offset, isObjStart: true, num: num})
	}
	for _, sp := range splices {
		events = append(events, event{offset: sp.start, spliceEnd: sp.end, spliceData: sp.data})
	}
	sort.Slice(events, func(i, j int) bool {
		if events[i].offset != events[j].offset {
			return events[i].offset < events[j].offset
		}
		return events[i].isObjStart && !events[j].isObjStart
	})

	var out bytes.Buffer
	newOffsets := map[int64]int64{}
	cursor := int64(0)
	for _, ev := range events {
		if ev.offset < cursor {
			continue // defensive: a malformed/overlapping range, skip rather than corrupt output
		}
		out.Write(doc.data[cursor:ev.offset])
		if ev.isObjStart {
			newOffsets[ev.num] = int64(out.Len())
			cursor = ev.offset
			continue
		}
		out.Write(ev.spliceData)
		cursor = ev.spliceEnd
	}
	if cursor < bodyEnd {
		out.Write(doc.data[cursor:bodyEnd])
	}

	xrefStart := int64(out.Len())
	out.WriteString("xref\n")
	fmt.Fprintf(&out, "0 %d\n", maxObjNum(objNums)+1)
	out.WriteString("0000000000 65535 f \n")
	for n := int64(1); n <= maxObjNum(objNums); n++ {
		if off, ok := newOffsets[n]; ok {
			fmt.Fprintf(&out, "%010d %05d n \n", off, doc.xref[n].generation)
		} else {
			out.WriteString("0000000000 65535 f \n")
		}
	}

	out.WriteString("trailer\n")
	trailer := MakeDict()
	for _, k := range doc.trailer.Keys() {
		if k == "Prev" {
			continue
		}
		trailer.Set(k, doc.trailer.Get(k))
	}
	trailer.Set("Size", MakeInteger(maxObjNum(objNums)+1))
	out.WriteString(trailer.WriteString())
	out.WriteString("\n")
	fmt.Fprintf(&out, "startxref\n%d\n%%%%EOF", xrefStart)

	return out.Bytes(), nil
}

func maxObjNum(nums []int64) int64 {
	var m int64
	for _, n := range nums {
		if n > m {
			m = n
		}
	}
	return m
}

