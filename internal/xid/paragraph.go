package xid

import (
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
)

// Paragraph is a structured external id identifying a paragraph-shaped
// span within a field of a document: (document, field, paragraph, offsets).
//
// This mirrors the external id shape used by the system this store was
// distilled from, where a vector's caller-chosen key was a composite of a
// document id, a field name, a sub-paragraph id, and a character range
// (see original_source/src/vectors/vector_identifier.rs). It is not
// required by the core spec, which only asks for a totally ordered,
// deterministically serializable external id; Paragraph is one concrete,
// richer shape on top of that contract.
type Paragraph struct {
	DocID       uuid.UUID
	Field       string
	ParagraphID uuid.UUID
	Start       int32
	End         int32
}

// Bytes encodes the id so that bytes.Compare sorts first by document, then
// field length, then field bytes, then paragraph, then start, then end.
// Start and End are compared as unsigned 32-bit values, so negative values
// sort after positive ones. Field is length-prefixed so no field value can
// "borrow" bytes from the following paragraph id.
func (p Paragraph) Bytes() []byte {
	field := []byte(p.Field)
	buf := make([]byte, 0, 16+4+len(field)+16+4+4)

	buf = append(buf, p.DocID[:]...)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(field)))
	buf = append(buf, field...)
	buf = append(buf, p.ParagraphID[:]...)
	buf = binary.BigEndian.AppendUint32(buf, uint32(p.Start))
	buf = binary.BigEndian.AppendUint32(buf, uint32(p.End))

	return buf
}

// String renders the id as "docID/field/paragraphID/start-end", matching
// the Display format of the original VectorIdentifier.
func (p Paragraph) String() string {
	return fmt.Sprintf("%s/%s/%s/%d-%d", p.DocID, p.Field, p.ParagraphID, p.Start, p.End)
}

// DecodeParagraph parses the byte encoding produced by [Paragraph.Bytes].
func DecodeParagraph(b []byte) (Paragraph, bool) {
	if len(b) < 16+4 {
		return Paragraph{}, false
	}

	var p Paragraph
	copy(p.DocID[:], b[:16])
	b = b[16:]

	fieldLen := binary.BigEndian.Uint32(b[:4])
	b = b[4:]

	if uint32(len(b)) < fieldLen+16+4+4 {
		return Paragraph{}, false
	}

	p.Field = string(b[:fieldLen])
	b = b[fieldLen:]

	copy(p.ParagraphID[:], b[:16])
	b = b[16:]

	p.Start = int32(binary.BigEndian.Uint32(b[:4]))
	b = b[4:]

	p.End = int32(binary.BigEndian.Uint32(b[:4]))

	return p, true
}
