package xid_test

import (
	"bytes"
	"testing"

	"github.com/google/uuid"

	"github.com/catunlock/vecstore/internal/xid"
)

func Test_Uint64_Bytes_Preserves_Numeric_Order_When_Compared(t *testing.T) {
	t.Parallel()

	a := xid.Uint64(1).Bytes()
	b := xid.Uint64(2).Bytes()
	c := xid.Uint64(1 << 40).Bytes()

	if bytes.Compare(a, b) >= 0 {
		t.Fatalf("expected 1 < 2 in byte order")
	}

	if bytes.Compare(b, c) >= 0 {
		t.Fatalf("expected 2 < 2^40 in byte order")
	}
}

func Test_DecodeUint64_RoundTrips_When_Given_Valid_Bytes(t *testing.T) {
	t.Parallel()

	want := xid.Uint64(123456789)

	got, ok := xid.DecodeUint64(want.Bytes())
	if !ok {
		t.Fatalf("decode failed")
	}

	if got != want {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func Test_DecodeUint64_Fails_When_Length_Is_Wrong(t *testing.T) {
	t.Parallel()

	if _, ok := xid.DecodeUint64([]byte{1, 2, 3}); ok {
		t.Fatalf("expected failure on short input")
	}
}

func Test_Paragraph_String_Matches_Original_Display_Format(t *testing.T) {
	t.Parallel()

	docID := uuid.MustParse("4ffa4021-0932-4835-bd92-19e92c047293")
	paragraphID := uuid.MustParse("250c7835-1736-4776-afa0-08490c647cb0")

	p := xid.Paragraph{DocID: docID, Field: "body", ParagraphID: paragraphID, Start: 10, End: 20}

	want := "4ffa4021-0932-4835-bd92-19e92c047293/body/250c7835-1736-4776-afa0-08490c647cb0/10-20"
	if got := p.String(); got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func Test_DecodeParagraph_RoundTrips_When_Given_Valid_Bytes(t *testing.T) {
	t.Parallel()

	want := xid.Paragraph{
		DocID:       uuid.New(),
		Field:       "title",
		ParagraphID: uuid.New(),
		Start:       5,
		End:         42,
	}

	got, ok := xid.DecodeParagraph(want.Bytes())
	if !ok {
		t.Fatalf("decode failed")
	}

	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func Test_Paragraph_Bytes_Orders_By_Field_When_DocID_Equal(t *testing.T) {
	t.Parallel()

	doc := uuid.New()

	a := xid.Paragraph{DocID: doc, Field: "body", ParagraphID: uuid.New()}
	b := xid.Paragraph{DocID: doc, Field: "title", ParagraphID: a.ParagraphID}

	if bytes.Compare(a.Bytes(), b.Bytes()) >= 0 {
		t.Fatalf("expected %q < %q in byte order", a.Field, b.Field)
	}
}

func Test_UUID_DecodeUUID_RoundTrips_When_Given_Valid_Bytes(t *testing.T) {
	t.Parallel()

	want := xid.UUID(uuid.New())

	got, ok := xid.DecodeUUID(want.Bytes())
	if !ok {
		t.Fatalf("decode failed")
	}

	if got != want {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func Test_Str_Bytes_Round_Trips(t *testing.T) {
	t.Parallel()

	want := xid.Str("doc-42")

	got := xid.DecodeStr(want.Bytes())
	if got != want {
		t.Fatalf("got %v, want %v", got, want)
	}
}
