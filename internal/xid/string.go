package xid

// Str is an external id backed by an opaque string.
//
// Its byte encoding is the raw UTF-8 bytes of the string, so bytes.Compare
// agrees with Go's native string ordering. Suitable for caller-chosen keys
// that are already comparable as plain strings (slugs, paths, names).
type Str string

func (s Str) Bytes() []byte {
	return []byte(s)
}

func (s Str) String() string {
	return string(s)
}

// DecodeStr parses the byte encoding produced by [Str.Bytes].
func DecodeStr(b []byte) Str {
	return Str(b)
}
