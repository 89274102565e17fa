package enums

// WriteKind is the operation of one entry in an atomic batch write.
type WriteKind string

const (
	WriteKindUpsert WriteKind = "upsert"
	WriteKindDelete WriteKind = "delete"
)

// IsValid reports whether the value is a known WriteKind.
func (k WriteKind) IsValid() bool {
	return k == WriteKindUpsert || k == WriteKindDelete
}
