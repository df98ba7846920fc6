package core

import (
	"encoding/binary"
	"encoding/json"
	"math"
	"time"

	"github.com/google/uuid"
)

// entryNamespace is the fixed UUIDv5 namespace for content-derived entry IDs.
// Changing it would change every derived identifier, so it is part of the
// persisted format contract.
var entryNamespace = uuid.MustParse("3f2f38f6-95a1-4f7c-9d6e-4b8a01c2d5e7")

// Entry is the fundamental unit of the store: a record with both a semantic
// meaning (embedding vector) and a human-readable expression.
type Entry struct {
	// ID is the 16-byte content-derived identifier, assigned at creation
	ID uuid.UUID

	// Meaning is the embedding vector
	Meaning []float32

	// Expression is the human-readable form of the entry
	Expression string

	// Context holds flexible JSON metadata for domain-specific information
	Context json.RawMessage

	// CreatedAt is when this entry was created
	CreatedAt time.Time

	// UpdatedAt is when this entry was last updated
	UpdatedAt time.Time

	// Relations holds IDs of related entries
	Relations []uuid.UUID
}

// NewEntry creates an entry with the given meaning and expression. The ID is
// derived deterministically from the content, so inserting byte-identical
// expression and meaning always produces the same identifier.
func NewEntry(meaning []float32, expression string) *Entry {
	now := time.Now().UTC()
	return &Entry{
		ID:         DeriveID(expression, meaning),
		Meaning:    meaning,
		Expression: expression,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// DeriveID computes the content-derived identifier for an expression/meaning
// pair: a UUIDv5 over a length-prefixed encoding of both fields.
func DeriveID(expression string, meaning []float32) uuid.UUID {
	payload := make([]byte, 0, 4+len(expression)+len(meaning)*4)

	var scratch [4]byte
	binary.LittleEndian.PutUint32(scratch[:], uint32(len(expression)))
	payload = append(payload, scratch[:]...)
	payload = append(payload, expression...)

	for _, v := range meaning {
		binary.LittleEndian.PutUint32(scratch[:], math.Float32bits(v))
		payload = append(payload, scratch[:]...)
	}

	return uuid.NewSHA1(entryNamespace, payload)
}

// WithContext attaches JSON context metadata and returns the entry
func (e *Entry) WithContext(context json.RawMessage) *Entry {
	e.Context = context
	return e
}

// AddRelation records a relation to another entry. Duplicates are ignored.
func (e *Entry) AddRelation(id uuid.UUID) *Entry {
	for _, existing := range e.Relations {
		if existing == id {
			return e
		}
	}
	e.Relations = append(e.Relations, id)
	e.UpdatedAt = time.Now().UTC()
	return e
}

// Similarity returns the cosine similarity between this entry's meaning and another's
func (e *Entry) Similarity(other *Entry) float64 {
	return CosineSimilarity(e.Meaning, other.Meaning)
}

// clone returns a deep copy so query results never alias store-held memory
func (e *Entry) clone() Entry {
	out := *e
	out.Meaning = append([]float32(nil), e.Meaning...)
	out.Context = append(json.RawMessage(nil), e.Context...)
	out.Relations = append([]uuid.UUID(nil), e.Relations...)
	return out
}
