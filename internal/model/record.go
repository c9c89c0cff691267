package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Origin tags where a record came from.
type Origin string

// Record origins.
const (
	OriginSpreadsheet   Origin = "spreadsheet"
	OriginAuthoritative Origin = "authoritative"
)

// Position is the original location of a record, kept for traceability.
type Position struct {
	Source string
	Index  int
}

// Before orders positions by source name, then index.
func (p Position) Before(other Position) bool {
	if p.Source != other.Source {
		return p.Source < other.Source
	}
	return p.Index < other.Index
}

func (p Position) String() string {
	return fmt.Sprintf("%s#%d", p.Source, p.Index)
}

// SourceRecord is a raw row or entry as loaded from a source.
type SourceRecord struct {
	Fields   map[string]string
	Origin   Origin
	Company  string
	Position Position
	Details  []string
}

// Field returns a raw field value, or "" when absent.
func (r SourceRecord) Field(name string) string {
	if r.Fields == nil {
		return ""
	}
	return r.Fields[name]
}

// CanonicalRecord is the normalized shape shared by both origins.
type CanonicalRecord struct {
	Date         time.Time
	Source       *SourceRecord
	Amount       decimal.Decimal
	Document     string
	Counterparty string
	Description  string
	Origin       Origin
	Company      string

	// Plate is the vehicle plate read from a fuel invoice's free text.
	Plate   string
	Details []string
}

// Key identifies a record for matching.
type Key struct {
	Document     string
	Counterparty string
}

func (k Key) String() string {
	return k.Document + "/" + k.Counterparty
}

// MatchKey returns the (document, counterparty) key.
func (r CanonicalRecord) MatchKey() Key {
	return Key{Document: r.Document, Counterparty: r.Counterparty}
}

// IdentityKey identifies logical duplicates within one company.
type IdentityKey struct {
	Key
	Origin Origin
}

// IdentityKey returns the (document, counterparty, origin) key.
func (r CanonicalRecord) IdentityKey() IdentityKey {
	return IdentityKey{Key: r.MatchKey(), Origin: r.Origin}
}

// Position returns the original position, or the zero value when the
// record has no source.
func (r CanonicalRecord) Position() Position {
	if r.Source == nil {
		return Position{}
	}
	return r.Source.Position
}
