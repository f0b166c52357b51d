// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package deckbus

import "fmt"

// AnomalyType represents different types of transaction anomalies
type AnomalyType int

const (
	AnomalyMalformed AnomalyType = iota
	AnomalyTruncated
	AnomalyChecksum
	AnomalyParityMismatch
)

// String returns the anomaly name
func (a AnomalyType) String() string {
	switch a {
	case AnomalyMalformed:
		return "malformed"
	case AnomalyTruncated:
		return "truncated"
	case AnomalyChecksum:
		return "checksum"
	case AnomalyParityMismatch:
		return "parity mismatch"
	default:
		return "unknown"
	}
}

// ValidationError represents a transaction validation failure
type ValidationError struct {
	Type    AnomalyType
	Segment SegmentID
	Message string
	Details map[string]interface{}
}

// Error implements the error interface
func (v *ValidationError) Error() string {
	return v.Message
}

// Validation is the outcome of validating one transaction
type Validation struct {
	Errors []ValidationError
}

// Valid returns true if no anomaly was found
func (v Validation) Valid() bool {
	return len(v.Errors) == 0
}

// Decodable returns true if the transaction may be handed to the decoder.
// A parity mismatch alone does not prevent decoding.
func (v Validation) Decodable() bool {
	for _, e := range v.Errors {
		if e.Type != AnomalyParityMismatch {
			return false
		}
	}
	return true
}

// Has returns true if an anomaly of type t was found
func (v Validation) Has(t AnomalyType) bool {
	return v.find(t) != nil
}

// ChecksumSegment returns which segments failed their checksum
func (v Validation) ChecksumSegment() SegmentID {
	if e := v.find(AnomalyChecksum); e != nil {
		return e.Segment
	}
	return SegmentNone
}

func (v Validation) find(t AnomalyType) *ValidationError {
	for i := range v.Errors {
		if v.Errors[i].Type == t {
			return &v.Errors[i]
		}
	}
	return nil
}

// ValidateTransaction checks segment lengths, checksums and parity bits
func ValidateTransaction(tx *Transaction) Validation {
	if errs := validateShape(tx); len(errs) > 0 {
		return Validation{Errors: errs}
	}

	errors := []ValidationError{}

	cmdOK := ChecksumValid(tx.Command.Bytes)
	rspOK := ChecksumValid(tx.Response.Bytes)
	if !cmdOK || !rspOK {
		seg := SegmentBoth
		if cmdOK {
			seg = SegmentResponse
		} else if rspOK {
			seg = SegmentCommand
		}
		errors = append(errors, ValidationError{
			Type:    AnomalyChecksum,
			Segment: seg,
			Message: fmt.Sprintf("Checksum error in %s segment (sums 0x%02X/0x%02X, want 0x%02X)",
				seg, tx.Command.Sum(), tx.Response.Sum(), ChecksumTarget),
			Details: map[string]interface{}{
				"command_sum":  tx.Command.Sum(),
				"response_sum": tx.Response.Sum(),
			},
		})
	}

	if tx.Command.Parity() != tx.Response.Parity() {
		errors = append(errors, ValidationError{
			Type:    AnomalyParityMismatch,
			Segment: SegmentBoth,
			Message: fmt.Sprintf("Parity mismatch (command=%d, response=%d)",
				tx.Command.Parity(), tx.Response.Parity()),
			Details: map[string]interface{}{
				"command_parity":  tx.Command.Parity(),
				"response_parity": tx.Response.Parity(),
			},
		})
	}

	return Validation{Errors: errors}
}

// validateShape reports missing, short and truncated segments
func validateShape(tx *Transaction) []ValidationError {
	errors := []ValidationError{}

	for _, seg := range []struct {
		id  SegmentID
		seg Segment
	}{
		{SegmentCommand, tx.Command},
		{SegmentResponse, tx.Response},
	} {
		if seg.seg.Truncated() {
			errors = append(errors, ValidationError{
				Type:    AnomalyTruncated,
				Segment: seg.id,
				Message: fmt.Sprintf("%s segment truncated (%d bytes seen, %d kept)",
					seg.id, seg.seg.Len, len(seg.seg.Bytes)),
				Details: map[string]interface{}{"length": seg.seg.Len, "kept": len(seg.seg.Bytes)},
			})
			continue
		}
		if seg.seg.Len < 2 {
			errors = append(errors, ValidationError{
				Type:    AnomalyMalformed,
				Segment: seg.id,
				Message: fmt.Sprintf("%s segment too short (%d bytes, minimum 2)", seg.id, seg.seg.Len),
				Details: map[string]interface{}{"length": seg.seg.Len, "minimum": 2},
			})
		}
	}

	return errors
}

// ParityTracker checks that the parity bit alternates between consecutive
// transactions. A repeated parity means a transaction was missed or resent.
type ParityTracker struct {
	last  uint8
	valid bool
}

// Observe records the parity of tx and returns false if it repeats the
// previous transaction's parity
func (p *ParityTracker) Observe(tx *Transaction) bool {
	parity := tx.Parity()
	ok := !p.valid || parity != p.last
	p.last = parity
	p.valid = true
	return ok
}

// Reset forgets the previous parity
func (p *ParityTracker) Reset() {
	p.valid = false
}
