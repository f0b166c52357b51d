// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package deckbus

// Checksum computes the additive checksum (sum mod 256) of data
func Checksum(data []byte) byte {
	var sum byte
	for _, b := range data {
		sum += b
	}
	return sum
}

// ChecksumValid returns true if data, including its trailing checksum byte,
// sums to ChecksumTarget
func ChecksumValid(data []byte) bool {
	return Checksum(data) == ChecksumTarget
}

// ChecksumByte returns the byte that completes body into a valid segment
func ChecksumByte(body []byte) byte {
	return ChecksumTarget - Checksum(body)
}

// AppendChecksum returns body followed by its checksum byte
func AppendChecksum(body []byte) []byte {
	seg := make([]byte, 0, len(body)+1)
	seg = append(seg, body...)
	return append(seg, ChecksumByte(body))
}
