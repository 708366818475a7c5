// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package lrc

import (
	"math/rand"
	"testing"
)

func TestComputeAndVerify(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		lrc  byte
	}{
		{"read holding registers example", []byte{0x01, 0x03, 0x00, 0x13, 0x00, 0x0a}, 0xdf},
		{"read coils example", []byte{0x11, 0x01, 0x00, 0x13, 0x00, 0x0a}, 0xd1},
		{"short payload", []byte{0x10, 0x11, 0x12}, 0xcd},
		{"empty", nil, 0x00},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Compute(tt.in); got != tt.lrc {
				t.Fatalf("Compute(%x) = 0x%02x, want 0x%02x", tt.in, got, tt.lrc)
			}
			if !Verify(tt.in, tt.lrc) {
				t.Fatalf("Verify(%x, 0x%02x) returned false", tt.in, tt.lrc)
			}
		})
	}
}

func TestCompute_SumIdentity(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		buf := make([]byte, r.Intn(252))
		r.Read(buf)

		var sum byte
		for _, b := range append(buf, Compute(buf)) {
			sum += b
		}
		if sum != 0 {
			t.Fatalf("sum of %x with its lrc is 0x%02x, want 0", buf, sum)
		}
	}
}
