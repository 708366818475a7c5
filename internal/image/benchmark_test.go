// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package image

import (
	"testing"
	"time"
)

func benchmarkApply(b *testing.B, typ string) {
	storage, err := NewStorage(typ, b.TempDir())
	if err != nil {
		b.Fatalf("Failed to create %s storage: %v", typ, err)
	}
	im := New(storage)
	defer im.Close()

	block := Block{Table: TableHoldingRegisters, Address: 10, Registers: make([]uint16, 125)}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		block.Registers[0] = uint16(i)
		if err := im.Apply(1, time.Now(), block); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkMemoryStorage_Apply(b *testing.B) { benchmarkApply(b, "memory") }

func BenchmarkFileStorage_Apply(b *testing.B) { benchmarkApply(b, "file") }

// BenchmarkMmapStorage_Apply measures an update followed by msync.
func BenchmarkMmapStorage_Apply(b *testing.B) { benchmarkApply(b, "mmap") }
