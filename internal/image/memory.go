// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package image

// MemoryStorage is a non-persistent storage.
type MemoryStorage struct {
	images map[byte][]byte
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{images: make(map[byte][]byte)}
}

func (ms *MemoryStorage) Open(unit byte) ([]byte, error) {
	if data, ok := ms.images[unit]; ok {
		return data, nil
	}
	data := make([]byte, totalSize)
	ms.images[unit] = data
	return data, nil
}

func (ms *MemoryStorage) Flush(unit byte) error {
	return nil
}

func (ms *MemoryStorage) Close() error {
	ms.images = make(map[byte][]byte)
	return nil
}
