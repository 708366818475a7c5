// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package image

import (
	"fmt"
	"os"

	"github.com/edsrzf/mmap-go"
)

type mmapImage struct {
	file *os.File
	data mmap.MMap
}

// MmapStorage backs every image with a memory-mapped file. Updates land in
// the mapping directly and a flush msyncs it.
type MmapStorage struct {
	dir    string
	images map[byte]*mmapImage
}

// NewMmapStorage creates a MmapStorage rooted at dir.
func NewMmapStorage(dir string) *MmapStorage {
	return &MmapStorage{
		dir:    dir,
		images: make(map[byte]*mmapImage),
	}
}

// Open maps the image file of unit.
func (ms *MmapStorage) Open(unit byte) ([]byte, error) {
	if img, ok := ms.images[unit]; ok {
		return img.data, nil
	}
	f, err := openSized(ms.dir, unit)
	if err != nil {
		return nil, err
	}
	data, err := mmap.Map(f, mmap.RDWR, 0)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("mmap failed: %w", err)
	}
	ms.images[unit] = &mmapImage{file: f, data: data}
	return data, nil
}

// Flush flushes the mapping of unit to disk.
func (ms *MmapStorage) Flush(unit byte) error {
	img, ok := ms.images[unit]
	if !ok {
		return nil
	}
	return img.data.Flush()
}

// Close unmaps and closes every image file.
func (ms *MmapStorage) Close() error {
	var err error
	for unit, img := range ms.images {
		if e := img.data.Unmap(); e != nil {
			err = e
		}
		if e := img.file.Close(); e != nil {
			err = e
		}
		delete(ms.images, unit)
	}
	return err
}
