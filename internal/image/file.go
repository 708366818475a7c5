// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package image

import (
	"fmt"
	"io"
	"os"
)

type fileImage struct {
	file *os.File
	data []byte
}

// FileStorage keeps the images in memory and writes them back to their files
// with WriteAt and Sync on every flush.
type FileStorage struct {
	dir    string
	images map[byte]*fileImage
}

// NewFileStorage creates a FileStorage rooted at dir.
func NewFileStorage(dir string) *FileStorage {
	return &FileStorage{
		dir:    dir,
		images: make(map[byte]*fileImage),
	}
}

// Open reads the image file of unit.
func (fs *FileStorage) Open(unit byte) ([]byte, error) {
	if img, ok := fs.images[unit]; ok {
		return img.data, nil
	}
	f, err := openSized(fs.dir, unit)
	if err != nil {
		return nil, err
	}
	data, err := io.ReadAll(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to read image file: %w", err)
	}
	fs.images[unit] = &fileImage{file: f, data: data}
	return data, nil
}

// Flush writes the image of unit to disk.
func (fs *FileStorage) Flush(unit byte) error {
	img, ok := fs.images[unit]
	if !ok {
		return nil
	}
	if _, err := img.file.WriteAt(img.data, 0); err != nil {
		return fmt.Errorf("failed to write image file: %w", err)
	}
	if err := img.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync image file to disk: %w", err)
	}
	return nil
}

// Close closes every image file.
func (fs *FileStorage) Close() error {
	var err error
	for unit, img := range fs.images {
		if e := img.file.Close(); e != nil {
			err = e
		}
		delete(fs.images, unit)
	}
	return err
}
