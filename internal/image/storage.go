// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package image

import (
	"fmt"
	"os"
	"path/filepath"
)

// Storage holds the byte images of the polled units.
// Calls are serialized by the owning Image.
type Storage interface {
	// Open returns the image of unit, creating an empty one if none exists.
	// The returned slice stays valid until Close.
	Open(unit byte) ([]byte, error)

	// Flush persists the image of unit after an update.
	Flush(unit byte) error

	// Close releases every opened image.
	Close() error
}

// NewStorage returns the storage named by typ: "memory", "file" or "mmap".
// The file backed storages keep one image file per unit in the directory dir.
func NewStorage(typ, dir string) (Storage, error) {
	switch typ {
	case "", "memory":
		return NewMemoryStorage(), nil
	case "file", "mmap":
		if dir == "" {
			return nil, fmt.Errorf("image path is required for %s storage", typ)
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create image directory: %w", err)
		}
		if typ == "file" {
			return NewFileStorage(dir), nil
		}
		return NewMmapStorage(dir), nil
	}
	return nil, fmt.Errorf("unknown image type: %s", typ)
}

func unitPath(dir string, unit byte) string {
	return filepath.Join(dir, fmt.Sprintf("unit-%03d.img", unit))
}

// openSized opens the image file of unit and makes sure it has the layout size.
func openSized(dir string, unit byte) (*os.File, error) {
	f, err := os.OpenFile(unitPath(dir, unit), os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open image file: %w", err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if fi.Size() != int64(totalSize) {
		if err := f.Truncate(int64(totalSize)); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to resize image file: %w", err)
		}
	}
	return f, nil
}
