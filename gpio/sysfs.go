// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package gpio

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// DefaultSysfsRoot is where the kernel exposes the legacy GPIO interface.
const DefaultSysfsRoot = "/sys/class/gpio"

// Sysfs is a Line backed by the kernel sysfs GPIO interface.
type Sysfs struct {
	Root string
	Pin  string
}

// NewSysfs returns the sysfs line for pin under DefaultSysfsRoot.
func NewSysfs(pin string) (Line, error) {
	pin = strings.TrimSpace(pin)
	if pin == "" {
		return nil, errors.New("gpio: empty pin")
	}
	return &Sysfs{Root: DefaultSysfsRoot, Pin: pin}, nil
}

func (s *Sysfs) dir() string {
	return filepath.Join(s.Root, "gpio"+s.Pin)
}

func (s *Sysfs) write(name, value string) error {
	path := filepath.Join(s.dir(), name)
	if name == "export" || name == "unexport" {
		path = filepath.Join(s.Root, name)
	}
	if err := os.WriteFile(path, []byte(value), 0644); err != nil {
		return fmt.Errorf("gpio: write %s: %w", path, err)
	}
	return nil
}

// Export exports the pin unless the kernel already did.
func (s *Sysfs) Export() error {
	if _, err := os.Stat(s.dir()); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("gpio: stat %s: %w", s.dir(), err)
	}
	slog.Debug("gpio: exporting pin", "pin", s.Pin)
	return s.write("export", s.Pin)
}

func (s *Sysfs) SetDirection(d Direction) error {
	return s.write("direction", d.String())
}

func (s *Sysfs) SetValue(high bool) error {
	v := "0"
	if high {
		v = "1"
	}
	return s.write("value", v)
}

func (s *Sysfs) Unexport() error {
	return s.write("unexport", s.Pin)
}
