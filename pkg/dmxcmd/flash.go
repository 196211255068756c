// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dmxcmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// FlashImageVersion is written into every saved image.
const FlashImageVersion = 1

// FlashImage is the persisted device state written by FLASH_UPDATE.
type FlashImage struct {
	Version     uint8                `cbor:"0,keyasint"`
	UserMemory  [UserMemorySize]byte `cbor:"1,keyasint"`
	StartCode   byte                 `cbor:"2,keyasint"`
	LastChannel uint16               `cbor:"3,keyasint"`
	SavedAt     time.Time            `cbor:"4,keyasint,omitempty"`
}

// FlashStore persists the flash image. Load returns (nil, nil) when nothing
// has been saved yet.
type FlashStore interface {
	Load() (*FlashImage, error)
	Save(img *FlashImage) error
}

// MarshalFlashImage encodes an image as CBOR.
func MarshalFlashImage(img *FlashImage) ([]byte, error) {
	data, err := cbor.Marshal(img)
	if err != nil {
		return nil, fmt.Errorf("failed to encode flash image: %w", err)
	}
	return data, nil
}

// UnmarshalFlashImage decodes a CBOR image and checks its version.
func UnmarshalFlashImage(data []byte) (*FlashImage, error) {
	var img FlashImage
	if err := cbor.Unmarshal(data, &img); err != nil {
		return nil, fmt.Errorf("failed to decode flash image: %w", err)
	}
	if img.Version != FlashImageVersion {
		return nil, fmt.Errorf("unsupported flash image version %d", img.Version)
	}
	return &img, nil
}

// FileStore keeps the flash image in a single file.
type FileStore struct {
	path string
}

// NewFileStore creates a store backed by path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the image. A missing file is not an error.
func (s *FileStore) Load() (*FlashImage, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read flash image: %w", err)
	}
	return UnmarshalFlashImage(data)
}

// Save writes the image to a temporary file and renames it over the old one.
func (s *FileStore) Save(img *FlashImage) error {
	data, err := MarshalFlashImage(img)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create flash image: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write flash image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write flash image: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace flash image: %w", err)
	}
	return nil
}

// MemoryStore keeps the image in memory.
type MemoryStore struct {
	img   *FlashImage
	saves int
}

// Load returns a copy of the last saved image.
func (m *MemoryStore) Load() (*FlashImage, error) {
	if m.img == nil {
		return nil, nil
	}
	img := *m.img
	return &img, nil
}

// Save stores a copy of img.
func (m *MemoryStore) Save(img *FlashImage) error {
	c := *img
	m.img = &c
	m.saves++
	return nil
}

// Saves returns how many times Save was called.
func (m *MemoryStore) Saves() int {
	return m.saves
}
