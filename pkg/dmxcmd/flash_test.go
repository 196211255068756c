// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dmxcmd

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/require"
)

func TestFileStore_MissingFile(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "flash.cbor"))
	img, err := s.Load()
	require.NoError(t, err)
	require.Nil(t, img)
}

func TestFileStore_SaveLoad(t *testing.T) {
	dir := t.TempDir()
	s := NewFileStore(filepath.Join(dir, "flash.cbor"))

	img := &FlashImage{
		Version:     FlashImageVersion,
		StartCode:   0x17,
		LastChannel: 96,
		SavedAt:     time.Unix(1700000000, 0),
	}
	img.UserMemory[0] = 1
	img.UserMemory[511] = 2
	require.NoError(t, s.Save(img))

	got, err := s.Load()
	require.NoError(t, err)
	require.Equal(t, img.UserMemory, got.UserMemory)
	require.Equal(t, byte(0x17), got.StartCode)
	require.Equal(t, uint16(96), got.LastChannel)
	require.True(t, img.SavedAt.Equal(got.SavedAt))

	// No temporary files are left behind.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestFileStore_HandlerRestore(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "flash.cbor"))
	h, _ := newTestHandler(t, WithStore(s))
	feed(h, 0x29, 0x00, 0x77, 0x4F, 0x00, 0x02)

	h2, u2 := newTestHandler(t, WithStore(s))
	require.Equal(t, byte(0x77), h2.UserMemory()[256])
	require.Equal(t, uint16(257), u2.LastChannel())
}

func TestUnmarshalFlashImage_Errors(t *testing.T) {
	_, err := UnmarshalFlashImage([]byte{0xFF, 0x00})
	require.Error(t, err)

	data, err := cbor.Marshal(&FlashImage{Version: 9})
	require.NoError(t, err)
	_, err = UnmarshalFlashImage(data)
	require.ErrorContains(t, err, "version 9")
}

func TestFileStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flash.cbor")
	require.NoError(t, os.WriteFile(path, []byte("not cbor"), 0o644))

	_, err := NewFileStore(path).Load()
	require.Error(t, err)

	_, err = NewHandler(nil, WithStore(NewFileStore(path)))
	require.Error(t, err)
}
