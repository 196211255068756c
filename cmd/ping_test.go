// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidatePingFlags(t *testing.T) {
	tests := []struct {
		name    string
		count   int
		timeout int
		wantErr string
	}{
		{name: "defaults", count: 3, timeout: 2},
		{name: "single", count: 1, timeout: 1},
		{name: "zero count", count: 0, timeout: 2, wantErr: "--count"},
		{name: "negative count", count: -4, timeout: 2, wantErr: "--count"},
		{name: "zero timeout", count: 3, timeout: 0, wantErr: "--timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			savedCount, savedTimeout := pingCount, pingTimeout
			t.Cleanup(func() { pingCount, pingTimeout = savedCount, savedTimeout })
			pingCount, pingTimeout = tt.count, tt.timeout

			err := validatePingFlags()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}
