// Copyright (c) 2026, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package hal

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUsagesString(t *testing.T) {
	assert.Equal(t, "None", Usages(0).String())
	assert.Equal(t, "Storage", UsageStorage.String())
	assert.Equal(t, "CopySrc|Storage", (UsageStorage | UsageCopySrc).String())
	assert.Equal(t, "MapRead|CopyDst", (UsageMapRead | UsageCopyDst).String())
}

func TestUsagesHas(t *testing.T) {
	u := UsageStorage | UsageCopySrc
	assert.True(t, u.Has(UsageStorage))
	assert.True(t, u.Has(UsageStorage|UsageCopySrc))
	assert.False(t, u.Has(UsageMapRead))
	assert.False(t, u.Has(UsageStorage|UsageCopyDst))
}

func TestMapStatusString(t *testing.T) {
	assert.Equal(t, "Success", MapSuccess.String())
	assert.Equal(t, "DeviceLost", MapDeviceLost.String())
	assert.Equal(t, "MapStatus(42)", MapStatus(42).String())
}
