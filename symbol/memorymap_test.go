// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package symbol

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchWildcardGreedy(t *testing.T) {
	cases := []struct {
		pattern, s string
		want       bool
	}{
		{"/usr/bin/%", "/usr/bin/myapp", true},
		{"/usr/bin/%", "/usr/lib/myapp", false},
		{"%libc%", "/lib/x86_64-linux-gnu/libc.so.6", true},
		{"/exact/path", "/exact/path", true},
		{"/exact/path", "/other/path", false},
		{"%.so", "/lib/libfoo.so", true},
		{"%.so", "/lib/libfoo.so.1", false},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, matchWildcard(c.pattern, c.s), "pattern=%q s=%q", c.pattern, c.s)
	}
}

func TestInScopeEmptyPatternsMatchesEverything(t *testing.T) {
	assert.True(t, inScope(nil, "/anything"))
}

func TestLineAddSampleIsConcurrencySafe(t *testing.T) {
	l := &Line{File: "main.go", LineNo: 10}
	done := make(chan struct{})
	for i := 0; i < 10; i++ {
		go func() {
			l.AddSample()
			done <- struct{}{}
		}()
	}
	for i := 0; i < 10; i++ {
		<-done
	}
	assert.Equal(t, uint64(10), l.Samples)
}
