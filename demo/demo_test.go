// Copyright 2025-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"os"
	"sync"
	"testing"

	"github.com/gomlx/bimpm"
	"github.com/gomlx/gomlx/backends"
	"github.com/gomlx/gomlx/ui/commandline"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/require"
	"k8s.io/klog/v2"
)

var (
	flagSettings *string
	muTrain      sync.Mutex
)

func init() {
	ctx := bimpm.CreateDefaultContext()
	flagSettings = commandline.CreateContextSettingsFlag(ctx, "")
	klog.InitFlags(nil)
	if _, found := os.LookupEnv(backends.ConfigEnvVar); !found {
		// For testing, we use the CPU backend (and avoid GPU if not explicitly requested).
		must.M(os.Setenv(backends.ConfigEnvVar, "xla:cpu"))
	}
}

// TestDemo downloads the Quora dataset and trains for a few steps. It is
// skipped in short mode: the download is large.
func TestDemo(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping testing in short mode")
		return
	}

	ctx := bimpm.CreateDefaultContext()
	ctx.SetParam("train_steps", 10)
	ctx.SetParam("print_interval", 5)
	_ = must.M1(commandline.ParseContextSettings(ctx, *flagSettings))

	muTrain.Lock()
	defer muTrain.Unlock()
	require.NotPanics(t, func() {
		bimpm.TrainModel(ctx, *flagDataDir, *flagCheckpoint)
	})
}
