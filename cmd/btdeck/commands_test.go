package main

import (
	"bytes"
	"context"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chaz8081/btdeck/internal/controller"
	"github.com/chaz8081/btdeck/internal/source/sim"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		line string
		want command
	}{
		{"", command{}},
		{"list", command{name: "list"}},
		{"  LIST  ", command{name: "list"}},
		{"toggle AA:BB", command{name: "toggle", id: "AA:BB"}},
		{"rename AA:BB Living Room Speaker", command{name: "rename", id: "AA:BB", rest: "Living Room Speaker"}},
		{"rename   AA:BB", command{name: "rename", id: "AA:BB"}},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			assert.Equal(t, tt.want, parseCommand(tt.line))
		})
	}
}

func newTestController(t *testing.T) *controller.Controller {
	t.Helper()
	src := sim.New(sim.DefaultStore(), sim.Options{Rand: rand.New(rand.NewPCG(1, 1))})
	ctrl := controller.New(src, controller.DefaultOptions())
	require.NoError(t, ctrl.Load(context.Background()))
	return ctrl
}

func TestRunCommands(t *testing.T) {
	ctrl := newTestController(t)
	ctx := context.Background()
	var out bytes.Buffer

	assert.False(t, run(ctx, ctrl, parseCommand("list"), &out))
	assert.Contains(t, out.String(), "AirPods Pro")
	assert.Contains(t, out.String(), "82%")
	assert.Contains(t, out.String(), "3 of 5 devices connected")

	out.Reset()
	run(ctx, ctrl, parseCommand("rename 3C:22:FB:1A:0B:01 Work Buds"), &out)
	run(ctx, ctrl, parseCommand("list"), &out)
	assert.Contains(t, out.String(), "Work Buds")

	run(ctx, ctrl, parseCommand("toggle 00:1A:7D:DA:71:04"), &out)
	r, _ := ctrl.Device("00:1A:7D:DA:71:04")
	assert.True(t, r.Connected)

	out.Reset()
	run(ctx, ctrl, parseCommand("list"), &out)
	assert.Contains(t, out.String(), "4 of 5 devices connected")

	out.Reset()
	run(ctx, ctrl, parseCommand("toggle"), &out)
	assert.Contains(t, out.String(), "usage")

	out.Reset()
	run(ctx, ctrl, parseCommand("frobnicate"), &out)
	assert.Contains(t, out.String(), "unknown command")

	assert.True(t, run(ctx, ctrl, parseCommand("quit"), &out))
}

func TestRunNoticesAndDismiss(t *testing.T) {
	ctrl := newTestController(t)
	ctx := context.Background()
	var out bytes.Buffer

	run(ctx, ctrl, parseCommand("toggle nope"), &out)
	notices := ctrl.Notices()
	require.Len(t, notices, 1)

	run(ctx, ctrl, parseCommand("notices"), &out)
	assert.Contains(t, out.String(), notices[0].ID)
	assert.Contains(t, out.String(), "Connection Error")

	out.Reset()
	run(ctx, ctrl, parseCommand("dismiss "+notices[0].ID), &out)
	assert.Empty(t, strings.TrimSpace(out.String()))
	assert.Empty(t, ctrl.Notices())

	run(ctx, ctrl, parseCommand("dismiss "+notices[0].ID), &out)
	assert.Contains(t, out.String(), "no dismissible notice")
}
