package flappy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWorldSpawnsFirstPipe(t *testing.T) {
	cfg := DefaultConfig()
	w := NewWorld(cfg, 1)
	require.Len(t, w.Pipes, 1)
	p := w.Pipes[0]
	assert.Equal(t, cfg.World.Width+cfg.Pipe.OffScreenOffset, p.X)
	assert.Equal(t, cfg.Pipe.Gap, p.GapBottom-p.GapTop)
	centre := (p.GapTop + p.GapBottom) / 2
	assert.InDelta(t, cfg.World.Height/2, centre, cfg.Pipe.GapOffset)
}

func TestWorldSeedDeterminesPipes(t *testing.T) {
	cfg := DefaultConfig()
	gaps := func(seed int64) []float64 {
		w := NewWorld(cfg, seed)
		var out []float64
		for i := 0; i < 200; i++ {
			// Keep the bird alive and record each pipe as it spawns.
			w.Bird.Y, w.Bird.Velocity = 300, 0
			w.Pipes = nil
			w.Step(false)
			for _, p := range w.Pipes {
				out = append(out, p.GapTop)
			}
		}
		return out
	}
	a, b := gaps(42), gaps(42)
	require.NotEmpty(t, a)
	assert.Equal(t, a, b)

	differs := false
	for seed := int64(1); seed < 10 && !differs; seed++ {
		if NewWorld(cfg, seed).Pipes[0].GapTop != NewWorld(cfg, 0).Pipes[0].GapTop {
			differs = true
		}
	}
	assert.True(t, differs)
}

func TestWorldSpawnInterval(t *testing.T) {
	cfg := DefaultConfig()
	w := NewWorld(cfg, 3)
	spawns := 0
	for i := 0; i < 3*cfg.spawnInterval(); i++ {
		w.Bird.Y, w.Bird.Velocity = 300, 0
		w.Pipes = nil
		w.Step(false)
		if len(w.Pipes) > 0 {
			spawns++
		}
	}
	assert.Equal(t, 3, spawns)
}

func TestBirdFallsToGround(t *testing.T) {
	cfg := DefaultConfig()
	w := NewWorld(cfg, 1)
	total := 0.0
	var last StepResult
	for !w.Dead {
		last = w.Step(false)
		total += last.Reward
		require.Less(t, w.Tick, 1000)
	}
	assert.True(t, last.Dead)
	assert.Equal(t, -cfg.Rewards.Penalty, last.Reward)
	assert.GreaterOrEqual(t, w.Bird.Y+cfg.Bird.Height, cfg.groundY())
	assert.InDelta(t, cfg.Rewards.Alive*float64(w.Tick-1)-cfg.Rewards.Penalty, total, 1e-9)
	assert.Zero(t, w.Score)

	// A dead world no longer moves.
	tick, y := w.Tick, w.Bird.Y
	assert.True(t, w.Step(true).Dead)
	assert.Equal(t, tick, w.Tick)
	assert.Equal(t, y, w.Bird.Y)
}

func TestBirdGravityIsCapped(t *testing.T) {
	cfg := DefaultConfig()
	w := NewWorld(cfg, 1)
	w.Pipes = nil
	w.Bird.Y = 0
	for i := 0; i < 20 && !w.Dead; i++ {
		w.Step(false)
		assert.LessOrEqual(t, w.Bird.Velocity, cfg.Bird.MaxVelocity)
	}
	assert.Equal(t, cfg.Bird.MaxVelocity, w.Bird.Velocity)
}

func TestFlap(t *testing.T) {
	cfg := DefaultConfig()
	w := NewWorld(cfg, 1)
	w.Bird.Velocity = 5
	y := w.Bird.Y
	w.Step(true)
	want := y - cfg.Bird.JumpHeight*cfg.World.Speed + cfg.Bird.JumpVelocity + cfg.Bird.DropRate*cfg.World.Speed
	assert.InDelta(t, want, w.Bird.Y, 1e-9)
	assert.InDelta(t, cfg.Bird.JumpVelocity+cfg.Bird.DropRate*cfg.World.Speed, w.Bird.Velocity, 1e-9)
}

func TestCeilingPenalty(t *testing.T) {
	cfg := DefaultConfig()
	w := NewWorld(cfg, 1)
	w.Pipes = nil
	w.Bird.Y = 2
	res := w.Step(true)
	assert.True(t, res.Ceiling)
	assert.False(t, res.Dead)
	assert.InDelta(t, cfg.Rewards.Alive-cfg.Rewards.Penalty, res.Reward, 1e-9)

	// Above the screen a flap does nothing.
	w.Bird.Y, w.Bird.Velocity = -20, 0
	w.Step(true)
	assert.InDelta(t, -20+cfg.Bird.DropRate*cfg.World.Speed, w.Bird.Y, 1e-9)
}

func TestPipeCollision(t *testing.T) {
	cfg := DefaultConfig()
	w := NewWorld(cfg, 1)
	w.Pipes = []*PipePair{{X: w.Bird.X + 3, GapTop: 500, GapBottom: 670}}
	w.Bird.Y, w.Bird.Velocity = 300, 0
	res := w.Step(false)
	assert.True(t, res.Dead)
	assert.Zero(t, res.Reward)
}

func TestScoreZoneRewards(t *testing.T) {
	cfg := DefaultConfig()
	w := NewWorld(cfg, 1)
	w.Pipes = []*PipePair{{X: w.Bird.X + cfg.Bird.Width + 2, GapTop: 300, GapBottom: 470}}

	total := 0.0
	enterTick, leaveTick := -1, -1
	for i := 0; i < 30; i++ {
		w.Bird.Y, w.Bird.Velocity = 373, 0
		res := w.Step(false)
		require.False(t, res.Dead, "tick %d", w.Tick)
		total += res.Reward
		if res.Reward > cfg.Rewards.Score && enterTick < 0 {
			enterTick = w.Tick
		}
		if res.Scored {
			leaveTick = w.Tick
		}
	}
	assert.Equal(t, 1, enterTick)
	assert.Equal(t, 18, leaveTick)
	assert.Equal(t, 1, w.Score)
	assert.InDelta(t, 2*cfg.Rewards.Score+30*cfg.Rewards.Alive, total, 1e-9)
}

func TestInputs(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Agent.NormalizeInputs = false
	w := NewWorld(cfg, 1)
	w.Pipes = []*PipePair{{X: 300, GapTop: 250, GapBottom: 420}}
	w.Bird.Y = 400

	in := w.Inputs()
	require.Len(t, in, NumInputs)
	assert.Equal(t, 300+cfg.Pipe.Width-cfg.Bird.X, in[0])
	assert.Equal(t, 150.0, in[1])
	assert.Equal(t, -20.0, in[2])

	cfg.Agent.NormalizeInputs = true
	in = w.Inputs()
	assert.InDelta(t, (300+cfg.Pipe.Width-cfg.Bird.X)/cfg.World.Width, in[0], 1e-12)
	assert.InDelta(t, 150/cfg.World.Height, in[1], 1e-12)

	// Passed pipes are not sensed.
	w.Pipes = []*PipePair{{X: 0, GapTop: 250, GapBottom: 420}}
	assert.Nil(t, w.NextPipe())
	assert.Equal(t, 1.0, w.Inputs()[0])
}
