package pbp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/northpine/pwhl-sync/internal/model"
)

func TestResolveOpponent(t *testing.T) {
	game := model.GameInfo{ID: 100, HomeTeam: 1, VisitingTeam: 2}
	log := zap.NewNop()

	assert.Equal(t, 2, ResolveOpponent("1", game, log))
	assert.Equal(t, 1, ResolveOpponent("2", game, log))
	assert.Equal(t, 2, ResolveOpponent(float64(1), game, log))
}

func TestResolveOpponent_UnknownTeamFallsBack(t *testing.T) {
	game := model.GameInfo{ID: 100, HomeTeam: 1, VisitingTeam: 2}
	core, logs := observer.New(zap.WarnLevel)
	log := zap.New(core)

	// A team id that matches neither side keeps the row alive: the
	// opponent defaults to the visiting team and a diagnostic is logged.
	assert.Equal(t, 2, ResolveOpponent("99", game, log))
	assert.Equal(t, 2, ResolveOpponent(nil, game, log))
	assert.Equal(t, 2, logs.FilterMessage("team id matches neither home nor visiting team").Len())
}
