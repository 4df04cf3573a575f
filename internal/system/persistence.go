package system

import (
	"context"
	"time"

	coresys "github.com/MUnique/OpenMU-sub010/internal/core/system"
	"github.com/MUnique/OpenMU-sub010/internal/handler"
	"github.com/MUnique/OpenMU-sub010/internal/persist"
	"github.com/MUnique/OpenMU-sub010/internal/world"
	"go.uber.org/zap"
)

// BatchSaver stores many positions at once. *persist.PositionRepo implements it.
type BatchSaver interface {
	SaveBatch(ctx context.Context, rows []persist.PositionRow) error
}

// PersistenceSystem periodically saves the positions of all online players.
// Phase 5 (Persist).
type PersistenceSystem struct {
	maps     *world.Registry
	saver    BatchSaver
	interval time.Duration
	elapsed  time.Duration
	log      *zap.Logger
}

func NewPersistenceSystem(maps *world.Registry, saver BatchSaver, interval time.Duration, log *zap.Logger) *PersistenceSystem {
	return &PersistenceSystem{
		maps:     maps,
		saver:    saver,
		interval: interval,
		log:      log,
	}
}

func (s *PersistenceSystem) Phase() coresys.Phase { return coresys.PhasePersist }

func (s *PersistenceSystem) Name() string { return "persistence" }

func (s *PersistenceSystem) Update(dt time.Duration) {
	if s.interval <= 0 {
		return
	}
	s.elapsed += dt
	if s.elapsed < s.interval {
		return
	}
	s.elapsed = 0
	s.SaveAllPlayers()
}

// SaveAllPlayers persists every placed player now. Called on graceful
// shutdown as well.
func (s *PersistenceSystem) SaveAllPlayers() int {
	var rows []persist.PositionRow
	for _, gm := range s.maps.Maps() {
		for _, p := range gm.Players() {
			if row, ok := handler.PositionOf(p); ok {
				rows = append(rows, row)
			}
		}
	}
	if len(rows) == 0 {
		return 0
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.saver.SaveBatch(ctx, rows); err != nil {
		s.log.Error("auto-save failed", zap.Int("players", len(rows)), zap.Error(err))
		return 0
	}
	s.log.Debug("positions saved", zap.Int("players", len(rows)))
	return len(rows)
}
