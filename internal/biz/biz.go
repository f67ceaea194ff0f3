package biz

import (
	"time"

	"github.com/DevRickLin/reward-relay/internal/biz/domain"
	"github.com/DevRickLin/reward-relay/internal/biz/usecase"
)

// Usecases contains all usecases
type Usecases struct {
	Rewards   *usecase.RewardExtractor
	Times     *usecase.TimeExtractor
	Rooms     *usecase.RoomIDExtractor
	Parser    *usecase.EventParser
	Admission *usecase.AdmissionUsecase
}

// NewUsecases wires the extractors into the admission pipeline.
// A nil clock uses time.Now.
func NewUsecases(monitors []domain.MonitorTarget, rules usecase.AdmissionRules, now func() time.Time) *Usecases {
	if now == nil {
		now = time.Now
	}
	rewards := usecase.NewRewardExtractor()
	times := usecase.NewTimeExtractor(now)
	rooms := usecase.NewRoomIDExtractor(rewards)
	parser := usecase.NewEventParser(times, rewards)

	return &Usecases{
		Rewards:   rewards,
		Times:     times,
		Rooms:     rooms,
		Parser:    parser,
		Admission: usecase.NewAdmissionUsecase(monitors, rules, rooms, parser),
	}
}
